// Package reports files failure reports for case runs.
package reports

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/github"
	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/models"
	"golang.org/x/oauth2"
)

// StepLine is a step that did not pass.
type StepLine struct {
	Index int    `json:"index"`
	Line  string `json:"line"`
	Error string `json:"error,omitempty"`
}

// FailureReport describes a failed run.
type FailureReport struct {
	CaseName     string            `json:"case_name"`
	SubmissionID string            `json:"submission_id,omitempty"`
	WorkflowID   string            `json:"workflow_id,omitempty"`
	System       string            `json:"system,omitempty"`
	Submitter    string            `json:"submitter,omitempty"`
	Result       models.ResultCase `json:"result"`
	Steps        []StepLine        `json:"steps,omitempty"`
}

// FormatFailureReport renders the issue title and markdown body for a report.
func FormatFailureReport(r FailureReport) (string, string) {
	title := fmt.Sprintf("Case %s failed on %s", r.CaseName, r.System)

	var b strings.Builder
	fmt.Fprintf(&b, "Case `%s` finished with result **%s**.\n\n", r.CaseName, r.Result.Result)
	if r.SubmissionID != "" {
		fmt.Fprintf(&b, "- Submission: `%s`\n", r.SubmissionID)
	}
	if r.WorkflowID != "" {
		fmt.Fprintf(&b, "- Workflow: `%s`\n", r.WorkflowID)
	}
	if r.Submitter != "" {
		fmt.Fprintf(&b, "- Submitted by: %s\n", r.Submitter)
	}
	if r.Result.Error != "" {
		fmt.Fprintf(&b, "\nStopped with: `%s`\n", r.Result.Error)
	}
	if len(r.Steps) > 0 {
		b.WriteString("\n| Step | Line | Error |\n|---|---|---|\n")
		for _, s := range r.Steps {
			fmt.Fprintf(&b, "| %d | `%s` | %s |\n", s.Index, s.Line, s.Error)
		}
	}
	if len(r.Result.FailedScreenShots) > 0 {
		b.WriteString("\nScreenshots:\n")
		for _, shot := range r.Result.FailedScreenShots {
			fmt.Fprintf(&b, "- %s\n", shot)
		}
	}
	return title, b.String()
}

// NewGitHubClient returns a client authenticated with a personal access token.
func NewGitHubClient(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// GitHubReporter opens an issue for every failed run.
type GitHubReporter struct {
	client *github.Client
	owner  string
	repo   string
	labels []string
	logger *logrus.Logger
}

func NewGitHubReporter(token, owner, repo string, labels []string, logger *logrus.Logger) (*GitHubReporter, error) {
	if token == "" {
		return nil, errors.New("github token is not set")
	}
	if owner == "" || repo == "" {
		return nil, errors.New("github owner and repo are required")
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &GitHubReporter{
		client: NewGitHubClient(context.Background(), token),
		owner:  owner,
		repo:   repo,
		labels: labels,
		logger: logger,
	}, nil
}

// SetBaseURL points the reporter at a GitHub Enterprise API.
func (g *GitHubReporter) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid github url %q: %w", raw, err)
	}
	g.client.BaseURL = u
	return nil
}

// ReportFailure creates the issue and returns its URL.
func (g *GitHubReporter) ReportFailure(ctx context.Context, r FailureReport) (string, error) {
	title, body := FormatFailureReport(r)
	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	}
	if len(g.labels) > 0 {
		labels := append([]string(nil), g.labels...)
		req.Labels = &labels
	}

	issue, _, err := g.client.Issues.Create(ctx, g.owner, g.repo, req)
	if err != nil {
		g.logger.WithError(err).Error("Failed to create GitHub issue")
		return "", fmt.Errorf("failed to create issue for case %s: %w", r.CaseName, err)
	}
	g.logger.WithFields(logrus.Fields{
		"case":  r.CaseName,
		"issue": issue.GetNumber(),
	}).Info("Failure reported")
	return issue.GetHTMLURL(), nil
}
