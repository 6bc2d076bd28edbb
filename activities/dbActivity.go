package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/logger"
	"github.com/surajsub/sapgui-step-dsl/models"
	"github.com/surajsub/sapgui-step-dsl/reports"
)

// StepStore persists step and case statuses of a submission.
type StepStore interface {
	UpdateStepStatus(ctx context.Context, id uuid.UUID, index int, status, stepErr string, screenshots ...string) error
	FinishSubmission(ctx context.Context, id uuid.UUID, result models.ResultCase) error
}

// Reporter files a failure report and returns where it lives.
type Reporter interface {
	ReportFailure(ctx context.Context, r reports.FailureReport) (string, error)
}

type StepStatusInput struct {
	SubmissionID string   `json:"submission_id"`
	Step         int      `json:"step"`
	Action       string   `json:"action"`
	Status       string   `json:"status"`
	Error        string   `json:"error,omitempty"`
	Screenshots  []string `json:"screenshots,omitempty"`
}

type FinishCaseInput struct {
	SubmissionID string            `json:"submission_id"`
	CaseName     string            `json:"case_name"`
	Result       models.ResultCase `json:"result"`
}

// RecordStepStatus logs a step status and stores it when the run belongs to a
// submission.
func (a *Activities) RecordStepStatus(ctx context.Context, in StepStatusInput) error {
	l := GetDSLActivityLogger(ctx)
	l.WithFields(logrus.Fields{
		"submission_id": in.SubmissionID,
		"step":          in.Step,
		"action":        in.Action,
		"error":         in.Error,
	}).Info("Step " + in.Status)
	for _, shot := range in.Screenshots {
		logger.Shot(l, shot)
	}

	id, ok, err := submissionID(in.SubmissionID)
	if err != nil || !ok || a.Store == nil {
		return err
	}
	return a.Store.UpdateStepStatus(ctx, id, in.Step, in.Status, in.Error, in.Screenshots...)
}

// FinishCase logs the case result and stores it on the submission.
func (a *Activities) FinishCase(ctx context.Context, in FinishCaseInput) error {
	l := GetDSLActivityLogger(ctx)
	logger.Status(l, fmt.Sprintf("Case %s finished with %s", in.CaseName, in.Result.Result))

	id, ok, err := submissionID(in.SubmissionID)
	if err != nil || !ok || a.Store == nil {
		return err
	}
	return a.Store.FinishSubmission(ctx, id, in.Result)
}

// ReportFailure files a report for a failed case. It returns "" when no reporter
// is configured.
func (a *Activities) ReportFailure(ctx context.Context, r reports.FailureReport) (string, error) {
	l := GetDSLActivityLogger(ctx)
	if a.Reporter == nil {
		l.WithField("case", r.CaseName).Info("No failure reporter configured")
		return "", nil
	}
	url, err := a.Reporter.ReportFailure(ctx, r)
	if err != nil {
		return "", err
	}
	logger.Documentation(l, "Failure report for "+r.CaseName+": "+url)
	return url, nil
}

func submissionID(raw string) (uuid.UUID, bool, error) {
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("invalid submission id %q: %w", raw, err)
	}
	return id, true, nil
}
