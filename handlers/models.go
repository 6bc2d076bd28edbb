package handlers

import (
	"github.com/surajsub/sapgui-step-dsl/compiler"
)

// SubmissionMeta is the optional `Submission:` block of a YAML case body. JSON and
// plain text bodies pass the same fields as query parameters.
type SubmissionMeta struct {
	Account              string `yaml:"account" json:"account"`
	Submitter            string `yaml:"submitter" json:"submitter"`
	AwaitSignalOnFailure bool   `yaml:"await_signal_on_failure" json:"await_signal_on_failure"`
	ReportFailures       bool   `yaml:"report_failures" json:"report_failures"`
}

type submissionEnvelope struct {
	Submission SubmissionMeta `yaml:"Submission"`
}

type CompileResponse struct {
	Case        string               `json:"case"`
	Statements  []compiler.Statement `json:"statements"`
	Diagnostics compiler.Diagnostics `json:"diagnostics,omitempty"`
	Python      string               `json:"python"`
}

type CompileErrorResponse struct {
	Error       string               `json:"error"`
	Diagnostics compiler.Diagnostics `json:"diagnostics,omitempty"`
}

type SubmitResponse struct {
	SubmittedBy    string `json:"submitted_by"`
	SubmissionID   string `json:"submission_id"`
	WorkflowID     string `json:"workflow_id"`
	SubmissionTime string `json:"submission_time"`
}
