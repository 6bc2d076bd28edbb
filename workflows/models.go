package workflows

import (
	"github.com/surajsub/sapgui-step-dsl/cases"
)

// StepControlSignal carries models.RetrySignal values for a step that is waiting
// after a failure. StepID is the step index.
const StepControlSignal = "step_control_signal"

const (
	SignalRetry  = "retry"
	SignalIgnore = "ignore"
)

// CaseRunInput starts a CaseWorkflow. Case carries the raw step lines; the
// workflow compiles them itself.
type CaseRunInput struct {
	SubmissionID string     `json:"submission_id,omitempty"`
	Submitter    string     `json:"submitter,omitempty"`
	Case         cases.Case `json:"case"`
	Strict       bool       `json:"strict,omitempty"`
	// AwaitSignalOnFailure parks a step whose activity failed until a retry or
	// ignore signal arrives.
	AwaitSignalOnFailure bool `json:"await_signal_on_failure,omitempty"`
	ReportFailures       bool `json:"report_failures,omitempty"`
	MaxIterations        int  `json:"max_iterations,omitempty"`
}
