package models

// Result is the outcome recorded for a step or a whole case.
type Result string

const (
	PASS Result = "PASS"
	FAIL Result = "FAIL"
	WARN Result = "WARN"
)

// Step statuses stored for a submission step.
const (
	StatusPending = "PENDING"
	StatusStarted = "STARTED"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusWarned  = "WARNED"
	StatusIgnored = "IGNORED"
)

// ResultStep is the pass/fail placeholder attached to every compiled step.
type ResultStep struct {
	Result Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

type ResultCase struct {
	Result            Result   `json:"result,omitempty"`
	FailedSteps       []int    `json:"failed_steps"`
	FailedScreenShots []string `json:"failed_screenshots"`
	PassedSteps       []int    `json:"passed_steps"`
	PassedScreenShots []string `json:"passed_screenshots"`
	WarnedSteps       []int    `json:"warned_steps"`
	Error             string   `json:"error,omitempty"`
}

// LoggingConfig mirrors the logging block a case or the service config may carry.
type LoggingConfig struct {
	LogName      string `yaml:"log_name" json:"log_name"`
	LogPath      string `yaml:"log_path" json:"log_path"`
	LogFilename  string `yaml:"log_filename" json:"log_filename"`
	LogVerbosity int    `yaml:"log_verbosity" json:"log_verbosity"`
	LogFileMode  string `yaml:"log_file_mode" json:"log_file_mode"`
	LogStream    bool   `yaml:"log_stream" json:"log_stream"`
}

type Credentials struct {
	URL      string
	UserName string
	Password string
	Customer string
	Service  string
}

type RetrySignal struct {
	StepID string                 `json:"step_id"`
	Action string                 `json:"action"`
	Inputs map[string]interface{} `json:"inputs"`
}
