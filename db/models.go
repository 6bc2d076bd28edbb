package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/surajsub/sapgui-step-dsl/cases"
	"github.com/surajsub/sapgui-step-dsl/models"
	"gorm.io/datatypes"
)

// Submission is one case handed to the service for a run.
type Submission struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CaseName   string
	Account    string
	Submitter  string
	System     string
	WorkflowID string
	RunID      string
	Status     string
	// Case is the loaded case without its compiled steps.
	Case      datatypes.JSON
	Result    datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
	Steps     []SubmissionStep `gorm:"foreignKey:SubmissionID"`
}

type SubmissionStep struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionID  uuid.UUID `gorm:"type:uuid;index"`
	StepIndex     int
	Action        string
	Line          string
	Statement     datatypes.JSON
	Status        string // PENDING, STARTED, SUCCESS, FAILED, IGNORED
	Error         string
	Screenshots   pq.StringArray `gorm:"type:text[]"`
	RetryCount    int
	LastUpdatedAt time.Time
}

// StepStatus is the JSON view of a stored step.
type StepStatus struct {
	Index       int      `json:"index"`
	Action      string   `json:"action"`
	Line        string   `json:"line"`
	Status      string   `json:"status"`
	Error       string   `json:"error,omitempty"`
	Screenshots []string `json:"screenshots,omitempty"`
	RetryCount  int      `json:"retry_count"`
}

func (s SubmissionStep) View() StepStatus {
	return StepStatus{
		Index:       s.StepIndex,
		Action:      s.Action,
		Line:        s.Line,
		Status:      s.Status,
		Error:       s.Error,
		Screenshots: []string(s.Screenshots),
		RetryCount:  s.RetryCount,
	}
}

// NewSubmission builds a pending submission from a compiled case. Steps that did
// not compile to a statement are stored too so indices line up with the case.
func NewSubmission(c *cases.Case, account, submitter string) (*Submission, error) {
	snapshot := *c
	snapshot.Steps = nil
	caseJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode case %s: %w", c.Name, err)
	}

	sub := &Submission{
		ID:        uuid.New(),
		CaseName:  c.Name,
		Account:   account,
		Submitter: submitter,
		System:    c.System,
		Status:    models.StatusPending,
		Case:      datatypes.JSON(caseJSON),
	}
	for i, rec := range c.Steps {
		st, err := json.Marshal(rec.Statement)
		if err != nil {
			return nil, fmt.Errorf("failed to encode step %d: %w", i, err)
		}
		sub.Steps = append(sub.Steps, SubmissionStep{
			ID:            uuid.New(),
			SubmissionID:  sub.ID,
			StepIndex:     i,
			Action:        rec.Descriptor.Action,
			Line:          rec.Descriptor.Raw,
			Statement:     datatypes.JSON(st),
			Status:        models.StatusPending,
			Screenshots:   pq.StringArray{},
			LastUpdatedAt: time.Now(),
		})
	}
	return sub, nil
}
