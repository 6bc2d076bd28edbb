package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/surajsub/sapgui-step-dsl/models"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("submission not found")

// Store keeps submissions and their step statuses.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// DSN builds the postgres connection string. DB_* environment variables win over
// the arguments.
func DSN(dbuser, dbpassword, dbname string) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", dbuser),
		getEnv("DB_PASS", dbpassword),
		getEnv("DB_NAME", dbname),
		getEnv("DB_PORT", "5432"),
	)
}

// OpenPostgres connects to postgres and migrates the submission tables.
func OpenPostgres(dbuser, dbpassword, dbname string) (*Store, error) {
	gdb, err := gorm.Open(postgres.Open(DSN(dbuser, dbpassword, dbname)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("GORM DB connection failed: %w", err)
	}
	s := NewStore(gdb)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Submission{}, &SubmissionStep{}); err != nil {
		return fmt.Errorf("failed to migrate submission tables: %w", err)
	}
	return nil
}

// CreateSubmission inserts a submission together with its steps.
func (s *Store) CreateSubmission(ctx context.Context, sub *Submission) error {
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to insert submission %s: %w", sub.ID, err)
	}
	return nil
}

// SetWorkflow records the workflow started for a submission and marks it STARTED.
func (s *Store) SetWorkflow(ctx context.Context, id uuid.UUID, workflowID, runID string) error {
	return s.updateSubmission(ctx, id, map[string]any{
		"workflow_id": workflowID,
		"run_id":      runID,
		"status":      models.StatusStarted,
	})
}

// FinishSubmission stores the case result.
func (s *Store) FinishSubmission(ctx context.Context, id uuid.UUID, result models.ResultCase) error {
	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	status := models.StatusSuccess
	if result.Result == models.FAIL {
		status = models.StatusFailed
	}
	return s.updateSubmission(ctx, id, map[string]any{
		"status": status,
		"result": datatypes.JSON(out),
	})
}

func (s *Store) updateSubmission(ctx context.Context, id uuid.UUID, set map[string]any) error {
	res := s.db.WithContext(ctx).Model(&Submission{}).Where("id = ?", id).Updates(set)
	if res.Error != nil {
		return fmt.Errorf("failed to update submission %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// UpdateStepStatus sets the status of one step. Screenshots are appended to the ones
// already stored.
func (s *Store) UpdateStepStatus(ctx context.Context, id uuid.UUID, index int, status, stepErr string, screenshots ...string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var step SubmissionStep
		err := tx.Where("submission_id = ? AND step_index = ?", id, index).First(&step).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s step %d", ErrNotFound, id, index)
		}
		if err != nil {
			return fmt.Errorf("failed to load step %d of %s: %w", index, id, err)
		}
		shots := append(pq.StringArray{}, step.Screenshots...)
		shots = append(shots, screenshots...)
		return tx.Model(&step).Updates(map[string]any{
			"status":          status,
			"error":           stepErr,
			"screenshots":     shots,
			"last_updated_at": time.Now(),
		}).Error
	})
}

// IncrementRetry counts a retry signal for a step.
func (s *Store) IncrementRetry(ctx context.Context, id uuid.UUID, index int) error {
	res := s.db.WithContext(ctx).Model(&SubmissionStep{}).
		Where("submission_id = ? AND step_index = ?", id, index).
		Update("retry_count", gorm.Expr("retry_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to count retry for step %d of %s: %w", index, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s step %d", ErrNotFound, id, index)
	}
	return nil
}

// GetSubmission loads a submission with its steps in step order.
func (s *Store) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var sub Submission
	err := s.db.WithContext(ctx).
		Preload("Steps", func(tx *gorm.DB) *gorm.DB { return tx.Order("step_index") }).
		First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load submission %s: %w", id, err)
	}
	return &sub, nil
}

// StepsByStatus lists the steps of a submission in the given status.
func (s *Store) StepsByStatus(ctx context.Context, id uuid.UUID, status string) ([]SubmissionStep, error) {
	var steps []SubmissionStep
	err := s.db.WithContext(ctx).
		Where("submission_id = ? AND status = ?", id, status).
		Order("step_index").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s steps of %s: %w", status, id, err)
	}
	return steps, nil
}
