package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/cases"
	"github.com/surajsub/sapgui-step-dsl/compiler"
	"github.com/surajsub/sapgui-step-dsl/db"
	"github.com/surajsub/sapgui-step-dsl/emitter"
	"github.com/surajsub/sapgui-step-dsl/models"
	"github.com/surajsub/sapgui-step-dsl/workflows"
	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/history/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"gopkg.in/yaml.v2"
)

// SubmissionStore is the part of db.Store the handlers use.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *db.Submission) error
	SetWorkflow(ctx context.Context, id uuid.UUID, workflowID, runID string) error
	GetSubmission(ctx context.Context, id uuid.UUID) (*db.Submission, error)
	IncrementRetry(ctx context.Context, id uuid.UUID, index int) error
}

// API serves the compile and case endpoints. GetClient may return nil while
// Temporal is unreachable.
type API struct {
	Store     SubmissionStore
	GetClient func() client.Client
	Logger    *logrus.Logger
	Namespace string
}

func TaskQueue(account string) string {
	return "customer-task-queue-" + account
}

func (a *API) temporal() client.Client {
	if a.GetClient == nil {
		return nil
	}
	return a.GetClient()
}

func (a *API) logger() *logrus.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

// readCase decodes the request body by content type.
func readCase(c echo.Context) (*cases.Case, SubmissionMeta, error) {
	meta := SubmissionMeta{
		Account:              c.QueryParam("account"),
		Submitter:            c.QueryParam("submitter"),
		AwaitSignalOnFailure: c.QueryParam("await") == "true",
		ReportFailures:       c.QueryParam("report") == "true",
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, meta, fmt.Errorf("cannot read body: %w", err)
	}

	contentType, _, _ := strings.Cut(c.Request().Header.Get(echo.HeaderContentType), ";")
	switch strings.TrimSpace(contentType) {
	case "application/json":
		cs, err := cases.ParseJSON(body)
		return cs, meta, err
	case "application/x-yaml", "text/yaml", "application/yaml":
		var env submissionEnvelope
		if err := yaml.Unmarshal(body, &env); err != nil {
			return nil, meta, fmt.Errorf("invalid YAML: %w", err)
		}
		mergeMeta(&meta, env.Submission)
		cs, err := cases.ParseYAML(body)
		return cs, meta, err
	case "text/plain":
		cs := cases.New()
		cs.StepLines = strings.Split(string(body), "\n")
		return cs, meta, nil
	}
	return nil, meta, echo.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported content type")
}

func mergeMeta(dst *SubmissionMeta, src SubmissionMeta) {
	if src.Account != "" {
		dst.Account = src.Account
	}
	if src.Submitter != "" {
		dst.Submitter = src.Submitter
	}
	dst.AwaitSignalOnFailure = dst.AwaitSignalOnFailure || src.AwaitSignalOnFailure
	dst.ReportFailures = dst.ReportFailures || src.ReportFailures
}

func badRequest(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return c.JSON(he.Code, map[string]any{"error": he.Message})
	}
	return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// compileCase compiles c, answering 422 itself when compilation fails.
func (a *API) compileCase(c echo.Context, cs *cases.Case) (*compiler.Program, bool, error) {
	strict := c.QueryParam("strict") == "true"
	prog, err := cases.Compile(cs, compiler.New(compiler.WithStrict(strict), compiler.WithLogger(a.logger())))
	if err != nil {
		return prog, false, c.JSON(http.StatusUnprocessableEntity, CompileErrorResponse{
			Error:       err.Error(),
			Diagnostics: prog.Diagnostics,
		})
	}
	return prog, true, nil
}

// CompileHandler compiles a case and returns its statements and Python rendering.
func (a *API) CompileHandler(c echo.Context) error {
	cs, _, err := readCase(c)
	if err != nil {
		return badRequest(c, err)
	}
	prog, ok, err := a.compileCase(c, cs)
	if !ok {
		return err
	}
	stmts := prog.Statements()
	return c.JSON(http.StatusOK, CompileResponse{
		Case:        cs.Name,
		Statements:  stmts,
		Diagnostics: prog.Diagnostics,
		Python:      emitter.Source(stmts),
	})
}

// SubmitCaseHandler stores a submission for the case and starts CaseWorkflow on the
// account's task queue.
func (a *API) SubmitCaseHandler(c echo.Context) error {
	logger := a.logger()
	temporalClient := a.temporal()
	if temporalClient == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Temporal client not available"})
	}

	cs, meta, err := readCase(c)
	if err != nil {
		return badRequest(c, err)
	}
	if meta.Account == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing required field: account"})
	}
	if _, ok, err := a.compileCase(c, cs); !ok {
		return err
	}

	ctx := c.Request().Context()
	sub, err := db.NewSubmission(cs, meta.Account, meta.Submitter)
	if err != nil {
		return err
	}
	if err := a.Store.CreateSubmission(ctx, sub); err != nil {
		return err
	}

	input := workflows.CaseRunInput{
		SubmissionID:         sub.ID.String(),
		Submitter:            meta.Submitter,
		Case:                 *cs,
		Strict:               c.QueryParam("strict") == "true",
		AwaitSignalOnFailure: meta.AwaitSignalOnFailure,
		ReportFailures:       meta.ReportFailures,
	}
	input.Case.Steps = nil
	options := client.StartWorkflowOptions{
		ID:        "case-" + meta.Account + "-" + uuid.NewString(),
		TaskQueue: TaskQueue(meta.Account),
	}
	we, err := temporalClient.ExecuteWorkflow(ctx, options, workflows.CaseWorkflow, input)
	if err != nil {
		logger.WithError(err).Error("Failed to start workflow")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if err := a.Store.SetWorkflow(ctx, sub.ID, we.GetID(), we.GetRunID()); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"submission_id": sub.ID.String(),
		"workflow_id":   we.GetID(),
		"run_id":        we.GetRunID(),
	}).Info("Workflow started")

	return c.JSON(http.StatusOK, SubmitResponse{
		SubmittedBy:    meta.Submitter,
		SubmissionID:   sub.ID.String(),
		WorkflowID:     we.GetID(),
		SubmissionTime: time.Now().Format(time.RFC3339),
	})
}

func (a *API) loadSubmission(c echo.Context, raw string) (*db.Submission, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid submission ID"})
	}
	sub, err := a.Store.GetSubmission(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"error": "Submission not found"})
	}
	return sub, err
}

// SubmissionStatusHandler returns the stored step statuses and, when Temporal
// answers, the workflow status.
func (a *API) SubmissionStatusHandler(c echo.Context) error {
	sub, err := a.loadSubmission(c, c.Param("submission_id"))
	if sub == nil {
		return err
	}

	steps := make([]db.StepStatus, 0, len(sub.Steps))
	for _, st := range sub.Steps {
		steps = append(steps, st.View())
	}
	response := map[string]any{
		"submission_id":   sub.ID.String(),
		"case":            sub.CaseName,
		"account":         sub.Account,
		"submitted_by":    sub.Submitter,
		"status":          sub.Status,
		"created_at":      sub.CreatedAt,
		"steps":           steps,
		"temporal_online": false,
	}
	if len(sub.Result) > 0 {
		response["result"] = sub.Result
	}

	temporalClient := a.temporal()
	if temporalClient == nil || sub.WorkflowID == "" {
		return c.JSON(http.StatusOK, response)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()
	resp, err := temporalClient.DescribeWorkflowExecution(ctx, sub.WorkflowID, sub.RunID)
	if err != nil {
		a.logger().WithError(err).Warnf("Error describing workflow [%s]", sub.WorkflowID)
		return c.JSON(http.StatusOK, response)
	}

	info := resp.GetWorkflowExecutionInfo()
	startTime := info.GetStartTime().AsTime()
	duration := info.GetCloseTime().AsTime().Sub(startTime)
	if info.GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING {
		duration = time.Since(startTime)
	}
	response["temporal_online"] = true
	response["workflow_status"] = info.GetStatus().String()
	response["start_time"] = startTime
	response["duration"] = duration.String()
	return c.JSON(http.StatusOK, response)
}

// SendSignalHandler forwards a retry or ignore decision for a waiting step.
func (a *API) SendSignalHandler(c echo.Context) error {
	var payload models.RetrySignal
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid signal payload"})
	}
	if payload.Action != workflows.SignalRetry && payload.Action != workflows.SignalIgnore {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "action must be retry or ignore"})
	}
	step, err := strconv.Atoi(payload.StepID)
	if err != nil || step < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "step_id must be a step index"})
	}
	submissionID := c.QueryParam("submission_id")
	if submissionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing submission_id"})
	}

	temporalClient := a.temporal()
	if temporalClient == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Temporal client not available"})
	}
	sub, err := a.loadSubmission(c, submissionID)
	if sub == nil {
		return err
	}
	if sub.WorkflowID == "" {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Submission has no running workflow"})
	}

	ctx := c.Request().Context()
	if err := temporalClient.SignalWorkflow(ctx, sub.WorkflowID, sub.RunID, workflows.StepControlSignal, payload); err != nil {
		a.logger().WithError(err).Error("Failed to signal workflow")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to send signal"})
	}
	if payload.Action == workflows.SignalRetry {
		if err := a.Store.IncrementRetry(ctx, sub.ID, step); err != nil {
			a.logger().WithError(err).Warn("Failed to count retry")
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":        "Signal submitted",
		"submitted_by":  sub.Submitter,
		"submission_id": submissionID,
		"step":          payload.StepID,
		"action":        payload.Action,
	})
}

// WorkflowActivityHistoryHandler lists the activity events of a workflow run.
func (a *API) WorkflowActivityHistoryHandler(c echo.Context) error {
	workflowID := c.Param("workflow_id")
	temporalClient := a.temporal()
	if temporalClient == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Temporal client not available"})
	}
	namespace := a.Namespace
	if namespace == "" {
		namespace = "default"
	}

	resp, err := temporalClient.WorkflowService().GetWorkflowExecutionHistory(c.Request().Context(), &workflowservice.GetWorkflowExecutionHistoryRequest{
		Namespace: namespace,
		Execution: &commonpb.WorkflowExecution{
			WorkflowId: workflowID,
			RunId:      c.QueryParam("run_id"),
		},
	})
	if err != nil {
		a.logger().WithError(err).Error("Failed to fetch history")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	activityEvents := []*history.HistoryEvent{}
	for _, event := range resp.GetHistory().GetEvents() {
		switch event.GetEventType() {
		case enumspb.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_STARTED,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_COMPLETED,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_FAILED,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_TIMED_OUT,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_CANCELED:
			activityEvents = append(activityEvents, event)
		}
	}
	return c.JSON(http.StatusOK, activityEvents)
}

// CustomHTTPErrorHandler hides internal errors behind a request id. Errors raised as
// echo.HTTPError keep their status.
func CustomHTTPErrorHandler(err error, c echo.Context) {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		_ = c.JSON(he.Code, map[string]any{"error": he.Message})
		return
	}

	requestID, _ := c.Get("requestID").(string)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	c.Logger().Errorf("Request ID: %s | Internal error: %v", requestID, err)
	_ = c.JSON(http.StatusInternalServerError, map[string]any{
		"error":      "Internal server error. Please contact support with the request ID.",
		"request_id": requestID,
	})
}

func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := uuid.New().String()
		c.Set("requestID", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)
		return next(c)
	}
}
