package workflows

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/activities"
	"github.com/surajsub/sapgui-step-dsl/cases"
	"github.com/surajsub/sapgui-step-dsl/compiler"
	"github.com/surajsub/sapgui-step-dsl/models"
	"github.com/surajsub/sapgui-step-dsl/reports"
	"github.com/surajsub/sapgui-step-dsl/runner"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// acts is only used for activity method references.
var acts *activities.Activities

func activityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	}
}

// CaseWorkflow compiles the case and runs it, one RunStep activity per session
// call. Step statuses are recorded as they change.
func CaseWorkflow(ctx workflow.Context, input CaseRunInput) (models.ResultCase, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting CaseWorkflow", "case", input.Case.Name, "submission_id", input.SubmissionID)
	ctx = workflow.WithActivityOptions(ctx, activityOptions())

	c := input.Case
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	if _, err := cases.Compile(&c, compiler.New(compiler.WithStrict(input.Strict), compiler.WithLogger(quiet))); err != nil {
		return models.ResultCase{}, temporal.NewNonRetryableApplicationError("case does not compile", "CompileError", err)
	}

	exec := &activityExecutor{
		ctx:     ctx,
		signals: workflow.GetSignalChannel(ctx, StepControlSignal),
		await:   input.AwaitSignalOnFailure,
		logger:  logger,
		ignored: map[int]bool{},
		shots:   map[int][]string{},
	}
	obs := &statusObserver{ctx: ctx, exec: exec, submissionID: input.SubmissionID}

	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithObserver(obs),
		runner.WithClock(func() time.Time { return workflow.Now(ctx) }),
		runner.WithSleep(func(d time.Duration) { _ = workflow.Sleep(ctx, d) }),
	}
	if input.MaxIterations > 0 {
		opts = append(opts, runner.WithMaxIterations(input.MaxIterations))
	}
	result, err := runner.New(exec, opts...).Run(&c)
	if err != nil {
		return result, err
	}

	finish := activities.FinishCaseInput{SubmissionID: input.SubmissionID, CaseName: c.Name, Result: result}
	if err := workflow.ExecuteActivity(ctx, acts.FinishCase, finish).Get(ctx, nil); err != nil {
		return result, fmt.Errorf("failed to record result of case %s: %w", c.Name, err)
	}

	if result.Result == models.FAIL && input.ReportFailures {
		report := failureReport(ctx, input, &c, result)
		var issueURL string
		if err := workflow.ExecuteActivity(ctx, acts.ReportFailure, report).Get(ctx, &issueURL); err != nil {
			logger.Error("Failure report could not be filed", "error", err)
		} else if issueURL != "" {
			logger.Info("Failure reported", "url", issueURL)
		}
	}

	logger.Info("Workflow complete", "result", result.Result)
	return result, nil
}

func failureReport(ctx workflow.Context, input CaseRunInput, c *cases.Case, result models.ResultCase) reports.FailureReport {
	r := reports.FailureReport{
		CaseName:     c.Name,
		SubmissionID: input.SubmissionID,
		WorkflowID:   workflow.GetInfo(ctx).WorkflowExecution.ID,
		System:       c.System,
		Submitter:    input.Submitter,
		Result:       result,
	}
	for _, i := range result.FailedSteps {
		rec := c.Steps[i]
		r.Steps = append(r.Steps, reports.StepLine{Index: i, Line: rec.Descriptor.Raw, Error: rec.Status.Error})
	}
	return r
}

// activityExecutor runs session calls as activities. When await is set a failed
// call blocks on the step control signal until it is retried successfully or
// ignored.
type activityExecutor struct {
	ctx     workflow.Context
	signals workflow.ReceiveChannel
	await   bool
	logger  log.Logger
	ignored map[int]bool
	shots   map[int][]string
}

func (e *activityExecutor) Execute(call runner.Call) (any, error) {
	var out any
	err := workflow.ExecuteActivity(e.ctx, acts.RunStep, call).Get(e.ctx, &out)
	if call.Method == compiler.TakeScreenshot && err == nil {
		if name, ok := call.Arg("filename"); ok {
			e.shots[call.Step] = append(e.shots[call.Step], fmt.Sprint(name))
		}
	}
	if err == nil || !e.await || call.Method == compiler.TakeScreenshot {
		return out, err
	}

	e.logger.Error("Step failed, waiting for signal", "step", call.Step, "action", call.Action, "error", err)
	stepID := strconv.Itoa(call.Step)
	for {
		var signal models.RetrySignal
		e.signals.Receive(e.ctx, &signal)
		if signal.StepID != stepID {
			e.logger.Debug("Signal is for another step", "signal_step", signal.StepID, "step", stepID)
			continue
		}

		switch signal.Action {
		case SignalIgnore:
			e.logger.Info("Step ignored via signal", "step", call.Step)
			e.ignored[call.Step] = true
			return nil, nil
		case SignalRetry:
			retry := call
			retry.Args = withInputs(call.Args, signal.Inputs)
			var retryOut any
			if err := workflow.ExecuteActivity(e.ctx, acts.RunStep, retry).Get(e.ctx, &retryOut); err != nil {
				e.logger.Error("Retry failed again", "step", call.Step, "error", err)
				continue
			}
			return retryOut, nil
		default:
			e.logger.Warn("Unknown signal action received", "action", signal.Action)
		}
	}
}

// withInputs overrides arguments from a retry signal. Named arguments are matched
// by name, positional ones by their index.
func withInputs(args []runner.Argument, inputs map[string]any) []runner.Argument {
	out := make([]runner.Argument, len(args))
	copy(out, args)
	for i, a := range out {
		key := a.Name
		if key == "" {
			key = strconv.Itoa(i)
		}
		if v, ok := inputs[key]; ok {
			out[i].Value = v
		}
	}
	return out
}

// statusObserver records STARTED and the final status of every step.
type statusObserver struct {
	ctx          workflow.Context
	exec         *activityExecutor
	submissionID string
}

func (o *statusObserver) StepStarted(index int, rec compiler.StepRecord) error {
	return o.record(activities.StepStatusInput{
		SubmissionID: o.submissionID,
		Step:         index,
		Action:       rec.Descriptor.Action,
		Status:       models.StatusStarted,
	})
}

func (o *statusObserver) StepFinished(index int, rec compiler.StepRecord) error {
	in := activities.StepStatusInput{
		SubmissionID: o.submissionID,
		Step:         index,
		Action:       rec.Descriptor.Action,
		Error:        rec.Status.Error,
		Screenshots:  o.exec.shots[index],
	}
	ignored := o.exec.ignored[index]
	delete(o.exec.shots, index)
	delete(o.exec.ignored, index)
	switch {
	case ignored:
		in.Status = models.StatusIgnored
	case rec.Status.Result == models.PASS:
		in.Status = models.StatusSuccess
	case rec.Status.Result == models.WARN:
		in.Status = models.StatusWarned
	default:
		in.Status = models.StatusFailed
	}
	return o.record(in)
}

func (o *statusObserver) record(in activities.StepStatusInput) error {
	if err := workflow.ExecuteActivity(o.ctx, acts.RecordStepStatus, in).Get(o.ctx, nil); err != nil {
		return fmt.Errorf("failed to record %s for step %d: %w", in.Status, in.Step, err)
	}
	return nil
}
