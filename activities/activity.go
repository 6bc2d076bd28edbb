package activities

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/compiler"
	"github.com/surajsub/sapgui-step-dsl/models"
	"github.com/surajsub/sapgui-step-dsl/runner"
	"go.temporal.io/sdk/activity"
)

// SecretsProvider returns the logon credentials for a SAP system.
type SecretsProvider interface {
	GetCredentials(ctx context.Context, system string) (models.Credentials, error)
}

// Activities holds what the case activities need. Store, Secrets and Reporter are
// optional.
type Activities struct {
	Driver   runner.Driver
	Secrets  SecretsProvider
	Store    StepStore
	Reporter Reporter
}

// RunStep performs one session call against the SAP GUI driver.
func (a *Activities) RunStep(ctx context.Context, call runner.Call) (any, error) {
	logger := GetDSLActivityLogger(ctx)
	info := activity.GetInfo(ctx)
	logger.WithFields(logrus.Fields{
		"step":        call.Step,
		"action":      call.Action,
		"workflow_id": info.WorkflowExecution.ID,
		"attempt":     info.Attempt,
	}).Infof("Running %s", call.String())

	activity.RecordHeartbeat(ctx, fmt.Sprintf("Executing step %d (%s)", call.Step, call.Action))

	if a.Driver == nil {
		return nil, fmt.Errorf("no SAP GUI driver configured for %s", call.Method)
	}
	args := call.Args
	if call.Method == compiler.OpenConnection && a.Secrets != nil {
		var err error
		if args, err = a.withCredentials(ctx, args); err != nil {
			logger.WithError(err).Error("Failed to load credentials")
			return nil, err
		}
	}

	out, err := a.Driver.Call(ctx, call.Method, args)
	if err != nil {
		logger.WithError(err).Errorf("Step %d failed", call.Step)
		return nil, fmt.Errorf("%s: %w", call.Method, err)
	}
	return out, nil
}

// withCredentials appends the user and password of the system named by the first
// argument of open_connection.
func (a *Activities) withCredentials(ctx context.Context, args []runner.Argument) ([]runner.Argument, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s needs a system", compiler.OpenConnection)
	}
	system := fmt.Sprint(args[0].Value)
	creds, err := a.Secrets.GetCredentials(ctx, system)
	if err != nil {
		return nil, err
	}
	out := append([]runner.Argument(nil), args...)
	return append(out,
		runner.Argument{Name: "user", Value: creds.UserName},
		runner.Argument{Name: "password", Value: creds.Password},
	), nil
}
