package activities

import (
	"context"

	"github.com/sirupsen/logrus"
)

type WorkflowLogger struct {
	logger *logrus.Logger
}

type loggerKey struct{}

// WithLogger stores l in ctx for the activities. Workers pass the result as their
// background activity context.
func WithLogger(ctx context.Context, l *logrus.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, &WorkflowLogger{logger: l})
}

func GetDSLActivityLogger(ctx context.Context) *logrus.Logger {
	if wl, ok := ctx.Value(loggerKey{}).(*WorkflowLogger); ok && wl.logger != nil {
		return wl.logger
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	logger.Warn("Using fallback logger as no logger was passed")
	return logger
}
