package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
)

// TemporalConnection keeps a Temporal client alive, redialing when the health check
// fails. GetClient returns nil until the first dial succeeds.
type TemporalConnection struct {
	options client.Options
	logger  *logrus.Logger
	dial    func(client.Options) (client.Client, error)

	retryDelay  time.Duration
	checkPeriod time.Duration

	mu      sync.RWMutex
	tClient client.Client
}

func NewTemporalConnection(options client.Options, logger *logrus.Logger) *TemporalConnection {
	return &TemporalConnection{
		options:     options,
		logger:      logger,
		dial:        client.Dial,
		retryDelay:  5 * time.Second,
		checkPeriod: 10 * time.Second,
	}
}

// StartTemporalClient starts the client with reconnect monitoring until ctx is done.
func StartTemporalClient(ctx context.Context, options client.Options, logger *logrus.Logger) *TemporalConnection {
	conn := NewTemporalConnection(options, logger)
	go conn.run(ctx)
	return conn
}

func (t *TemporalConnection) run(ctx context.Context) {
	defer t.replaceClient(nil)
	for {
		c, err := t.dial(t.options)
		if err != nil {
			t.logger.WithError(err).Warnf("Temporal unavailable, retrying in %s", t.retryDelay)
			if !sleepCtx(ctx, t.retryDelay) {
				return
			}
			continue
		}
		t.replaceClient(c)
		t.logger.WithField("host", t.options.HostPort).Info("Connected to Temporal")

		for {
			if !sleepCtx(ctx, t.checkPeriod) {
				return
			}
			if err := healthCheck(ctx, c); err != nil {
				t.logger.WithError(err).Warn("Temporal connection unhealthy, reconnecting")
				break
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// GetClient returns the current Temporal client or nil
func (t *TemporalConnection) GetClient() client.Client {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tClient
}

// replaceClient swaps the current client, closing the old one.
func (t *TemporalConnection) replaceClient(c client.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tClient != nil {
		t.tClient.Close()
	}
	t.tClient = c
}

func healthCheck(ctx context.Context, c client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := c.WorkflowService().GetSystemInfo(ctx, &workflowservice.GetSystemInfoRequest{})
	return err
}
