package workers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/activities"
	"github.com/surajsub/sapgui-step-dsl/workflows"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Worker is the part of worker.Worker the manager drives.
type Worker interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
	Start() error
	Stop()
}

type WorkerManager struct {
	client client.Client
	acts   *activities.Activities
	logger *logrus.Logger

	// newWorker is swapped out in tests.
	newWorker func(c client.Client, queue string, opts worker.Options) Worker

	workers map[string]Worker

	activeCount int
	mu          sync.Mutex
	workerIDs   map[string]string
}

func NewWorkerManager(c client.Client, acts *activities.Activities, logger *logrus.Logger) *WorkerManager {
	return &WorkerManager{
		client: c,
		acts:   acts,
		logger: logger,
		newWorker: func(c client.Client, queue string, opts worker.Options) Worker {
			return worker.New(c, queue, opts)
		},
		workers:   make(map[string]Worker),
		workerIDs: make(map[string]string),
	}
}

// StartWorker starts a worker running CaseWorkflow and the step activities on
// queueName. Starting an already running queue is a no-op.
func (m *WorkerManager) StartWorker(customername, queueName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workers[queueName]; exists {
		m.logger.Infof("Worker for queue %s is already running for customer %s", queueName, customername)
		return nil
	}

	workerID := uuid.New().String()
	w := m.newWorker(m.client, queueName, worker.Options{
		Identity:                  workerID,
		BackgroundActivityContext: activities.WithLogger(context.Background(), m.logger),
	})
	w.RegisterWorkflow(workflows.CaseWorkflow)
	w.RegisterActivity(m.acts)

	if err := w.Start(); err != nil {
		m.logger.WithError(err).Errorf("Worker for queue %s failed to start", queueName)
		return err
	}

	m.workers[queueName] = w
	m.workerIDs[queueName] = workerID
	m.activeCount++
	m.logger.WithFields(logrus.Fields{
		"worker_id": workerID,
		"queue":     queueName,
		"customer":  customername,
	}).Info("Started worker")
	return nil
}

func (m *WorkerManager) StopWorker(queueName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, exists := m.workers[queueName]; exists {
		w.Stop()
		delete(m.workers, queueName)
		delete(m.workerIDs, queueName)
		m.activeCount--
		m.logger.Infof("Stopped worker for queue %s", queueName)
	} else {
		m.logger.Warnf("Worker for queue %s is not running", queueName)
	}
}

// StopAll stops every running worker.
func (m *WorkerManager) StopAll() {
	m.mu.Lock()
	queues := make([]string, 0, len(m.workers))
	for q := range m.workers {
		queues = append(queues, q)
	}
	m.mu.Unlock()
	for _, q := range queues {
		m.StopWorker(q)
	}
}

// GetActiveWorkers returns the number of active workers.
func (m *WorkerManager) GetActiveWorkers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCount
}

// GetWorkerID returns the worker ID for a specific task queue.
func (m *WorkerManager) GetWorkerID(queueName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workerIDs[queueName]
}
