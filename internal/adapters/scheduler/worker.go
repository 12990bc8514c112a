package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/pkg/observability"
	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

// WorkerConfig holds polling worker settings
type WorkerConfig struct {
	PollInterval time.Duration
	LockTimeout  time.Duration
	Concurrency  int
}

// DefaultWorkerConfig returns production worker settings
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 5 * time.Second,
		LockTimeout:  5 * time.Minute,
		Concurrency:  4,
	}
}

// Worker polls the scheduled_tasks table and dispatches due tasks to the
// registered handlers. Claiming uses row locks with a lock timeout, so a
// crashed worker's tasks become claimable again - delivery is at-least-once
// and handlers are required to be idempotent.
type Worker struct {
	tasks    ports.TaskRepository
	handlers map[domain.TaskKind]ports.TaskHandler
	logger   ports.Logger
	config   WorkerConfig
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	cancel   context.CancelFunc
}

// NewWorker creates a polling worker over the task repository
func NewWorker(tasks ports.TaskRepository, config WorkerConfig, logger ports.Logger) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = 5 * time.Minute
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	return &Worker{
		tasks:    tasks,
		handlers: make(map[domain.TaskKind]ports.TaskHandler),
		logger:   logger,
		config:   config,
		workerID: uuid.New(),
		sem:      make(chan struct{}, config.Concurrency),
	}
}

// RegisterHandler binds a task kind to its handler. Must be called before
// Start.
func (w *Worker) RegisterHandler(kind domain.TaskKind, handler ports.TaskHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = handler
}

// Start begins polling in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return fmt.Errorf("no task handlers registered")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	go w.run(ctx)

	w.logger.Info("scheduler worker started",
		ports.String("worker_id", w.workerID.String()),
		ports.Int("concurrency", w.config.Concurrency))

	return nil
}

// Stop halts polling and waits for in-flight handlers to finish
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("scheduler worker stopped", ports.String("worker_id", w.workerID.String()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler worker drain: %w", ctx.Err())
	}
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainDue(ctx)
		}
	}
}

// drainDue claims and dispatches every currently-due task, up to the
// concurrency limit
func (w *Worker) drainDue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w.sem <- struct{}{}:
		}

		now := timeutil.Now()
		task, err := w.tasks.ClaimDue(ctx, nil, w.workerID, now, now.Add(w.config.LockTimeout))
		if err != nil {
			<-w.sem
			w.logger.Error("claim due task failed", ports.Err(err))
			return
		}
		if task == nil {
			<-w.sem
			return
		}

		w.wg.Add(1)
		go func(task *domain.ScheduledTask) {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.execute(ctx, task)
		}(task)
	}
}

// execute runs one claimed task through its handler
func (w *Worker) execute(ctx context.Context, task *domain.ScheduledTask) {
	w.mu.RLock()
	handler, ok := w.handlers[task.Kind]
	w.mu.RUnlock()

	taskID, err := uuid.Parse(task.ID)
	if err != nil {
		w.logger.Error("claimed task has invalid id", ports.String("task_id", task.ID))
		return
	}
	subscriptionID, err := uuid.Parse(task.SubscriptionID)
	if err != nil {
		w.logger.Error("claimed task has invalid subscription id",
			ports.String("task_id", task.ID),
			ports.String("subscription_id", task.SubscriptionID))
		return
	}

	if !ok {
		w.logger.Error("no handler for task kind",
			ports.String("task_id", task.ID),
			ports.String("kind", string(task.Kind)))
		_ = w.tasks.Release(ctx, nil, taskID)
		return
	}

	start := timeutil.Now()
	err = handler(ctx, subscriptionID)
	observability.ObserveTaskExecution(string(task.Kind), err == nil, time.Since(start))

	if err != nil {
		w.logger.Error("deferred task failed, releasing for retry",
			ports.String("task_id", task.ID),
			ports.String("subscription_id", task.SubscriptionID),
			ports.String("kind", string(task.Kind)),
			ports.Int("attempts", task.Attempts),
			ports.Err(err))
		if releaseErr := w.tasks.Release(ctx, nil, taskID); releaseErr != nil {
			w.logger.Error("release task failed", ports.String("task_id", task.ID), ports.Err(releaseErr))
		}
		return
	}

	if err := w.tasks.MarkDone(ctx, nil, taskID); err != nil {
		// The handler committed its own transaction; a failed status flip
		// only means the task may fire again, which handlers tolerate.
		w.logger.Error("mark task done failed", ports.String("task_id", task.ID), ports.Err(err))
		return
	}

	w.logger.Info("deferred task completed",
		ports.String("task_id", task.ID),
		ports.String("subscription_id", task.SubscriptionID),
		ports.String("kind", string(task.Kind)))
}
