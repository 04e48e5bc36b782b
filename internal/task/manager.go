package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jurkyy/project-pilot/internal/metrics"
)

var (
	// ErrNotFound is returned for unknown task ids
	ErrNotFound = errors.New("task not found")
	// ErrQueueFull is returned when no more tasks can be queued
	ErrQueueFull = errors.New("task queue is full")
	// ErrShutdown is returned once the manager is shutting down
	ErrShutdown = errors.New("task manager is shutting down")
)

// StatusCallback is a function that is called when a task status changes
type StatusCallback func(task Task)

// Runner executes one task; progress is reported through the Manager
type Runner func(ctx context.Context, t Task) (Outcome, error)

// Options configures a Manager
type Options struct {
	MaxConcurrentTasks int
	QueueSize          int
	// TaskTimeout bounds a single run; zero means no limit
	TaskTimeout time.Duration
}

// Manager manages tasks and the workers that run them
type Manager struct {
	tasks           map[string]*Task
	mu              sync.RWMutex
	statusCallbacks map[string][]StatusCallback
	callbackMu      sync.RWMutex

	opts      Options
	taskQueue chan string
	closed    bool
	queueMu   sync.Mutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
}

// NewManager creates a new task manager. Call Start to begin processing.
func NewManager(opts Options, logger *slog.Logger) *Manager {
	if opts.MaxConcurrentTasks < 1 {
		opts.MaxConcurrentTasks = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		tasks:           make(map[string]*Task),
		statusCallbacks: make(map[string][]StatusCallback),
		opts:            opts,
		taskQueue:       make(chan string, opts.QueueSize),
		ctx:             ctx,
		cancel:          cancel,
		logger:          logger,
	}
}

// Start launches the worker pool
func (m *Manager) Start(run Runner) {
	for i := 0; i < m.opts.MaxConcurrentTasks; i++ {
		m.wg.Add(1)
		go m.worker(run)
	}
}

// CreateTask registers a new pending task
func (m *Manager) CreateTask(description, name, language string) Task {
	now := time.Now()
	task := &Task{
		ID:          uuid.New().String(),
		Description: description,
		Name:        name,
		Language:    language,
		Status:      StatusPending,
		Message:     "Task created",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()

	return task.clone()
}

// Submit queues a created task for the workers
func (m *Manager) Submit(id string) error {
	if _, err := m.GetTask(id); err != nil {
		return err
	}

	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	if m.closed {
		return ErrShutdown
	}
	select {
	case m.taskQueue <- id:
		metrics.TasksQueued.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// GetTask retrieves a snapshot of a task by ID
func (m *Manager) GetTask(id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return task.clone(), nil
}

// UpdateTask updates a task's status
func (m *Manager) UpdateTask(id string, status Status, message string) error {
	return m.mutate(id, func(t *Task) { t.UpdateStatus(status, message) })
}

// SetTaskError sets a task's error
func (m *Manager) SetTaskError(id string, err error) error {
	return m.mutate(id, func(t *Task) { t.SetError(err) })
}

// CompleteTask records a task's outcome
func (m *Manager) CompleteTask(id string, o Outcome) error {
	return m.mutate(id, func(t *Task) { t.Complete(o) })
}

func (m *Manager) mutate(id string, fn func(t *Task)) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(task)
	snapshot := task.clone()
	m.mu.Unlock()

	m.notifyCallbacks(snapshot)
	return nil
}

// SubscribeToTask subscribes to task status updates
func (m *Manager) SubscribeToTask(taskID string, callback StatusCallback) error {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()

	m.mu.RLock()
	_, ok := m.tasks[taskID]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}

	m.statusCallbacks[taskID] = append(m.statusCallbacks[taskID], callback)
	return nil
}

// notifyCallbacks notifies all callbacks for a task, in order
func (m *Manager) notifyCallbacks(task Task) {
	m.callbackMu.RLock()
	callbacks := append([]StatusCallback(nil), m.statusCallbacks[task.ID]...)
	m.callbackMu.RUnlock()

	for _, callback := range callbacks {
		callback(task)
	}

	// Clean up callbacks if task is terminal
	if task.IsTerminal() {
		m.callbackMu.Lock()
		delete(m.statusCallbacks, task.ID)
		m.callbackMu.Unlock()
	}
}

// worker processes tasks from the queue
func (m *Manager) worker(run Runner) {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case id, ok := <-m.taskQueue:
			if !ok {
				return
			}
			metrics.TasksQueued.Dec()
			m.process(run, id)
		}
	}
}

func (m *Manager) process(run Runner, id string) {
	t, err := m.GetTask(id)
	if err != nil {
		return
	}

	ctx := m.ctx
	if m.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.TaskTimeout)
		defer cancel()
	}

	metrics.TasksActive.Inc()
	defer metrics.TasksActive.Dec()

	logger := m.logger.With("task_id", id)
	logger.Info("task started")
	outcome, err := run(ctx, t)
	if err != nil {
		logger.Warn("task failed", "error", err)
		_ = m.SetTaskError(id, err)
		return
	}
	_ = m.CompleteTask(id, outcome)
	logger.Info("task finished", "files", len(outcome.Files), "skipped", len(outcome.Skipped))
}

// Shutdown stops accepting tasks, cancels running ones and waits for the
// workers to exit or ctx to expire
func (m *Manager) Shutdown(ctx context.Context) error {
	m.queueMu.Lock()
	if !m.closed {
		m.closed = true
		m.cancel()
	}
	m.queueMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
