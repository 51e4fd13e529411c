// Package jobs runs simulations asynchronously so that callers can poll for
// progress and cancel between iteration shards.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/risk-forecast/internal/simulation"
	"github.com/iwvelando/risk-forecast/pkg/constants"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a job.
type Status string

// Job states. Succeeded, Failed and Cancelled are terminal.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

var (
	// ErrNotFound is returned for unknown or evicted job ids.
	ErrNotFound = errors.New("job not found")

	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("job manager is shut down")
)

// Runner executes a simulation request. *simulation.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, req simulation.Request) (*simulation.Result, error)
}

// Gauge tracks the number of unfinished jobs.
type Gauge interface {
	Inc()
	Dec()
}

// Snapshot is a point-in-time view of a job.
type Snapshot struct {
	ID        string             `json:"id"`
	Status    Status             `json:"status"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Error     string             `json:"error,omitempty"`
	Result    *simulation.Result `json:"result,omitempty"`
	Submitted time.Time          `json:"submitted"`
	Finished  *time.Time         `json:"finished,omitempty"`
}

type job struct {
	mu        sync.Mutex
	id        string
	status    Status
	completed int
	total     int
	err       error
	result    *simulation.Result
	submitted time.Time
	finished  time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

func (j *job) snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Snapshot{
		ID:        j.id,
		Status:    j.status,
		Completed: j.completed,
		Total:     j.total,
		Result:    j.result,
		Submitted: j.submitted,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	if j.status.Terminal() {
		finished := j.finished
		s.Finished = &finished
	}
	return s
}

// Manager owns the running and retained jobs.
type Manager struct {
	logger  *zap.Logger
	runner  Runner
	gauge   Gauge
	maxJobs int

	mu     sync.Mutex
	jobs   map[string]*job
	order  []string
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxJobs bounds how many finished jobs are retained for polling.
func WithMaxJobs(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxJobs = n
		}
	}
}

// WithGauge reports the number of unfinished jobs to g.
func WithGauge(g Gauge) Option {
	return func(m *Manager) {
		m.gauge = g
	}
}

// NewManager creates a manager that runs jobs with runner. If logger is nil a
// no-op logger is used.
func NewManager(runner Runner, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger:  logger,
		runner:  runner,
		maxJobs: constants.DefaultMaxJobs,
		jobs:    make(map[string]*job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit validates req and starts it in the background. Validation errors are
// returned synchronously and no job is created.
func (m *Manager) Submit(req simulation.Request) (Snapshot, error) {
	if err := simulation.Validate(req.Risks, req.Settings); err != nil {
		return Snapshot{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:        uuid.NewString(),
		status:    StatusQueued,
		total:     req.Settings.Iterations,
		submitted: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return Snapshot{}, ErrClosed
	}
	m.jobs[j.id] = j
	m.order = append(m.order, j.id)
	m.evictLocked()
	m.wg.Add(1)
	m.mu.Unlock()

	if m.gauge != nil {
		m.gauge.Inc()
	}
	m.logger.Info("job submitted",
		zap.String("op", "jobs.Submit"),
		zap.String("job", j.id),
		zap.Int("risks", len(req.Risks)),
		zap.Int("iterations", req.Settings.Iterations),
	)

	go m.execute(ctx, j, req)
	return j.snapshot(), nil
}

func (m *Manager) execute(ctx context.Context, j *job, req simulation.Request) {
	defer m.wg.Done()
	defer close(j.done)
	defer j.cancel()

	j.mu.Lock()
	if ctx.Err() == nil {
		j.status = StatusRunning
	}
	j.mu.Unlock()

	userCheckpoint := req.Checkpoint
	req.Checkpoint = func(completed, total int) error {
		j.mu.Lock()
		j.completed = completed
		j.total = total
		j.mu.Unlock()
		if userCheckpoint != nil {
			return userCheckpoint(completed, total)
		}
		return nil
	}

	result, err := m.runner.Run(ctx, req)

	j.mu.Lock()
	j.finished = time.Now()
	switch {
	case err == nil:
		j.status = StatusSucceeded
		j.result = result
		j.completed = j.total
	case errors.Is(err, context.Canceled):
		j.status = StatusCancelled
		j.err = err
	default:
		j.status = StatusFailed
		j.err = err
	}
	status := j.status
	j.mu.Unlock()

	if m.gauge != nil {
		m.gauge.Dec()
	}
	m.logger.Info("job finished",
		zap.String("op", "jobs.execute"),
		zap.String("job", j.id),
		zap.String("status", string(status)),
		zap.Error(err),
	)
}

// evictLocked drops the oldest finished jobs beyond maxJobs. Unfinished jobs
// are never evicted.
func (m *Manager) evictLocked() {
	excess := len(m.order) - m.maxJobs
	if excess <= 0 {
		return
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if excess > 0 {
			j := m.jobs[id]
			j.mu.Lock()
			terminal := j.status.Terminal()
			j.mu.Unlock()
			if terminal {
				delete(m.jobs, id)
				excess--
				continue
			}
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func (m *Manager) lookup(id string) (*job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

// Get returns a snapshot of job id.
func (m *Manager) Get(id string) (Snapshot, error) {
	j, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return j.snapshot(), nil
}

// Cancel requests cancellation of job id. The run stops at the next shard
// boundary; cancelling a finished job is a no-op.
func (m *Manager) Cancel(id string) (Snapshot, error) {
	j, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	j.cancel()
	m.logger.Info("job cancellation requested",
		zap.String("op", "jobs.Cancel"),
		zap.String("job", id),
	)
	return j.snapshot(), nil
}

// Wait blocks until job id finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Snapshot, error) {
	j, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Shutdown rejects new jobs, cancels running ones, and waits for them to stop
// or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, j := range m.jobs {
		j.cancel()
	}
	m.mu.Unlock()

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
