// Package scheduler runs image analysis under bounded concurrency with
// priorities, admission control, pressure-driven quality downgrade and
// bounded retries.
//
// All queue and metrics state is guarded by one mutex, so scheduling passes
// never interleave. Only analyzer calls run concurrently, at most
// MaxWorkers at a time. Running tasks are never cancelled or preempted.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-image-moderation/internal/logger"
	"go-image-moderation/internal/observer"
	"go-image-moderation/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrOverloaded is returned by Enqueue when queued plus running tasks reach
// the hard limit. The caller should retry later.
var ErrOverloaded = errors.New("analysis queue is at its hard limit")

// Analyzer performs pixel analysis. Implementations must be idempotent and
// safe to retry.
type Analyzer interface {
	Analyze(ctx context.Context, payload []byte, mode models.AnalysisMode) (*models.AnalysisResult, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface
type AnalyzerFunc func(ctx context.Context, payload []byte, mode models.AnalysisMode) (*models.AnalysisResult, error)

// Analyze calls f
func (f AnalyzerFunc) Analyze(ctx context.Context, payload []byte, mode models.AnalysisMode) (*models.AnalysisResult, error) {
	return f(ctx, payload, mode)
}

// Metrics is a read-only snapshot of scheduler state
type Metrics struct {
	QueueDepth     int                 `json:"queue_depth"`
	ActiveWorkers  int                 `json:"active_workers"`
	PressureActive bool                `json:"pressure_active"`
	LastDuration   time.Duration       `json:"last_duration_ns"`
	LastMode       models.AnalysisMode `json:"last_mode,omitempty"`
	TotalCompleted int64               `json:"total_completed"`
	TotalFailed    int64               `json:"total_failed"`
	TotalRetried   int64               `json:"total_retried"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithEvents publishes task lifecycle events to subject
func WithEvents(subject observer.Subject) Option {
	return func(s *Scheduler) {
		s.events = subject
	}
}

// WithContext sets the context handed to every analyzer call
func WithContext(ctx context.Context) Option {
	return func(s *Scheduler) {
		s.ctx = ctx
	}
}

// Scheduler is the process-wide analysis queue. Create one at startup with
// New and share it.
type Scheduler struct {
	analyzer Analyzer
	events   observer.Subject
	now      func() time.Time
	ctx      context.Context
	log      *logrus.Entry

	mu             sync.Mutex
	cfg            Config
	queue          []*task
	active         int
	seq            uint64
	pressureActive bool
	pressureSince  time.Time
	backoff        *time.Timer
	metrics        Metrics
}

// New creates a scheduler around analyzer
func New(analyzer Analyzer, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		analyzer: analyzer,
		now:      time.Now,
		ctx:      context.Background(),
		log:      logger.WithComponent("scheduler"),
		cfg:      cfg.withDefaults(),
		queue:    make([]*task, 0, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.UpdatedAt = s.now()
	return s
}

// UpdateConfig swaps the configuration and runs a scheduling pass so new
// limits take effect immediately
func (s *Scheduler) UpdateConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg.withDefaults()
	s.log.WithFields(logrus.Fields{
		"max_workers":      s.cfg.MaxWorkers,
		"queue_soft_limit": s.cfg.QueueSoftLimit,
		"queue_hard_limit": s.cfg.QueueHardLimit,
		"max_retries":      s.cfg.MaxRetries,
	}).Info("Scheduler configuration updated")
	s.schedule(false)
}

// Config returns the active configuration
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Enqueue admits payload for analysis and returns immediately. It fails
// with ErrOverloaded, without queuing, when the hard limit is reached. The
// payload must not be modified afterwards.
func (s *Scheduler) Enqueue(payload []byte, opts EnqueueOptions) (*Future, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priority := opts.Priority
	if priority != PriorityHigh {
		priority = PriorityNormal
	}

	if len(s.queue)+s.active >= s.cfg.QueueHardLimit {
		s.publish(observer.TaskEvent{
			EventType: observer.TaskRejected,
			Priority:  string(priority),
			Metadata: map[string]interface{}{
				"queue_depth":    len(s.queue),
				"active_workers": s.active,
			},
		})
		return nil, fmt.Errorf("%w (limit %d)", ErrOverloaded, s.cfg.QueueHardLimit)
	}

	mode := opts.Mode
	if !mode.Valid() {
		mode = ""
	}

	t := &task{
		id:       uuid.NewString(),
		payload:  payload,
		priority: priority,
		mode:     mode,
		future:   newFuture(),
	}
	s.push(t)
	s.publish(s.taskEvent(observer.TaskQueued, t, ""))
	s.schedule(false)

	return t.future, nil
}

// Metrics returns a snapshot of the current state
func (s *Scheduler) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// push appends t with a fresh enqueue time; mu must be held
func (s *Scheduler) push(t *task) {
	s.seq++
	t.seq = s.seq
	t.enqueuedAt = s.now()
	s.queue = append(s.queue, t)
	s.touch()
}

// dequeue removes the oldest high priority task, or the oldest task overall
func (s *Scheduler) dequeue() *task {
	best := -1
	for i, t := range s.queue {
		if best < 0 {
			best = i
			continue
		}
		cur := s.queue[best]
		if t.priority == PriorityHigh && cur.priority != PriorityHigh {
			best = i
			continue
		}
		if t.priority == cur.priority && t.before(cur) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	t := s.queue[best]
	s.queue = append(s.queue[:best], s.queue[best+1:]...)
	s.touch()
	return t
}

// refreshPressure sets pressure when the queue reaches the soft limit and
// clears it only after the queue has stayed below it for PressureCooldown
func (s *Scheduler) refreshPressure(depth int) {
	now := s.now()
	if depth >= s.cfg.QueueSoftLimit {
		s.pressureActive = true
		s.pressureSince = now
	} else if s.pressureActive && now.Sub(s.pressureSince) >= s.cfg.PressureCooldown {
		s.pressureActive = false
	}
	s.metrics.PressureActive = s.pressureActive
}

// schedule is one scheduling pass; mu must be held. A pass fired by the
// backoff timer skips the soft-limit throttle so a saturated queue keeps
// draining one batch per backoff interval.
func (s *Scheduler) schedule(afterBackoff bool) {
	if s.backoff != nil {
		return
	}

	depth := len(s.queue)
	s.refreshPressure(depth)

	if depth == 0 || s.active >= s.cfg.MaxWorkers {
		return
	}

	if !afterBackoff && depth >= s.cfg.QueueSoftLimit && s.cfg.Backoff > 0 {
		s.log.WithFields(logrus.Fields{
			"queue_depth": depth,
			"backoff_ms":  s.cfg.Backoff.Milliseconds(),
		}).Debug("Queue above soft limit, backing off")
		s.backoff = time.AfterFunc(s.cfg.Backoff, s.resumeAfterBackoff)
		return
	}

	batch := min(s.cfg.MaxBatchSize, s.cfg.MaxWorkers-s.active, depth)
	for i := 0; i < batch; i++ {
		s.start(s.dequeue())
	}
}

func (s *Scheduler) resumeAfterBackoff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backoff = nil
	s.schedule(true)
}

// start launches t on its own goroutine; mu must be held
func (s *Scheduler) start(t *task) {
	s.active++
	s.touch()

	underPressure := len(s.queue) >= s.cfg.QueueSoftLimit || s.pressureActive
	if underPressure {
		s.pressureSince = s.now()
	}

	mode := t.mode
	if mode == "" {
		if underPressure && s.cfg.PressureHeuristicOnly {
			mode = models.ModeFast
		} else {
			mode = models.ModeFull
		}
	}

	s.publish(s.taskEvent(observer.TaskStarted, t, mode))
	go s.run(t, mode)
}

func (s *Scheduler) run(t *task, mode models.AnalysisMode) {
	started := s.now()
	result, err := s.analyze(t, mode)
	duration := s.now().Sub(started)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.metrics.TotalCompleted++
		s.metrics.LastDuration = duration
		s.metrics.LastMode = mode
		if result == nil {
			result = &models.AnalysisResult{}
		}
		result.TaskID = t.id
		if result.Mode == "" {
			result.Mode = mode
		}
		event := s.taskEvent(observer.TaskCompleted, t, mode)
		event.ProcessingTime = duration
		s.publish(event)
		t.future.settle(result, nil)

	case t.attempts < s.cfg.MaxRetries:
		retry := *t
		retry.attempts++
		s.push(&retry)
		s.metrics.TotalRetried++
		event := s.taskEvent(observer.TaskRetried, &retry, mode)
		event.ErrorMessage = err.Error()
		s.publish(event)

	default:
		s.metrics.TotalFailed++
		event := s.taskEvent(observer.TaskFailed, t, mode)
		event.ErrorMessage = err.Error()
		s.publish(event)
		t.future.settle(nil, err)
	}

	s.active--
	s.touch()
	s.schedule(false)
}

// analyze calls the analyzer, turning a panic into an ordinary failure so
// the worker slot is always released
func (s *Scheduler) analyze(t *task, mode models.AnalysisMode) (result *models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return s.analyzer.Analyze(s.ctx, t.payload, mode)
}

func (s *Scheduler) touch() {
	s.metrics.QueueDepth = len(s.queue)
	s.metrics.ActiveWorkers = s.active
	s.metrics.UpdatedAt = s.now()
}

func (s *Scheduler) taskEvent(eventType observer.EventType, t *task, mode models.AnalysisMode) observer.TaskEvent {
	return observer.TaskEvent{
		EventType: eventType,
		TaskID:    t.id,
		Priority:  string(t.priority),
		Mode:      string(mode),
		Attempt:   t.attempts,
	}
}

func (s *Scheduler) publish(event observer.TaskEvent) {
	if s.events == nil {
		return
	}
	event.Timestamp = s.now()
	s.events.NotifyObservers(s.ctx, event)
}
