package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TaskEvent represents a lifecycle change of an analysis task
type TaskEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	TaskID         string                 `json:"task_id"`
	Priority       string                 `json:"priority"`
	Mode           string                 `json:"mode,omitempty"`
	Attempt        int                    `json:"attempt"`
	ProcessingTime time.Duration          `json:"processing_time"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of task event
type EventType string

const (
	// TaskQueued when a task is admitted
	TaskQueued EventType = "task_queued"
	// TaskRejected when admission is refused at the hard limit
	TaskRejected EventType = "task_rejected"
	// TaskStarted when the analyzer call begins
	TaskStarted EventType = "task_started"
	// TaskCompleted when the analyzer succeeds
	TaskCompleted EventType = "task_completed"
	// TaskRetried when a failed task is put back in the queue
	TaskRetried EventType = "task_retried"
	// TaskFailed when a task exhausts its retries
	TaskFailed EventType = "task_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event TaskEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event TaskEvent)
}

// LoggingObserver logs task events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles task events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event TaskEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"task_id":    event.TaskID,
		"priority":   event.Priority,
		"attempt":    event.Attempt,
	}
	if event.Mode != "" {
		fields["mode"] = event.Mode
	}
	if event.ProcessingTime > 0 {
		fields["processing_time_ms"] = event.ProcessingTime.Milliseconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case TaskQueued, TaskStarted:
		o.logger.WithFields(fields).Debug("Analysis task " + string(event.EventType))
	case TaskCompleted:
		o.logger.WithFields(fields).Info("Analysis task completed")
	case TaskRetried:
		o.logger.WithFields(fields).Warn("Analysis task failed, retrying")
	case TaskRejected:
		o.logger.WithFields(fields).Warn("Analysis task rejected, queue saturated")
	case TaskFailed:
		o.logger.WithFields(fields).Error("Analysis task failed")
	default:
		o.logger.WithFields(fields).Info("Analysis task event")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver aggregates task events per analysis mode
type MetricsObserver struct {
	mu                  sync.RWMutex
	started             map[string]int64
	completed           map[string]int64
	failed              int64
	retried             int64
	rejected            int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		started:   make(map[string]int64),
		completed: make(map[string]int64),
	}
}

// OnEvent handles task events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event TaskEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case TaskStarted:
		o.started[event.Mode]++
	case TaskCompleted:
		o.completed[event.Mode]++
		o.totalProcessingTime += event.ProcessingTime
	case TaskRetried:
		o.retried++
	case TaskFailed:
		o.failed++
	case TaskRejected:
		o.rejected++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var completed int64
	startedByMode := make(map[string]int64, len(o.started))
	completedByMode := make(map[string]int64, len(o.completed))
	for mode, n := range o.started {
		startedByMode[mode] = n
	}
	for mode, n := range o.completed {
		completedByMode[mode] = n
		completed += n
	}

	avgProcessingTime := time.Duration(0)
	if completed > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(completed)
	}

	return map[string]interface{}{
		"started_by_mode":     startedByMode,
		"completed_by_mode":   completedByMode,
		"failed_tasks":        o.failed,
		"retried_tasks":       o.retried,
		"rejected_tasks":      o.rejected,
		"avg_processing_time": avgProcessingTime.String(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Observers run on their
// own goroutines so a slow one never holds up the scheduler.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event TaskEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
