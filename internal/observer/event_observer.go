package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CaptureEvent represents one notable moment in a scan session or a
// standalone quality analysis.
type CaptureEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	SessionID      string                 `json:"session_id,omitempty"`
	StepID         string                 `json:"step_id,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of capture event
type EventType string

const (
	// SessionStarted when a guided capture session begins
	SessionStarted EventType = "session_started"
	// SessionCompleted when every step is accepted or skipped
	SessionCompleted EventType = "session_completed"
	// ShotAccepted when a capture passes the quality gate
	ShotAccepted EventType = "shot_accepted"
	// ShotRejected when a capture fails the quality gate
	ShotRejected EventType = "shot_rejected"
	// ShotUploaded when an accepted shot is persisted
	ShotUploaded EventType = "shot_uploaded"
	// ShotUploadFailed when persisting an accepted shot fails
	ShotUploadFailed EventType = "shot_upload_failed"
	// AnalysisCompleted when a standalone quality analysis finishes
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when a standalone quality analysis fails
	AnalysisFailed EventType = "analysis_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event CaptureEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event CaptureEvent)
}

// LoggingObserver logs capture events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles capture events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event CaptureEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"success":    event.Success,
	}
	if event.SessionID != "" {
		fields["session_id"] = event.SessionID
	}
	if event.StepID != "" {
		fields["step_id"] = event.StepID
	}
	if event.ProcessingTime > 0 {
		fields["processing_time"] = event.ProcessingTime
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case SessionStarted:
		o.logger.WithFields(fields).Info("Capture session started")
	case SessionCompleted:
		o.logger.WithFields(fields).Info("Capture session completed")
	case ShotAccepted:
		o.logger.WithFields(fields).Info("Shot accepted")
	case ShotRejected:
		o.logger.WithFields(fields).Info("Shot rejected")
	case ShotUploaded:
		o.logger.WithFields(fields).Debug("Shot uploaded")
	case ShotUploadFailed:
		o.logger.WithFields(fields).Error("Shot upload failed")
	case AnalysisCompleted:
		o.logger.WithFields(fields).Info("Quality analysis completed")
	case AnalysisFailed:
		o.logger.WithFields(fields).Error("Quality analysis failed")
	default:
		o.logger.WithFields(fields).Info("Capture event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from capture events
type MetricsObserver struct {
	mu                  sync.RWMutex
	sessionsStarted     int64
	sessionsCompleted   int64
	shotsAccepted       int64
	shotsRejected       int64
	uploadFailures      int64
	totalProcessingTime time.Duration
	analyses            int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() Observer {
	return &MetricsObserver{}
}

// OnEvent handles capture events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event CaptureEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case SessionStarted:
		o.sessionsStarted++
	case SessionCompleted:
		o.sessionsCompleted++
	case ShotAccepted:
		o.shotsAccepted++
	case ShotRejected:
		o.shotsRejected++
	case ShotUploadFailed:
		o.uploadFailures++
	case AnalysisCompleted, AnalysisFailed:
		o.analyses++
		o.totalProcessingTime += event.ProcessingTime
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

	avgProcessingTime := time.Duration(0)
	if o.analyses > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.analyses)
	}

	return map[string]interface{}{
		"sessions_started":    o.sessionsStarted,
		"sessions_completed":  o.sessionsCompleted,
		"shots_accepted":      o.shotsAccepted,
		"shots_rejected":      o.shotsRejected,
		"upload_failures":     o.uploadFailures,
		"analyses":            o.analyses,
		"avg_processing_time": avgProcessingTime,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
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

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event CaptureEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Notify observers concurrently
	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
