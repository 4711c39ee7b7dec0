package observer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent represents an orchestration event
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id"`
	Variant        string                 `json:"variant,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorKind      string                 `json:"error_kind,omitempty"`
	Stage          string                 `json:"stage,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	OCRDegraded    bool                   `json:"ocr_degraded,omitempty"`
	Document       json.RawMessage        `json:"-"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when a request is admitted
	AnalysisStarted EventType = "analysis_started"
	// ImageDecoded when the payload decoded into an image
	ImageDecoded EventType = "image_decoded"
	// ImageDecodeFailed when the payload is not a usable image
	ImageDecodeFailed EventType = "image_decode_failed"
	// ChannelCompleted when one of the two analysis channels returns
	ChannelCompleted EventType = "channel_completed"
	// AnalysisCompleted when a fused document is produced
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when the run ends in an error
	AnalysisFailed EventType = "analysis_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"request_id":      event.RequestID,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.Variant != "" {
		fields["variant"] = event.Variant
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_kind"] = event.ErrorKind
		fields["stage"] = event.Stage
	}
	if event.OCRDegraded {
		fields["ocr_degraded"] = true
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case AnalysisStarted:
		o.logger.WithFields(fields).Info("Food analysis started")
	case AnalysisCompleted:
		o.logger.WithFields(fields).Info("Food analysis completed")
	case AnalysisFailed:
		o.logger.WithFields(fields).Error("Food analysis failed")
	case ImageDecoded, ChannelCompleted:
		o.logger.WithFields(fields).Debug("Analysis step finished")
	case ImageDecodeFailed:
		o.logger.WithFields(fields).Warn("Image decode failed")
	default:
		o.logger.WithFields(fields).Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects metrics from analysis events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	degradedAnalyses    int64
	failuresByKind      map[string]int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{failuresByKind: make(map[string]int64)}
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
		if event.OCRDegraded {
			o.degradedAnalyses++
		}
	case AnalysisFailed:
		o.failedAnalyses++
		o.failuresByKind[event.ErrorKind]++
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
	if o.successfulAnalyses > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulAnalyses)
	}

	byKind := make(map[string]int64, len(o.failuresByKind))
	for k, v := range o.failuresByKind {
		byKind[k] = v
	}

	return map[string]interface{}{
		"total_analyses":        o.totalAnalyses,
		"successful_analyses":   o.successfulAnalyses,
		"failed_analyses":       o.failedAnalyses,
		"ocr_degraded_analyses": o.degradedAnalyses,
		"failures_by_kind":      byKind,
		"total_processing_time": o.totalProcessingTime.String(),
		"avg_processing_time":   avgProcessingTime.String(),
	}
}

// Archiver persists fused documents.
type Archiver interface {
	Archive(ctx context.Context, requestID string, document []byte) error
}

// ArchiveObserver stores every completed document through an Archiver.
// Archive failures are logged and never reach the caller.
type ArchiveObserver struct {
	archiver Archiver
	logger   *logrus.Logger
}

// NewArchiveObserver creates a new archive observer
func NewArchiveObserver(archiver Archiver, logger *logrus.Logger) Observer {
	return &ArchiveObserver{archiver: archiver, logger: logger}
}

// OnEvent uploads the document of a completed analysis
func (o *ArchiveObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	if event.EventType != AnalysisCompleted || len(event.Document) == 0 {
		return
	}
	if err := o.archiver.Archive(ctx, event.RequestID, event.Document); err != nil {
		o.logger.WithFields(logrus.Fields{
			"request_id": event.RequestID,
			"error":      err.Error(),
		}).Warn("Failed to archive analysis result")
	}
}

// GetObserverName returns the observer name
func (o *ArchiveObserver) GetObserverName() string {
	return "archive_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	inflight  sync.WaitGroup
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

// NotifyObservers notifies all observers of an event. Observers run
// concurrently and outlive the request, so they get a context that is never
// cancelled.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, observer := range observers {
		p.inflight.Add(1)
		go func(obs Observer) {
			defer p.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(detached, event)
		}(observer)
	}
}

// Wait blocks until every dispatched notification has been handled.
func (p *EventPublisher) Wait() {
	p.inflight.Wait()
}
