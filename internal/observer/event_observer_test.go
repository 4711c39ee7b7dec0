package observer

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []AnalysisEvent
}

func (r *recordingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event AnalysisEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                          { return "panicking" }

type fakeArchiver struct {
	mu        sync.Mutex
	err       error
	documents map[string][]byte
}

func (f *fakeArchiver) Archive(ctx context.Context, requestID string, document []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.documents == nil {
		f.documents = make(map[string][]byte)
	}
	f.documents[requestID] = document
	return f.err
}

func TestEventPublisher_NotifiesAllObservers(t *testing.T) {
	publisher := NewEventPublisher()
	first := &recordingObserver{name: "first"}
	second := &recordingObserver{name: "second"}
	publisher.Subscribe(first)
	publisher.Subscribe(second)
	publisher.Subscribe(panickingObserver{})

	publisher.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted, RequestID: "r1"})
	publisher.Wait()

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
	assert.False(t, first.events[0].Timestamp.IsZero())
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher()
	obs := &recordingObserver{name: "only"}
	publisher.Subscribe(obs)
	publisher.Unsubscribe(obs)

	publisher.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted})
	publisher.Wait()

	assert.Equal(t, 0, obs.count())
}

func TestEventPublisher_DetachesFromRequestContext(t *testing.T) {
	publisher := NewEventPublisher()
	seen := make(chan error, 1)
	publisher.Subscribe(observerFunc(func(ctx context.Context, event AnalysisEvent) {
		time.Sleep(10 * time.Millisecond)
		seen <- ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	publisher.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisCompleted})
	cancel()
	publisher.Wait()

	assert.NoError(t, <-seen)
}

type observerFunc func(ctx context.Context, event AnalysisEvent)

func (f observerFunc) OnEvent(ctx context.Context, event AnalysisEvent) { f(ctx, event) }
func (f observerFunc) GetObserverName() string                          { return "func" }

func TestMetricsObserver_Counts(t *testing.T) {
	metrics := NewMetricsObserver()
	ctx := context.Background()

	metrics.OnEvent(ctx, AnalysisEvent{EventType: AnalysisStarted})
	metrics.OnEvent(ctx, AnalysisEvent{EventType: AnalysisStarted})
	metrics.OnEvent(ctx, AnalysisEvent{EventType: AnalysisStarted})
	metrics.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, ProcessingTime: 2 * time.Second})
	metrics.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, ProcessingTime: 4 * time.Second, OCRDegraded: true})
	metrics.OnEvent(ctx, AnalysisEvent{EventType: AnalysisFailed, ErrorKind: "timeout"})
	metrics.OnEvent(ctx, AnalysisEvent{EventType: ChannelCompleted})

	got := metrics.GetMetrics()
	assert.Equal(t, int64(3), got["total_analyses"])
	assert.Equal(t, int64(2), got["successful_analyses"])
	assert.Equal(t, int64(1), got["failed_analyses"])
	assert.Equal(t, int64(1), got["ocr_degraded_analyses"])
	assert.Equal(t, map[string]int64{"timeout": 1}, got["failures_by_kind"])
	assert.Equal(t, "3s", got["avg_processing_time"])
}

func TestLoggingObserver_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	NewLoggingObserver(log).OnEvent(context.Background(), AnalysisEvent{
		EventType:    AnalysisFailed,
		RequestID:    "req-7",
		Variant:      "packaged",
		ErrorKind:    "upstream_error",
		Stage:        "ai_channel",
		ErrorMessage: "status 503",
	})

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-7"`)
	assert.Contains(t, out, `"error_kind":"upstream_error"`)
	assert.Contains(t, out, `"level":"error"`)
}

func TestArchiveObserver_OnlyArchivesCompletedDocuments(t *testing.T) {
	archiver := &fakeArchiver{}
	obs := NewArchiveObserver(archiver, logrus.New())
	ctx := context.Background()

	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisStarted, RequestID: "a"})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisFailed, RequestID: "b"})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, RequestID: "c", Document: []byte(`{"food":"apple"}`)})

	require.Len(t, archiver.documents, 1)
	assert.JSONEq(t, `{"food":"apple"}`, string(archiver.documents["c"]))
}

func TestArchiveObserver_SwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	archiver := &fakeArchiver{err: errors.New("container not found")}

	NewArchiveObserver(archiver, log).OnEvent(context.Background(), AnalysisEvent{
		EventType: AnalysisCompleted,
		RequestID: "r",
		Document:  []byte(`{}`),
	})

	assert.Contains(t, buf.String(), "container not found")
}
