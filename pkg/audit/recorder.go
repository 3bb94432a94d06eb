package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/permission"
)

// DefaultQueueSize is the recorder queue capacity when none is configured
const DefaultQueueSize = 4096

// sinkTimeout bounds a single sink write
const sinkTimeout = 5 * time.Second

// ErrRecorderClosed is returned by Close when called twice
var ErrRecorderClosed = errors.New("audit recorder closed")

// RecorderConfig configures a Recorder
type RecorderConfig struct {
	QueueSize int
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	OTel      *observability.OTelMetrics
}

// RecorderStats counts what happened to records handed to the recorder
type RecorderStats struct {
	Enqueued   int64 `json:"enqueued"`
	Written    int64 `json:"written"`
	Dropped    int64 `json:"dropped"`
	Failed     int64 `json:"failed"`
	QueueDepth int   `json:"queue_depth"`
}

// Recorder moves audit writes off the evaluation path. Record never blocks:
// when the queue is full or the recorder is closed the record is dropped and
// counted. A single worker drains the queue into the sink; sink errors are
// counted and logged and never reach the caller.
type Recorder struct {
	sink    Logger
	queue   chan *Record
	done    chan struct{}
	logger  *observability.Logger
	metrics *observability.Metrics
	otel    *observability.OTelMetrics

	mu     sync.RWMutex
	closed bool

	enqueued atomic.Int64
	written  atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

// NewRecorder starts a recorder writing to sink
func NewRecorder(sink Logger, config RecorderConfig) *Recorder {
	if sink == nil {
		sink = NewNoOpLogger()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Logger == nil {
		config.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	r := &Recorder{
		sink:    sink,
		queue:   make(chan *Record, config.QueueSize),
		done:    make(chan struct{}),
		logger:  config.Logger.WithField("component", "audit_recorder"),
		metrics: config.Metrics,
		otel:    config.OTel,
	}

	go r.run()

	return r
}

// Record enqueues a record. It fills in the ID, the timestamp and the
// request id from ctx when missing, and reports whether the record was
// accepted.
func (r *Recorder) Record(ctx context.Context, record Record) bool {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.RequestID == "" {
		record.RequestID = observability.GetRequestID(ctx)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(ctx)
		return false
	}

	select {
	case r.queue <- &record:
		r.enqueued.Add(1)
		r.metrics.ObserveAudit("enqueued", len(r.queue))
		return true
	default:
		r.drop(ctx)
		return false
	}
}

// RecordDecision enqueues the record of one evaluation
func (r *Recorder) RecordDecision(ctx context.Context, actorUserID, orgID string, req permission.Request, resourceOrgID string, decision permission.Decision) bool {
	return r.Record(ctx, NewDecisionRecord(actorUserID, orgID, req, resourceOrgID, decision))
}

// RecordAdmin enqueues the record of an administrative mutation
func (r *Recorder) RecordAdmin(ctx context.Context, kind Kind, actorUserID, orgID, target, message string) bool {
	return r.Record(ctx, NewAdminRecord(kind, actorUserID, orgID, target, message))
}

func (r *Recorder) drop(ctx context.Context) {
	r.dropped.Add(1)
	r.metrics.ObserveAudit("dropped", len(r.queue))
	r.otel.RecordAuditDropped(ctx)
}

func (r *Recorder) run() {
	defer close(r.done)
	for record := range r.queue {
		r.write(record)
	}
}

func (r *Recorder) write(record *Record) {
	defer observability.RecoverPanic(r.logger, "audit recorder write")

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	if err := r.sink.Log(ctx, record); err != nil {
		r.failed.Add(1)
		r.metrics.ObserveAudit("failed", len(r.queue))
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"record_id": record.ID,
			"kind":      string(record.Kind),
		}).Warn("Failed to write audit record")
		return
	}
	r.written.Add(1)
}

// Stats returns the recorder counters
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Enqueued:   r.enqueued.Load(),
		Written:    r.written.Load(),
		Dropped:    r.dropped.Load(),
		Failed:     r.failed.Load(),
		QueueDepth: len(r.queue),
	}
}

// Close stops accepting records, drains the queue and closes the sink. If
// ctx ends before the queue drains, the sink is left open and ctx.Err() is
// returned.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return r.sink.Close()
}
