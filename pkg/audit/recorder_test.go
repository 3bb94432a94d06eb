package audit

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/permission"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func TestRecorder_RecordAndClose(t *testing.T) {
	sink := NewMemoryLogger()
	r := NewRecorder(sink, RecorderConfig{QueueSize: 16, Logger: quietLogger()})

	ctx := observability.WithRequestID(context.Background(), "req-1")
	d := permission.Allow(permission.MustParse("data:read:own"), "Agent Employee", testTime)

	assert.True(t, r.RecordDecision(ctx, "u-1", "org-a", testRequest(), "", d))
	assert.True(t, r.RecordAdmin(ctx, KindCatalogReload, "root", "", "", "catalog reloaded"))

	require.NoError(t, r.Close(context.Background()))

	records := sink.Records()
	require.Len(t, records, 2)
	assert.NotEmpty(t, records[0].ID)
	assert.Equal(t, "req-1", records[0].RequestID)
	assert.Equal(t, testTime, records[0].Timestamp)
	assert.False(t, records[1].Timestamp.IsZero())

	stats := r.Stats()
	assert.Equal(t, int64(2), stats.Enqueued)
	assert.Equal(t, int64(2), stats.Written)
	assert.Zero(t, stats.Dropped)
}

func TestRecorder_FullQueueDrops(t *testing.T) {
	block := make(chan struct{})
	sink := &stubLogger{block: block}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	r := NewRecorder(sink, RecorderConfig{QueueSize: 1, Logger: quietLogger(), Metrics: metrics})

	ctx := context.Background()
	accepted := 0
	start := time.Now()
	for i := 0; i < 10; i++ {
		if r.RecordAdmin(ctx, KindOrgCreate, "root", "org-a", "org-a", "") {
			accepted++
		}
	}
	assert.Less(t, time.Since(start), time.Second, "Record must never block")

	// one record may be held by the worker and one sits in the queue
	assert.LessOrEqual(t, accepted, 2)
	stats := r.Stats()
	assert.Equal(t, int64(10-accepted), stats.Dropped)
	assert.Equal(t, float64(10-accepted), testutil.ToFloat64(metrics.AuditDroppedTotal))

	close(block)
	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, accepted, sink.Len())
}

func TestRecorder_SinkFailuresAreCounted(t *testing.T) {
	sink := &stubLogger{logErr: errors.New("database down")}
	r := NewRecorder(sink, RecorderConfig{QueueSize: 4, Logger: quietLogger()})

	assert.True(t, r.RecordAdmin(context.Background(), KindUserCreate, "mgr", "org-a", "u-1", ""))
	require.NoError(t, r.Close(context.Background()))

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.Zero(t, stats.Written)
}

func TestRecorder_SinkPanicDoesNotKillWorker(t *testing.T) {
	sink := &stubLogger{panics: true}
	r := NewRecorder(sink, RecorderConfig{QueueSize: 4, Logger: quietLogger()})

	r.RecordAdmin(context.Background(), KindUserCreate, "mgr", "org-a", "u-1", "")
	r.RecordAdmin(context.Background(), KindUserCreate, "mgr", "org-a", "u-2", "")

	assert.NoError(t, r.Close(context.Background()))
}

func TestRecorder_RecordAfterClose(t *testing.T) {
	r := NewRecorder(NewMemoryLogger(), RecorderConfig{Logger: quietLogger()})
	require.NoError(t, r.Close(context.Background()))

	assert.False(t, r.RecordAdmin(context.Background(), KindOrgCreate, "root", "", "", ""))
	assert.Equal(t, int64(1), r.Stats().Dropped)
	assert.ErrorIs(t, r.Close(context.Background()), ErrRecorderClosed)
}

func TestRecorder_CloseTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := NewRecorder(&stubLogger{block: block}, RecorderConfig{Logger: quietLogger()})
	r.RecordAdmin(context.Background(), KindOrgCreate, "root", "", "", "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)
}
