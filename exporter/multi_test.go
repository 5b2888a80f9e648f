package exporter

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kiseki"
)

func TestMultiAnySuccessIsSuccess(t *testing.T) {
	good := &stubExporter{ok: true}
	bad := &stubExporter{ok: false}
	m := NewMulti(bad, good)

	assert.True(t, m.Export(context.Background(), testSpan("x")))
	assert.Equal(t, 1, good.count())
	assert.Equal(t, 1, bad.count(), "failed sink still received the span")
}

func TestMultiAllFailIsFailure(t *testing.T) {
	m := NewMulti(&stubExporter{}, &stubExporter{})
	assert.False(t, m.Export(context.Background(), testSpan("x")))
}

func TestMultiEmptyIsSuccess(t *testing.T) {
	m := NewMulti()
	assert.True(t, m.Export(context.Background(), testSpan("x")))
	assert.True(t, m.HealthCheck(context.Background()))
}

func TestMultiBatchFansOut(t *testing.T) {
	a := &stubExporter{ok: true}
	b := &stubExporter{ok: true}
	m := NewMulti(a, b)

	spans := []kiseki.SpanData{testSpan("1"), testSpan("2")}
	require.True(t, m.ExportBatch(context.Background(), spans))
	assert.Equal(t, 2, a.count())
	assert.Equal(t, 2, b.count())
}

func TestMultiObserverSeesEachSink(t *testing.T) {
	good := &stubExporter{ok: true}
	bad := &stubExporter{ok: false}

	var mu sync.Mutex
	outcomes := map[int]bool{}
	m := NewMulti(bad, good).WithObserver(func(index int, _ kiseki.Exporter, ok bool) {
		mu.Lock()
		outcomes[index] = ok
		mu.Unlock()
	})

	require.True(t, m.Export(context.Background(), testSpan("x")))
	assert.Equal(t, map[int]bool{0: false, 1: true}, outcomes)
}

func TestMultiLifecycleBroadcasts(t *testing.T) {
	a := &stubExporter{ok: true, healthy: true}
	b := &stubExporter{ok: true}
	m := NewMulti(a, b)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	m.Flush(ctx)
	require.NoError(t, m.Stop(ctx))

	assert.Equal(t, 1, a.started)
	assert.Equal(t, 1, a.flushed)
	assert.Equal(t, 1, a.stopped)
	assert.Equal(t, 1, b.started)
}

func TestMultiHealthCheckAnyHealthy(t *testing.T) {
	healthy := &stubExporter{healthy: true}
	sick := &stubExporter{}

	assert.True(t, NewMulti(sick, healthy).HealthCheck(context.Background()))
	assert.False(t, NewMulti(sick).HealthCheck(context.Background()))
}

func TestMultiExportersOrder(t *testing.T) {
	a := &stubExporter{}
	b := &stubExporter{}
	m := NewMulti(a, b)

	exps := m.Exporters()
	require.Len(t, exps, 2)
	assert.Same(t, a, exps[0])
	assert.Same(t, b, exps[1])
}
