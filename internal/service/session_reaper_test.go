package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrypost/authcore/internal/observability/metrics"
)

type fakePruner struct {
	mu      sync.Mutex
	calls   int
	batches []int
	results []pruneResult
}

type pruneResult struct {
	n   int
	err error
}

func (f *fakePruner) PruneStaleIndexes(_ context.Context, batch int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, batch)
	if len(f.results) == 0 {
		return 0, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.n, r.err
}

func (f *fakePruner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewSessionReaperRequiresStore(t *testing.T) {
	_, err := NewSessionReaper(SessionReaperOptions{})
	assert.Error(t, err)
}

func TestSessionReaperRunOnce(t *testing.T) {
	m := metrics.New()
	store := &fakePruner{results: []pruneResult{{n: 3}, {n: 1, err: errors.New("scan failed")}}}
	r, err := NewSessionReaper(SessionReaperOptions{Store: store, Batch: 25, Metrics: m})
	require.NoError(t, err)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []int{25, 25}, store.batches)
	assert.Equal(t, 4.0, counterValue(t, m, "authcore_session_index_entries_pruned_total"))
}

func TestSessionReaperRunOnceCanceled(t *testing.T) {
	store := &fakePruner{}
	r, err := NewSessionReaper(SessionReaperOptions{Store: store})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.callCount())
}

func TestSessionReaperRunLoopsUntilCanceled(t *testing.T) {
	store := &fakePruner{results: []pruneResult{{err: errors.New("transient")}}}
	r, err := NewSessionReaper(SessionReaperOptions{Store: store, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return store.callCount() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func counterValue(t *testing.T, m *metrics.AuthMetrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
