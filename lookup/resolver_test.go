package lookup

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"seat-gateway/lookup/cache"
	"seat-gateway/lookup/coalesce"

	"github.com/stretchr/testify/require"
)

func userKey(id int) string { return "user:" + strconv.Itoa(id) }

type countingBackend struct {
	calls atomic.Int32
	data  map[int]string
	err   error
}

func (b *countingBackend) fetch(_ context.Context, id int) (string, bool, error) {
	b.calls.Add(1)
	if b.err != nil {
		return "", false, b.err
	}
	v, ok := b.data[id]
	return v, ok, nil
}

func newResolver(t *testing.T, b *countingBackend, delay time.Duration) (*Resolver[int, string], *cache.Cache[string]) {
	c := cache.New[string](time.Minute, cache.WithSweepEvery(0))
	q := coalesce.New(b.fetch, coalesce.WithDelay[int](delay))
	t.Cleanup(func() {
		c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})
	return NewResolver[int, string](c, q, userKey), c
}

func TestResolver_MissThenHit(t *testing.T) {
	b := &countingBackend{data: map[int]string{1: "John"}}
	r, _ := newResolver(t, b, 0)

	v, found, err := r.Get(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "John", v)

	v, found, err = r.Get(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "John", v)
	require.Equal(t, int32(1), b.calls.Load(), "second read must be served from cache")

	st := r.Status()
	require.Equal(t, 1, st.Size)
	require.Equal(t, uint64(1), st.Hits)
	require.Equal(t, uint64(1), st.Misses)
}

func TestResolver_AbsentIsNotCached(t *testing.T) {
	b := &countingBackend{data: map[int]string{}}
	r, c := newResolver(t, b, 0)

	_, found, err := r.Get(context.Background(), 9)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 0, c.Stats().Size)

	_, _, _ = r.Get(context.Background(), 9)
	require.Equal(t, int32(2), b.calls.Load())
}

func TestResolver_ErrorLeavesCacheUntouched(t *testing.T) {
	boom := errors.New("boom")
	b := &countingBackend{err: boom}
	r, c := newResolver(t, b, 0)

	_, _, err := r.Get(context.Background(), 1)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, c.Stats().Size)
}

func TestResolver_ConcurrentColdReadsHitBackendOnce(t *testing.T) {
	b := &countingBackend{data: map[int]string{2: "Jane"}}
	r, _ := newResolver(t, b, 100*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, found, err := r.Get(context.Background(), 2)
			if err != nil || !found || v != "Jane" {
				t.Errorf("unexpected result %q %v %v", v, found, err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), b.calls.Load())
	require.GreaterOrEqual(t, r.Status().AverageResponseTime, 100.0)
}

func TestResolver_PutAndClear(t *testing.T) {
	b := &countingBackend{data: map[int]string{}}
	r, _ := newResolver(t, b, 0)

	r.Put(4, "Bob")
	v, found, err := r.Get(context.Background(), 4)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Bob", v)
	require.Zero(t, b.calls.Load())

	r.ClearCache()
	st := r.Status()
	require.Equal(t, Status{}, st)
}

func TestResolver_ClearLatencyKeepsCache(t *testing.T) {
	b := &countingBackend{data: map[int]string{1: "John"}}
	r, _ := newResolver(t, b, 20*time.Millisecond)

	_, _, err := r.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Greater(t, r.Status().AverageResponseTime, 0.0)

	r.ClearLatency()
	st := r.Status()
	require.Zero(t, st.AverageResponseTime)
	require.Equal(t, 1, st.Size)
}
