package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"seat-gateway/lookup/cache"
	"seat-gateway/lookup/coalesce"
	"seat-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCacheObserver(t *testing.T) {
	m := New()
	c := cache.New[string](time.Minute, cache.WithSweepEvery(0), cache.WithObserver(m.Cache()))
	defer c.Close()

	c.Set("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("b")

	require.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cacheEntries))

	m.Cache().Expired(3)
	m.Cache().Evicted(2)
	require.Equal(t, 3.0, testutil.ToFloat64(m.cacheRemovals.WithLabelValues("expired")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.cacheRemovals.WithLabelValues("evicted")))
}

func TestCoalescerObserver(t *testing.T) {
	m := New()
	q := coalesce.New(func(_ context.Context, k int) (int, bool, error) {
		return k, k > 0, nil
	}, coalesce.WithDelay[int](0), coalesce.WithObserver[int](m.Coalescer()))
	defer func() { _ = q.Close(context.Background()) }()

	_, _, err := q.Fetch(context.Background(), 1)
	require.NoError(t, err)
	_, _, err = q.Fetch(context.Background(), -1)
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.backendFetches.WithLabelValues(coalesce.OutcomeFound)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.backendFetches.WithLabelValues(coalesce.OutcomeAbsent)))
	require.Equal(t, 0.0, testutil.ToFloat64(m.queuePending))
	require.Equal(t, 2, testutil.CollectAndCount(m.backendFetches))
}

func TestRecordAdmission(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.Record(ctx, domain.StatsEvent{Allowed: true, Method: http.MethodGet}))
	require.NoError(t, m.Record(ctx, domain.StatsEvent{Kind: domain.KindBurst, Method: http.MethodGet}))
	require.NoError(t, m.Record(ctx, domain.StatsEvent{Kind: domain.KindBurst}))

	require.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("GET", "allowed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("GET", string(domain.KindBurst))))
	require.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("unknown", string(domain.KindBurst))))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Coalescer().Joined()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), "seat_gateway_backend_fetch_joins_total 1"))
}

func TestNilHandler(t *testing.T) {
	var m *Metrics
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
