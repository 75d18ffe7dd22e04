package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"seat-gateway/directory"
	"seat-gateway/lookup"
	"seat-gateway/lookup/cache"
	"seat-gateway/lookup/coalesce"

	"github.com/stretchr/testify/require"
)

// countingDirectory conta as leituras de usuário no backend.
type countingDirectory struct {
	directory.Directory
	reads atomic.Int32
}

func (d *countingDirectory) UserByID(ctx context.Context, id int) (directory.User, bool, error) {
	d.reads.Add(1)
	return d.Directory.UserByID(ctx, id)
}

type failingDirectory struct{ directory.Directory }

var errDown = errors.New("directory down")

func (failingDirectory) UserByID(context.Context, int) (directory.User, bool, error) {
	return directory.User{}, false, errDown
}

func (failingDirectory) SeatAssignments(context.Context) ([]directory.SeatAssignment, error) {
	return nil, errDown
}

func newTestServer(t *testing.T, dir directory.Directory) http.Handler {
	c := cache.New[directory.User](time.Minute, cache.WithSweepEvery(0))
	q := coalesce.New(dir.UserByID, coalesce.WithDelay[int](0))
	t.Cleanup(func() {
		c.Close()
		_ = q.Close(context.Background())
	})
	return New(lookup.NewResolver[int, directory.User](c, q, directory.UserCacheKey), dir).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) lookup.Status {
	t.Helper()
	var st lookup.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func TestGetUserGoesThroughCache(t *testing.T) {
	dir := &countingDirectory{Directory: directory.NewSeededMemory(time.Now())}
	h := newTestServer(t, dir)

	rec := do(t, h, http.MethodGet, "/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":1,"name":"John Doe","email":"john@example.com"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(1), dir.reads.Load())

	st := decodeStatus(t, do(t, h, http.MethodGet, "/cache-status", ""))
	require.Equal(t, 1, st.Size)
	require.Equal(t, uint64(1), st.Hits)
	require.Equal(t, uint64(1), st.Misses)
}

func TestGetUserErrors(t *testing.T) {
	h := newTestServer(t, directory.NewSeededMemory(time.Now()))

	rec := do(t, h, http.MethodGet, "/users/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Invalid user ID"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/users/999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"User not found"}`, rec.Body.String())

	h = newTestServer(t, failingDirectory{directory.NewMemory()})
	rec = do(t, h, http.MethodGet, "/users/1", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/seats/assignments", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCreateUserIsCached(t *testing.T) {
	dir := &countingDirectory{Directory: directory.NewSeededMemory(time.Now())}
	h := newTestServer(t, dir)

	rec := do(t, h, http.MethodPost, "/users", `{"name":"Bob","email":"bob@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"id":4,"name":"Bob","email":"bob@example.com"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/users/4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, dir.reads.Load(), "created user must be served from cache")

	rec = do(t, h, http.MethodPost, "/users", `{"name":"Bob"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"Name and email are required"}`, rec.Body.String())
}

func TestClearCache(t *testing.T) {
	h := newTestServer(t, directory.NewSeededMemory(time.Now()))
	do(t, h, http.MethodGet, "/users/2", "")
	do(t, h, http.MethodGet, "/users/2", "")

	rec := do(t, h, http.MethodDelete, "/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Cache cleared successfully"}`, rec.Body.String())

	st := decodeStatus(t, do(t, h, http.MethodGet, "/cache", ""))
	require.Zero(t, st.Size)
	require.Zero(t, st.Hits)
	require.Zero(t, st.Misses)
}

func TestClearLatency(t *testing.T) {
	h := newTestServer(t, directory.NewSeededMemory(time.Now()))
	do(t, h, http.MethodGet, "/users/3", "")

	rec := do(t, h, http.MethodDelete, "/cache-status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeStatus(t, rec)
	require.Zero(t, st.AverageResponseTime)
	require.Equal(t, 1, st.Size)
}

func TestSeatRoutes(t *testing.T) {
	h := newTestServer(t, directory.NewSeededMemory(time.Now()))

	rec := do(t, h, http.MethodGet, "/seats/assignments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []directory.SeatAssignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 9)

	rec = do(t, h, http.MethodGet, "/seats/A-1-05/assignment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var a directory.SeatAssignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	require.Equal(t, directory.SeatHeld, a.Status)
	require.Equal(t, 2, a.UserID)

	rec = do(t, h, http.MethodGet, "/seats/Z-0-00/assignment", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Seat assignment not found"}`, rec.Body.String())
}

func TestHealthAndFallback(t *testing.T) {
	h := newTestServer(t, directory.NewMemory())

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/cache", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
