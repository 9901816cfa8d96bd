package health

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingProbe(t *testing.T) {
	ok := PingProbe("db", 1, time.Second, func(context.Context) error { return nil })
	res, err := ok.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Healthy: true, Score: 100, Message: "ok"}, res)

	down := PingProbe("db", 1, time.Second, func(context.Context) error { return stderrors.New("closed") })
	res, err = down.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Healthy: false, Score: 0, Message: "closed"}, res)
}

func TestLatencyScore(t *testing.T) {
	assert.Equal(t, 100, latencyScore(0))
	assert.Equal(t, 98, latencyScore(100*time.Millisecond))
	assert.Equal(t, 80, latencyScore(time.Second))
	assert.Equal(t, 0, latencyScore(5*time.Second))
	assert.Equal(t, 0, latencyScore(time.Minute))
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	up := HTTPProbe("api", srv.URL+"/up", 1, time.Second, srv.Client())
	res, err := up.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Healthy)
	assert.GreaterOrEqual(t, res.Score, 90)
	assert.Contains(t, res.Message, "latency")

	down := HTTPProbe("api", srv.URL+"/down", 1, time.Second, srv.Client())
	res, err = down.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Healthy)
	assert.Equal(t, 0, res.Score)
	assert.Contains(t, res.Message, "500")
}

func TestHTTPProbeThroughRegistryTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	r := NewRegistry(nil)
	require.NoError(t, r.Register(HTTPProbe("api", srv.URL, 1, 30*time.Millisecond, srv.Client())))

	status, err := r.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, status.Score)
	assert.Contains(t, []RunState{StateTimedOut, StateSucceeded}, status.Components["api"].State)
	assert.Equal(t, Unhealthy, status.Components["api"].Status)
}

func TestMemoryProbe(t *testing.T) {
	tests := []struct {
		usage   float64
		score   int
		healthy bool
	}{
		{usage: 10, score: 90, healthy: true},
		{usage: 89.9, score: 10, healthy: true},
		{usage: 90, score: 10, healthy: false},
		{usage: 100, score: 0, healthy: false},
	}

	for _, tt := range tests {
		p := MemoryProbe("memory", 1, time.Second, func() float64 { return tt.usage })
		res, err := p.Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tt.score, res.Score, "usage %v", tt.usage)
		assert.Equal(t, tt.healthy, res.Healthy, "usage %v", tt.usage)
	}

	live := MemoryProbe("memory", 1, time.Second, nil)
	res, err := live.Check(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Score, 0)
	assert.LessOrEqual(t, res.Score, 100)
}
