package health

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"runtime"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
)

const (
	// MaxHealthyLatency is the latency at or above which a latency probe is
	// reported unhealthy regardless of score.
	MaxHealthyLatency = 5 * time.Second
	// MaxHeapUsagePercent is the heap usage at or above which the memory
	// probe is reported unhealthy.
	MaxHeapUsagePercent = 90.0

	latencyPenaltyMs = 50.0
)

// PingProbe scores 100 when ping succeeds and 0 otherwise. *sql.DB.PingContext
// fits ping directly.
func PingProbe(name string, weight int, timeout time.Duration, ping func(context.Context) error) Probe {
	return Probe{
		Name:    name,
		Weight:  weight,
		Timeout: timeout,
		Check: func(ctx context.Context) (Result, error) {
			if err := ping(ctx); err != nil {
				return Result{Healthy: false, Score: 0, Message: err.Error()}, nil
			}

			return Result{Healthy: true, Score: 100, Message: "ok"}, nil
		},
	}
}

// LatencyProbe times call and loses one point of score per 50ms of latency.
// A failed call scores 0.
func LatencyProbe(name string, weight int, timeout time.Duration, call func(context.Context) error) Probe {
	return Probe{
		Name:    name,
		Weight:  weight,
		Timeout: timeout,
		Check: func(ctx context.Context) (Result, error) {
			start := time.Now()
			err := call(ctx)
			latency := time.Since(start)

			if err != nil {
				return Result{Healthy: false, Score: 0, Message: err.Error()}, nil
			}

			return Result{
				Healthy: latency < MaxHealthyLatency,
				Score:   latencyScore(latency),
				Message: fmt.Sprintf("latency %dms", latency.Milliseconds()),
			}, nil
		},
	}
}

// HTTPProbe is a LatencyProbe issuing GET url. Any non-2xx response fails the
// call. A nil client uses http.DefaultClient.
func HTTPProbe(name, url string, weight int, timeout time.Duration, client *http.Client) Probe {
	if client == nil {
		client = http.DefaultClient
	}

	return LatencyProbe(name, weight, timeout, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return errors.New().WithData(errors.ErrProbeFailed, resp.Status)
		}

		return nil
	})
}

// MemoryProbe scores 100 minus heap usage percent. usage may be nil, in
// which case the Go heap is read.
func MemoryProbe(name string, weight int, timeout time.Duration, usage func() float64) Probe {
	if usage == nil {
		usage = heapUsagePercent
	}

	return Probe{
		Name:    name,
		Weight:  weight,
		Timeout: timeout,
		Check: func(context.Context) (Result, error) {
			pct := usage()

			return Result{
				Healthy: pct < MaxHeapUsagePercent,
				Score:   clampScore(int(math.Round(100 - pct))),
				Message: fmt.Sprintf("heap usage %.1f%%", pct),
			}, nil
		},
	}
}

func latencyScore(latency time.Duration) int {
	ms := float64(latency) / float64(time.Millisecond)

	return clampScore(int(math.Round(100 - ms/latencyPenaltyMs)))
}

func heapUsagePercent() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	total := ms.HeapSys - ms.HeapReleased
	if total == 0 {
		return 0
	}

	return float64(ms.HeapAlloc) / float64(total) * 100
}
