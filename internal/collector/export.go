package collector

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/export"
)

// ExportAll runs one collection cycle and serializes it. JSON and YAML carry
// the whole report; Prometheus and CSV carry the metric store as it stands
// after the cycle. Unknown formats fall back to JSON with a warning.
func (c *Collector) ExportAll(ctx context.Context, format export.Format) (string, error) {
	switch format {
	case export.JSON, export.YAML:
		report := c.CollectOnce(ctx)
		body, err := export.MarshalDocument(format, report)
		if err != nil {
			return "", err
		}
		return string(body), nil
	case export.Prometheus, export.CSV:
		c.CollectOnce(ctx)
		return c.store.Export(format)
	default:
		c.logger.Warn().
			Str("format", format.String()).
			Msg("Unsupported export format, falling back to JSON")
		return c.ExportAll(ctx, export.JSON)
	}
}

// ScheduleExport exports on every interval tick and hands the result to
// sink, independently of the collection timer. The returned func stops the
// task and waits for an in-flight export; Stop stops it as well.
func (c *Collector) ScheduleExport(interval time.Duration, format export.Format, sink export.Sink) (func(), error) {
	errFactory := errors.New()

	if interval <= 0 {
		return nil, errFactory.WithData(errors.ErrInvalidInterval, interval.String())
	}
	if sink == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "export sink is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	id := c.nextID
	c.nextID++

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	c.exports[id] = stop
	c.mu.Unlock()

	go c.exportLoop(ctx, interval, format, sink, done)

	c.logger.Info().
		Dur("interval", interval).
		Str("format", format.String()).
		Msg("Export scheduled")

	return func() {
		c.mu.Lock()
		delete(c.exports, id)
		c.mu.Unlock()
		stop()
	}, nil
}

func (c *Collector) exportLoop(ctx context.Context, interval time.Duration, format export.Format, sink export.Sink, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.exportOnce(ctx, format, sink)
		}
	}
}

func (c *Collector) exportOnce(ctx context.Context, format export.Format, sink export.Sink) {
	errFactory := errors.New()

	body, err := c.ExportAll(ctx, format)
	if err != nil {
		c.recordFailure(sourceExport, errFactory.Wrap(errors.ErrExportFailed, err))
		return
	}

	payload := export.Payload{
		Timestamp: c.now(),
		Format:    format,
		Body:      []byte(body),
	}
	if err := sink.Write(ctx, payload); err != nil {
		c.recordFailure(sourceExport, errFactory.Wrap(errors.ErrExportFailed, err))
		return
	}

	c.store.Inc("metrics_exports_total", "Payloads handed to export sinks", map[string]string{"format": format.String()})
}
