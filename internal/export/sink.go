package export

import (
	"context"
	"io"
	"sync"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
)

// Payload is one serialized export handed to a Sink.
type Payload struct {
	Timestamp time.Time
	Format    Format
	Body      []byte
}

// Sink receives scheduled exports.
type Sink interface {
	Write(ctx context.Context, payload Payload) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, payload Payload) error

func (f SinkFunc) Write(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}

type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

// WriterSink writes every payload body to w, followed by a newline when the
// body lacks one.
func WriterSink(w io.Writer) Sink {
	return &writerSink{w: w}
}

func (s *writerSink) Write(ctx context.Context, payload Payload) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(errors.ErrTimeout, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	body := payload.Body
	if n := len(body); n == 0 || body[n-1] != '\n' {
		body = append(body[:n:n], '\n')
	}

	if _, err := s.w.Write(body); err != nil {
		return errors.New().Wrap(errors.ErrExportFailed, err)
	}

	return nil
}
