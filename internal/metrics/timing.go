package metrics

import "time"

// Time runs fn and records its duration into <name>_duration_ms, then
// increments <name>_total on success or <name>_errors_total on failure. The
// error from fn is returned unchanged; a panic is counted as a failure and
// re-raised.
func (s *Store) Time(name, description string, fn func() error) error {
	start := time.Now()
	completed := false

	defer func() {
		if completed {
			return
		}
		if r := recover(); r != nil {
			s.finishTiming(name, description, start, false)
			panic(r)
		}
	}()

	err := fn()
	completed = true
	s.finishTiming(name, description, start, err == nil)

	return err
}

// TimeValue is Time for operations that produce a value.
func TimeValue[T any](s *Store, name, description string, fn func() (T, error)) (T, error) {
	var out T
	err := s.Time(name, description, func() error {
		var err error
		out, err = fn()
		return err
	})

	return out, err
}

func (s *Store) finishTiming(name, description string, start time.Time, ok bool) {
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	s.RecordHistogram(name+"_duration_ms", description+" duration in milliseconds", elapsed, nil)
	if ok {
		s.IncrCounter(name+"_total", description+" completed", 1, nil)
		return
	}
	s.IncrCounter(name+"_errors_total", description+" failures", 1, nil)
}
