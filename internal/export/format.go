// Package export defines the closed set of serialization formats shared by the
// metric store, event tracker and collector, and the sink contract scheduled
// exports hand their payloads to.
package export

import (
	"bytes"
	"encoding/json"
	"strings"

	"codeberg.org/mutker/pulse/internal/errors"
	"gopkg.in/yaml.v3"
)

// Format selects an exporter strategy.
type Format int

const (
	JSON Format = iota
	Prometheus
	CSV
	YAML
)

var formatNames = map[Format]string{
	JSON:       "json",
	Prometheus: "prometheus",
	CSV:        "csv",
	YAML:       "yaml",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}

	return "unknown"
}

// ContentType is what an HTTP host would send for the format.
func (f Format) ContentType() string {
	switch f {
	case Prometheus:
		return "text/plain; version=0.0.4; charset=utf-8"
	case CSV:
		return "text/csv; charset=utf-8"
	case YAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// ParseFormat maps a configured name to a Format. "prom" and "text" are
// accepted as aliases for Prometheus, "yml" for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return JSON, nil
	case "prometheus", "prom", "text":
		return Prometheus, nil
	case "csv":
		return CSV, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return JSON, errors.New().WithData(errors.ErrUnsupportedFormat, s)
	}
}

// MarshalDocument serializes v as an indented JSON or YAML document. Other
// formats are not document formats and return ErrUnsupportedFormat.
func MarshalDocument(format Format, v any) ([]byte, error) {
	errFactory := errors.New()

	switch format {
	case JSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return nil, errFactory.Wrap(errors.ErrExportFailed, err)
		}
		return buf.Bytes(), nil
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, errFactory.Wrap(errors.ErrExportFailed, err)
		}
		if err := enc.Close(); err != nil {
			return nil, errFactory.Wrap(errors.ErrExportFailed, err)
		}
		return buf.Bytes(), nil
	default:
		return nil, errFactory.WithData(errors.ErrUnsupportedFormat, format.String())
	}
}
