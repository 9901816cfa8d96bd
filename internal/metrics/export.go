package metrics

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/export"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Export serializes the store. Formats outside the known set fall back to
// JSON with a warning.
func (s *Store) Export(format export.Format) (string, error) {
	errFactory := errors.New()

	var buf bytes.Buffer
	switch format {
	case export.Prometheus:
		if err := WritePrometheus(&buf, s.All()); err != nil {
			return "", errFactory.Wrap(ErrExportFailed, err)
		}
	case export.CSV:
		if err := WriteCSV(&buf, s.All()); err != nil {
			return "", errFactory.Wrap(ErrExportFailed, err)
		}
	case export.JSON, export.YAML:
		body, err := export.MarshalDocument(format, s.Snapshot())
		if err != nil {
			return "", err
		}
		buf.Write(body)
	default:
		s.logger.Warn().
			Str("format", format.String()).
			Msg("Unsupported export format, falling back to JSON")
		return s.Export(export.JSON)
	}

	return buf.String(), nil
}

// WritePrometheus writes metrics in the Prometheus text exposition format,
// one sample per retained point carrying its label set and millisecond
// timestamp. Histogram and summary observations are raw values rather than
// bucketed aggregates, so they are exposed as untyped.
func WritePrometheus(w io.Writer, metrics []Metric) error {
	for _, m := range metrics {
		if len(m.Points) == 0 {
			continue
		}

		mt := promType(m.Kind)
		mf := &dto.MetricFamily{
			Name: proto.String(m.Name),
			Help: proto.String(m.Description),
			Type: mt.Enum(),
		}

		for _, p := range m.Points {
			dm := &dto.Metric{
				Label:       labelPairs(p.Labels),
				TimestampMs: proto.Int64(p.Timestamp.UnixMilli()),
			}
			switch mt {
			case dto.MetricType_COUNTER:
				dm.Counter = &dto.Counter{Value: proto.Float64(p.Value)}
			case dto.MetricType_GAUGE:
				dm.Gauge = &dto.Gauge{Value: proto.Float64(p.Value)}
			default:
				dm.Untyped = &dto.Untyped{Value: proto.Float64(p.Value)}
			}
			mf.Metric = append(mf.Metric, dm)
		}

		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}

	return nil
}

// WriteCSV writes one row per point with the label set as a JSON object.
func WriteCSV(w io.Writer, metrics []Metric) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "kind", "value", "timestamp", "labels"}); err != nil {
		return err
	}

	for _, m := range metrics {
		for _, p := range m.Points {
			labels := p.Labels
			if labels == nil {
				labels = map[string]string{}
			}
			blob, err := json.Marshal(labels)
			if err != nil {
				return err
			}

			row := []string{
				m.Name,
				string(m.Kind),
				strconv.FormatFloat(p.Value, 'f', -1, 64),
				p.Timestamp.UTC().Format(time.RFC3339Nano),
				string(blob),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()

	return cw.Error()
}

func promType(k Kind) dto.MetricType {
	switch k {
	case Counter:
		return dto.MetricType_COUNTER
	case Gauge:
		return dto.MetricType_GAUGE
	default:
		return dto.MetricType_UNTYPED
	}
}

func labelPairs(labels map[string]string) []*dto.LabelPair {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]*dto.LabelPair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, &dto.LabelPair{
			Name:  proto.String(k),
			Value: proto.String(labels[k]),
		})
	}

	return pairs
}
