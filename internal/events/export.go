package events

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/export"
)

type exportDocument struct {
	ExportedAt time.Time `json:"exportedAt" yaml:"exportedAt"`
	Summary    Summary   `json:"summary" yaml:"summary"`
	Events     []Event   `json:"events" yaml:"events"`
}

// Export serializes the retained events. JSON and YAML carry a summary
// alongside the events; CSV is one row per event. Other formats fall back to
// JSON with a warning.
func (t *Tracker) Export(format export.Format) (string, error) {
	switch format {
	case export.JSON, export.YAML:
		doc := exportDocument{
			ExportedAt: t.now(),
			Summary:    t.Summarize(nil),
			Events:     t.Events(),
		}
		body, err := export.MarshalDocument(format, doc)
		if err != nil {
			return "", err
		}
		return string(body), nil
	case export.CSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, t.Events()); err != nil {
			return "", errors.New().Wrap(errors.ErrExportFailed, err)
		}
		return buf.String(), nil
	default:
		t.logger.Warn().
			Str("format", format.String()).
			Msg("Unsupported export format, falling back to JSON")
		return t.Export(export.JSON)
	}
}

// WriteCSV writes name,value,userId,sessionId,timestamp,properties rows with
// properties as a JSON object.
func WriteCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "value", "userId", "sessionId", "timestamp", "properties"}); err != nil {
		return err
	}

	for _, e := range events {
		value := ""
		if e.Value != nil {
			value = strconv.FormatFloat(*e.Value, 'f', -1, 64)
		}

		props := []byte("{}")
		if len(e.Properties) > 0 {
			var err error
			if props, err = json.Marshal(e.Properties); err != nil {
				return err
			}
		}

		record := []string{
			e.Name,
			value,
			e.UserID,
			e.SessionID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(props),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}
