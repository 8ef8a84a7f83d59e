package audit

import (
	"bytes"
	"encoding/csv"
	"time"
)

var csvHeader = []string{"at", "actor_id", "actor_email", "action", "entity", "entity_id"}

// WriteCSV renders rows as CSV with a header line.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		actor := ""
		if row.ActorID != nil {
			actor = row.ActorID.String()
		}
		if err := w.Write([]string{
			row.At.UTC().Format(time.RFC3339),
			actor,
			row.ActorEmail,
			row.Action,
			row.Entity,
			row.EntityID,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
