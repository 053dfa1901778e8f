package publishers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the payload published downstream when a saved query yields a new table.
type Event struct {
	EventID   string          `json:"event_id"`
	QueryID   string          `json:"query_id"`
	QueryName string          `json:"query_name"`
	Kind      string          `json:"kind"`
	ObjectID  string          `json:"object_id"`
	Format    string          `json:"format"`
	Digest    string          `json:"digest"`
	RowCount  int             `json:"row_count"`
	TotalRows int             `json:"total_rows"`
	FetchedAt time.Time       `json:"fetched_at"`
	Table     json.RawMessage `json:"table"`
}

// EventSource describes the query a table came from.
type EventSource struct {
	QueryID   string
	QueryName string
	Kind      string
	ObjectID  string
	Format    string
}

// NewEvent stamps a fresh event id on the given table snapshot.
func NewEvent(src EventSource, digest string, rowCount, totalRows int, fetchedAt time.Time, table json.RawMessage) Event {
	return Event{
		EventID:   uuid.NewString(),
		QueryID:   src.QueryID,
		QueryName: src.QueryName,
		Kind:      src.Kind,
		ObjectID:  src.ObjectID,
		Format:    src.Format,
		Digest:    digest,
		RowCount:  rowCount,
		TotalRows: totalRows,
		FetchedAt: fetchedAt.UTC(),
		Table:     table,
	}
}

// attributes are copied onto queue/topic messages for subscriber-side filtering.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"query_id":  e.QueryID,
		"kind":      e.Kind,
		"object_id": e.ObjectID,
	}
}
