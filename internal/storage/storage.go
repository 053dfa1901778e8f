// Package storage keeps the last fetched table per saved query.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Snapshot is the stored result of one successful pull.
type Snapshot struct {
	QueryID   string          `json:"query_id"`
	Digest    string          `json:"digest"`
	FetchedAt time.Time       `json:"fetched_at"`
	RowCount  int             `json:"row_count"`
	TotalRows int             `json:"total_rows"`
	Table     json.RawMessage `json:"table"`
}

// Store persists snapshots keyed by query id.
type Store interface {
	Close() error
	LastSnapshot(queryID string) (Snapshot, bool, error)
	SaveSnapshot(s Snapshot) error
}

// Options controls retention for concrete store implementations.
type Options struct {
	SnapshotTTL     time.Duration
	CleanupInterval time.Duration
}

const (
	defaultSnapshotTTL     = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = defaultSnapshotTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                                { return nil }
func (noopStore) LastSnapshot(string) (Snapshot, bool, error) { return Snapshot{}, false, nil }
func (noopStore) SaveSnapshot(Snapshot) error                 { return nil }
