package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func openTestBolt(t *testing.T, opts Options) *boltStore {
	t.Helper()
	raw, err := openBolt(filepath.Join(t.TempDir(), "nested", "snapshots.db"), normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := raw.(*boltStore)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreSavesAndLoadsSnapshots(t *testing.T) {
	store := openTestBolt(t, Options{SnapshotTTL: time.Hour, CleanupInterval: time.Hour})

	if _, found, err := store.LastSnapshot("sales"); err != nil || found {
		t.Fatalf("expected no snapshot, found=%v err=%v", found, err)
	}

	fetched := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	in := Snapshot{
		QueryID:   "sales",
		Digest:    "abc",
		FetchedAt: fetched,
		RowCount:  1,
		TotalRows: 3,
		Table:     json.RawMessage(`{"header":["a"]}`),
	}
	if err := store.SaveSnapshot(in); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	out, found, err := store.LastSnapshot("sales")
	if err != nil || !found {
		t.Fatalf("expected snapshot, found=%v err=%v", found, err)
	}
	if out.Digest != "abc" || out.TotalRows != 3 || !out.FetchedAt.Equal(fetched) {
		t.Fatalf("unexpected snapshot %+v", out)
	}
	if string(out.Table) != `{"header":["a"]}` {
		t.Fatalf("table = %s", out.Table)
	}
}

func TestBoltStoreExpiresSnapshots(t *testing.T) {
	store := openTestBolt(t, Options{SnapshotTTL: time.Minute, CleanupInterval: time.Minute})
	base := time.Now()
	store.now = func() time.Time { return base }

	for _, id := range []string{"a", "b"} {
		if err := store.SaveSnapshot(Snapshot{QueryID: id, Digest: id}); err != nil {
			t.Fatalf("SaveSnapshot %s: %v", id, err)
		}
	}

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, found, err := store.LastSnapshot("a"); err != nil || found {
		t.Fatalf("expected expired snapshot, found=%v err=%v", found, err)
	}

	count := 0
	if err := store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(snapshotBucket)).ForEach(func(_, _ []byte) error {
			count++
			return nil
		})
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected cleanup to remove all entries, %d left", count)
	}
}

func TestBoltStoreRejectsEmptyQueryID(t *testing.T) {
	store := openTestBolt(t, Options{})
	if err := store.SaveSnapshot(Snapshot{}); err == nil {
		t.Fatalf("expected error for empty query id")
	}
	if _, _, err := store.LastSnapshot(" "); err == nil {
		t.Fatalf("expected error for empty query id")
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.SaveSnapshot(Snapshot{QueryID: "x"}); err != nil {
		t.Fatalf("noop SaveSnapshot: %v", err)
	}
	if _, found, _ := store.LastSnapshot("x"); found {
		t.Fatalf("noop store should never find snapshots")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unknown storage type")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected error for missing bbolt path")
	}
}
