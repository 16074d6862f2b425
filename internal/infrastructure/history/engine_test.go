package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/pkg/logger"
	"github.com/doeshing/phocache/internal/ports"
)

type engineFactory func(t *testing.T) ports.TransactionalStore

func engines() map[string]engineFactory {
	return map[string]engineFactory{
		"sqlite": func(t *testing.T) ports.TransactionalStore {
			t.Helper()
			store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "history.db"))
			if err != nil {
				t.Fatalf("OpenSQLite error: %v", err)
			}
			return store
		},
		"badger": func(t *testing.T) ports.TransactionalStore {
			t.Helper()
			store, err := OpenBadger(t.TempDir())
			if err != nil {
				t.Fatalf("OpenBadger error: %v", err)
			}
			return store
		},
		"redis": func(t *testing.T) ports.TransactionalStore {
			t.Helper()
			store, _ := newTestRedisStore(t)
			return store
		},
	}
}

// newTestRedisStore connects to PHOCACHE_TEST_REDIS_ADDR when set and to an
// in-process miniredis otherwise. The server is nil for an external redis.
func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	var server *miniredis.Miniredis
	addr := os.Getenv("PHOCACHE_TEST_REDIS_ADDR")
	if addr == "" {
		server = miniredis.RunT(t)
		addr = server.Addr()
	}
	client, err := ConnectRedis(context.Background(), RedisOptions{Addr: addr}, logger.NewNop())
	if err != nil {
		t.Fatalf("ConnectRedis error: %v", err)
	}
	store := NewRedisStore(client, fmt.Sprintf("phocache-test:%s:", t.Name()))
	for _, c := range domain.Categories() {
		if err := store.Clear(context.Background(), c); err != nil {
			t.Fatalf("reset %s: %v", c, err)
		}
	}
	return store, server
}

func record(category domain.Category, id string, ts int64) domain.Record {
	return domain.Record{
		ID:        id,
		Category:  category,
		Timestamp: ts,
		Image:     "aW1hZ2U=",
		Thumbnail: "dGh1bWI=",
		Result:    domain.Payload(`{"dishes":["pho","<banh mi>"]}`),
	}
}

func openPartitions(t *testing.T, engine ports.TransactionalStore) {
	t.Helper()
	for _, c := range domain.Categories() {
		if err := engine.OpenPartition(context.Background(), c); err != nil {
			t.Fatalf("OpenPartition(%s) error: %v", c, err)
		}
	}
}

func TestEngines(t *testing.T) {
	for name, factory := range engines() {
		t.Run(name, func(t *testing.T) {
			t.Run("insert and scan newest first", func(t *testing.T) {
				engine := factory(t)
				defer engine.Close()
				openPartitions(t, engine)
				ctx := context.Background()
				cat := domain.CategoryScanner

				withLocation := record(cat, "b", 200)
				withLocation.Location = "Hanoi"
				for _, rec := range []domain.Record{withLocation, record(cat, "c", 300), record(cat, "d", 200), record(cat, "a", 100)} {
					if err := engine.Insert(ctx, cat, rec); err != nil {
						t.Fatalf("Insert(%s) error: %v", rec.ID, err)
					}
				}

				got, err := engine.Scan(ctx, cat)
				if err != nil {
					t.Fatalf("Scan error: %v", err)
				}
				var ids []string
				for _, rec := range got {
					ids = append(ids, rec.ID)
				}
				if diff := cmp.Diff([]string{"c", "d", "b", "a"}, ids); diff != "" {
					t.Fatalf("scan order mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff(withLocation, got[2]); diff != "" {
					t.Fatalf("record mismatch (-want +got):\n%s", diff)
				}
			})

			t.Run("duplicate id", func(t *testing.T) {
				engine := factory(t)
				defer engine.Close()
				openPartitions(t, engine)
				ctx := context.Background()

				if err := engine.Insert(ctx, domain.CategoryPriceCheck, record(domain.CategoryPriceCheck, "x", 1)); err != nil {
					t.Fatalf("Insert error: %v", err)
				}
				err := engine.Insert(ctx, domain.CategoryPriceCheck, record(domain.CategoryPriceCheck, "x", 2))
				if !errors.Is(err, domain.ErrDuplicateKey) {
					t.Fatalf("expected ErrDuplicateKey, got %v", err)
				}
				if n, _ := engine.Count(ctx, domain.CategoryPriceCheck); n != 1 {
					t.Fatalf("Count = %d, want 1", n)
				}
			})

			t.Run("delete clear count", func(t *testing.T) {
				engine := factory(t)
				defer engine.Close()
				openPartitions(t, engine)
				ctx := context.Background()
				cat := domain.CategoryFoodRecognition

				for i := 0; i < 3; i++ {
					if err := engine.Insert(ctx, cat, record(cat, fmt.Sprintf("r%d", i), int64(i))); err != nil {
						t.Fatalf("Insert error: %v", err)
					}
				}
				if err := engine.Insert(ctx, domain.CategoryScanner, record(domain.CategoryScanner, "r0", 0)); err != nil {
					t.Fatalf("same id in another category must be allowed: %v", err)
				}

				if err := engine.Delete(ctx, cat, "r1"); err != nil {
					t.Fatalf("Delete error: %v", err)
				}
				if err := engine.Delete(ctx, cat, "r1"); err != nil {
					t.Fatalf("second Delete error: %v", err)
				}
				if n, _ := engine.Count(ctx, cat); n != 2 {
					t.Fatalf("Count after delete = %d, want 2", n)
				}

				if err := engine.Clear(ctx, cat); err != nil {
					t.Fatalf("Clear error: %v", err)
				}
				if n, _ := engine.Count(ctx, cat); n != 0 {
					t.Fatalf("Count after clear = %d, want 0", n)
				}
				got, err := engine.Scan(ctx, cat)
				if err != nil || len(got) != 0 {
					t.Fatalf("Scan after clear = %v, %v", got, err)
				}
				if n, _ := engine.Count(ctx, domain.CategoryScanner); n != 1 {
					t.Fatalf("clear leaked into another category, count = %d", n)
				}
			})
		})
	}
}

func TestSQLiteReopenKeepsDataAndSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	openPartitions(t, first)
	if err := first.Insert(ctx, domain.CategoryScanner, record(domain.CategoryScanner, "keep", 5)); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	first.Close()

	second, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer second.Close()
	openPartitions(t, second)

	if n, _ := second.Count(ctx, domain.CategoryScanner); n != 1 {
		t.Fatalf("Count after reopen = %d, want 1", n)
	}
	if v, err := second.SchemaVersion(ctx); err != nil || v != schemaVersion {
		t.Fatalf("SchemaVersion = %d, %v", v, err)
	}
	if used, err := second.UsedBytes(ctx); err != nil || used <= 0 {
		t.Fatalf("UsedBytes = %d, %v", used, err)
	}
}

func TestSQLiteRejectsUnknownPartition(t *testing.T) {
	store, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	defer store.Close()
	if err := store.OpenPartition(context.Background(), "receipts"); !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestBadgerIndexKeyOrdering(t *testing.T) {
	older := badgerIndexKey(domain.CategoryScanner, -5, "z")
	newer := badgerIndexKey(domain.CategoryScanner, 1_700_000_000_000, "a")
	if string(older) >= string(newer) {
		t.Fatal("index keys must sort by timestamp before id")
	}
	if end := prefixEnd([]byte("idx/scanner/")); string(end) != "idx/scanner0" {
		t.Fatalf("prefixEnd = %q", end)
	}
}

func TestParseUsedMemory(t *testing.T) {
	info := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n"
	got, err := parseUsedMemory(info)
	if err != nil || got != 1048576 {
		t.Fatalf("parseUsedMemory = %d, %v", got, err)
	}
	if _, err := parseUsedMemory("# Memory\r\n"); err == nil {
		t.Fatal("expected error when used_memory is missing")
	}
}

func TestRecordCodecKeepsPayloadBytes(t *testing.T) {
	rec := record(domain.CategoryScanner, "id", 1)
	rec.Result = domain.Payload(`{"a": [1, 2], "b":"<x>"}`)
	data, err := encodeRecord(rec)
	if err != nil {
		t.Fatalf("encodeRecord error: %v", err)
	}
	got, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decodeRecord error: %v", err)
	}
	if string(got.Result) != string(rec.Result) {
		t.Fatalf("payload changed: %s", got.Result)
	}
}

func TestRedisScanSkipsMissingRecords(t *testing.T) {
	store, server := newTestRedisStore(t)
	defer store.Close()
	if server == nil {
		t.Skip("needs the in-process server")
	}
	ctx := context.Background()
	cat := domain.CategoryScanner

	for _, rec := range []domain.Record{record(cat, "a", 1), record(cat, "b", 2)} {
		if err := store.Insert(ctx, cat, rec); err != nil {
			t.Fatalf("Insert(%s) error: %v", rec.ID, err)
		}
	}
	server.Del(store.recordKey(cat, "b"))

	got, err := store.Scan(ctx, cat)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Scan = %+v, want only a", got)
	}
}

func TestRedisInsertAndClearKeepKeysConsistent(t *testing.T) {
	store, server := newTestRedisStore(t)
	defer store.Close()
	if server == nil {
		t.Skip("needs the in-process server")
	}
	ctx := context.Background()
	cat := domain.CategoryPriceCheck

	if err := store.Insert(ctx, cat, record(cat, "x", 10)); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	dup := record(cat, "x", 99)
	if err := store.Insert(ctx, cat, dup); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	score, err := server.ZScore(store.timelineKey(cat), "x")
	if err != nil || score != 10 {
		t.Fatalf("timeline score = %v, %v; duplicate must not touch the timeline", score, err)
	}

	if err := store.Clear(ctx, cat); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if server.Exists(store.recordKey(cat, "x")) || server.Exists(store.timelineKey(cat)) {
		t.Fatalf("Clear left keys behind: %v", server.Keys())
	}
}
