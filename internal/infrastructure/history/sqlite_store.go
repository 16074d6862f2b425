package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/ports"
)

// schemaVersion is stored in PRAGMA user_version. Upgrades only add missing
// tables and indices.
const schemaVersion = 1

// SQLiteStore keeps one table per category in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLite creates (or opens) the database at path. ":memory:" is accepted.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection: sqlite has a single writer and :memory: is per-connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// SQLiteOpener adapts OpenSQLite to an Opener.
func SQLiteOpener(path string) Opener {
	return func(ctx context.Context) (ports.TransactionalStore, error) {
		return OpenSQLite(ctx, path)
	}
}

func tableName(category domain.Category) string {
	return "history_" + strings.ReplaceAll(string(category), "-", "_")
}

// OpenPartition creates the category table and its timestamp index.
func (s *SQLiteStore) OpenPartition(ctx context.Context, category domain.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	table := tableName(category)

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		image TEXT NOT NULL,
		thumbnail TEXT NOT NULL,
		result TEXT NOT NULL,
		location TEXT
	);`, table)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (timestamp);`, table+"_timestamp", table)); err != nil {
		return err
	}

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version < schemaVersion {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Insert adds a record, failing with domain.ErrDuplicateKey on id collision.
func (s *SQLiteStore) Insert(ctx context.Context, category domain.Category, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q
		(id, timestamp, image, thumbnail, result, location)
		VALUES (?, ?, ?, ?, ?, ?)`, tableName(category)),
		record.ID,
		record.Timestamp,
		record.Image,
		record.Thumbnail,
		string(record.Result),
		nullableString(record.Location),
	)
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, record.ID)
	}
	return err
}

// Scan returns the category newest first.
func (s *SQLiteStore) Scan(ctx context.Context, category domain.Category) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, timestamp, image, thumbnail, result, location
		FROM %q ORDER BY timestamp DESC, id DESC`, tableName(category)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		rec := domain.Record{Category: category}
		var result string
		var location sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Image, &rec.Thumbnail, &result, &location); err != nil {
			return nil, err
		}
		rec.Result = domain.Payload(result)
		rec.Location = location.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes one record if present.
func (s *SQLiteStore) Delete(ctx context.Context, category domain.Category, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q WHERE id = ?", tableName(category)), id)
	return err
}

// Clear deletes every record of the category.
func (s *SQLiteStore) Clear(ctx context.Context, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", tableName(category)))
	return err
}

// Count returns the number of records in the category.
func (s *SQLiteStore) Count(ctx context.Context, category domain.Category) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q", tableName(category))).Scan(&n)
	return n, err
}

// UsedBytes returns page_count * page_size.
func (s *SQLiteStore) UsedBytes(ctx context.Context) (int64, error) {
	var pages, size int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pages); err != nil {
		return 0, err
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&size); err != nil {
		return 0, err
	}
	return pages * size, nil
}

// SchemaVersion reports PRAGMA user_version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	return version, err
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var _ ports.TransactionalStore = (*SQLiteStore)(nil)
