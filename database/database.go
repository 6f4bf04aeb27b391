package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"photofinder/logging"
	"photofinder/types"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// timeLayout is fixed width so that lexical order of stored timestamps
// matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS photos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	filename TEXT NOT NULL,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	width INTEGER,
	height INTEGER,
	sha256_hash TEXT,
	perceptual_hash TEXT,
	taken_at TEXT,
	modified_at TEXT,
	marked_for_deletion INTEGER NOT NULL DEFAULT 0,
	original_path TEXT,
	trashed_at TEXT,
	description TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sha256_hash ON photos(sha256_hash);
CREATE INDEX IF NOT EXISTS idx_perceptual_hash ON photos(perceptual_hash);

CREATE TABLE IF NOT EXISTS similarity_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	group_type TEXT NOT NULL CHECK(group_type IN ('exact', 'perceptual')),
	run_id TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_groups_type ON similarity_groups(group_type);

CREATE TABLE IF NOT EXISTS group_members (
	group_id INTEGER NOT NULL REFERENCES similarity_groups(id) ON DELETE CASCADE,
	photo_id INTEGER NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
	group_type TEXT NOT NULL,
	position INTEGER NOT NULL,
	similarity_score INTEGER,
	is_representative INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (group_id, photo_id),
	UNIQUE (group_type, photo_id)
);

CREATE TABLE IF NOT EXISTS embeddings (
	photo_id INTEGER NOT NULL REFERENCES photos(id) ON DELETE CASCADE,
	model_name TEXT NOT NULL,
	embedding BLOB NOT NULL,
	dimensions INTEGER NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (photo_id, model_name)
);`

// columns added after the first schema version, checked on every open
var lateColumns = []struct{ name, decl string }{
	{"original_path", "TEXT"},
	{"trashed_at", "TEXT"},
	{"description", "TEXT"},
}

// SQLiteStore implements Store on SQLite through sqlx
type SQLiteStore struct {
	db  *sqlx.DB
	log zerolog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// driverName is go-sqlite3 with a fold_case SQL function. SQLite's LOWER
// only folds ASCII; fold_case uses strings.ToLower so both stores match
// descriptions the same way.
const driverName = "sqlite3_photofinder"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold_case", strings.ToLower, true)
		},
	})
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// InitDatabase opens (creating if needed) the database at dbPath and brings
// its schema up to date
func InitDatabase(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dbPath)
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", types.ErrStorage, dbPath, err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %w", types.ErrStorage, err)
	}

	store := &SQLiteStore{db: db, log: logging.Component("database")}
	for _, col := range lateColumns {
		if err := store.ensureColumn("photos", col.name, col.decl); err != nil {
			db.Close()
			return nil, err
		}
	}
	// created after late columns so older databases get the column first
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_trashed_at ON photos(trashed_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create trash index: %w", types.ErrStorage, err)
	}

	return store, nil
}

// ensureColumn adds a column to an existing table if an older schema lacks it
func (s *SQLiteStore) ensureColumn(table, column, decl string) error {
	var hasColumn bool
	err := s.db.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&hasColumn)
	if err != nil {
		return fmt.Errorf("%w: error checking for %s column: %w", types.ErrStorage, column, err)
	}
	if hasColumn {
		return nil
	}

	if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", table, column, decl)); err != nil {
		return fmt.Errorf("%w: error adding %s column: %w", types.ErrStorage, column, err)
	}
	s.log.Info().Str("column", column).Msg("added column to existing database schema")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats retrieves summary statistics about the library
func (s *SQLiteStore) Stats(ctx context.Context) (*types.LibraryStats, error) {
	var stats types.LibraryStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM photos) AS total_photos,
			(SELECT COUNT(DISTINCT sha256_hash) FROM photos) AS unique_hashes,
			(SELECT COUNT(*) FROM photos WHERE marked_for_deletion = 1) AS marked_photos,
			(SELECT COUNT(*) FROM photos WHERE trashed_at IS NOT NULL) AS trashed_photos,
			(SELECT COALESCE(SUM(size_bytes), 0) FROM photos WHERE trashed_at IS NOT NULL) AS trashed_bytes,
			(SELECT COUNT(DISTINCT photo_id) FROM embeddings) AS embedded_photos`)
	if err != nil {
		return nil, storageErr("get stats", err)
	}
	return &stats, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrStorage, op, err)
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}
