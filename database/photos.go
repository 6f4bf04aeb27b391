package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"photofinder/types"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

const photoColumns = `id, path, filename, size_bytes, width, height, sha256_hash, perceptual_hash,
	taken_at, modified_at, marked_for_deletion, original_path, trashed_at, description`

type photoRow struct {
	ID                int64          `db:"id"`
	Path              string         `db:"path"`
	Filename          string         `db:"filename"`
	SizeBytes         int64          `db:"size_bytes"`
	Width             sql.NullInt64  `db:"width"`
	Height            sql.NullInt64  `db:"height"`
	SHA256Hash        sql.NullString `db:"sha256_hash"`
	PerceptualHash    sql.NullString `db:"perceptual_hash"`
	TakenAt           sql.NullString `db:"taken_at"`
	ModifiedAt        sql.NullString `db:"modified_at"`
	MarkedForDeletion bool           `db:"marked_for_deletion"`
	OriginalPath      sql.NullString `db:"original_path"`
	TrashedAt         sql.NullString `db:"trashed_at"`
	Description       sql.NullString `db:"description"`
}

func (r photoRow) toRecord() (types.PhotoRecord, error) {
	p := types.PhotoRecord{
		ID:                r.ID,
		Path:              r.Path,
		Filename:          r.Filename,
		SizeBytes:         r.SizeBytes,
		Width:             int(r.Width.Int64),
		Height:            int(r.Height.Int64),
		SHA256Hash:        r.SHA256Hash.String,
		PerceptualHash:    r.PerceptualHash.String,
		MarkedForDeletion: r.MarkedForDeletion,
		OriginalPath:      r.OriginalPath.String,
		Description:       r.Description.String,
	}

	var err error
	if p.TakenAt, err = parseNullTime(r.TakenAt); err != nil {
		return p, fmt.Errorf("photo %d: taken_at: %w", r.ID, err)
	}
	if p.ModifiedAt, err = parseNullTime(r.ModifiedAt); err != nil {
		return p, fmt.Errorf("photo %d: modified_at: %w", r.ID, err)
	}
	if p.TrashedAt, err = parseNullTime(r.TrashedAt); err != nil {
		return p, fmt.Errorf("photo %d: trashed_at: %w", r.ID, err)
	}
	return p, nil
}

func rowsToRecords(rows []photoRow) ([]types.PhotoRecord, error) {
	photos := make([]types.PhotoRecord, 0, len(rows))
	for _, r := range rows {
		p, err := r.toRecord()
		if err != nil {
			return nil, storageErr("decode photo", err)
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// PutPhoto stores photo information, updating the existing row for the same path
func (s *SQLiteStore) PutPhoto(ctx context.Context, photo *types.PhotoRecord) error {
	if photo.Path == "" {
		return fmt.Errorf("%w: photo path is empty", types.ErrInvalidInput)
	}
	if photo.Filename == "" {
		photo.Filename = filepath.Base(photo.Path)
	}

	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO photos (
			path, filename, size_bytes, width, height, sha256_hash, perceptual_hash,
			taken_at, modified_at, marked_for_deletion, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			size_bytes = excluded.size_bytes,
			width = excluded.width,
			height = excluded.height,
			sha256_hash = excluded.sha256_hash,
			perceptual_hash = excluded.perceptual_hash,
			taken_at = excluded.taken_at,
			modified_at = excluded.modified_at
		RETURNING id`,
		photo.Path,
		photo.Filename,
		photo.SizeBytes,
		nullInt(photo.Width),
		nullInt(photo.Height),
		nullString(photo.SHA256Hash),
		nullString(photo.PerceptualHash),
		nullTime(photo.TakenAt),
		nullTime(photo.ModifiedAt),
		photo.MarkedForDeletion,
		formatTime(time.Now()),
	).Scan(&id)
	if err != nil {
		return storageErr("cannot store data for "+photo.Path, err)
	}

	photo.ID = id
	return nil
}

// GetPhoto returns the photo with the given id
func (s *SQLiteStore) GetPhoto(ctx context.Context, id int64) (*types.PhotoRecord, error) {
	return s.getPhoto(ctx, "id = ?", id)
}

// GetPhotoByPath returns the photo currently stored at path
func (s *SQLiteStore) GetPhotoByPath(ctx context.Context, path string) (*types.PhotoRecord, error) {
	return s.getPhoto(ctx, "path = ?", path)
}

func (s *SQLiteStore) getPhoto(ctx context.Context, where string, arg interface{}) (*types.PhotoRecord, error) {
	var row photoRow
	err := s.db.GetContext(ctx, &row, "SELECT "+photoColumns+" FROM photos WHERE "+where, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("photo %v: %w", arg, types.ErrNotFound)
		}
		return nil, storageErr("get photo", err)
	}

	p, err := row.toRecord()
	if err != nil {
		return nil, storageErr("decode photo", err)
	}
	return &p, nil
}

// GetPhotos returns the existing photos among ids
func (s *SQLiteStore) GetPhotos(ctx context.Context, ids []int64) ([]types.PhotoRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT "+photoColumns+" FROM photos WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, storageErr("build photo query", err)
	}

	var rows []photoRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, storageErr("get photos", err)
	}
	return rowsToRecords(rows)
}

// ListPhotos retrieves photos matching filter, ordered by id
func (s *SQLiteStore) ListPhotos(ctx context.Context, filter types.PhotoFilter) ([]types.PhotoRecord, error) {
	var conditions []string
	if filter.WithContentHash {
		conditions = append(conditions, "sha256_hash IS NOT NULL AND sha256_hash <> ''")
	}
	if filter.WithPerceptualHash {
		conditions = append(conditions, "perceptual_hash IS NOT NULL AND perceptual_hash <> ''")
	}
	if !filter.IncludeTrashed {
		conditions = append(conditions, "trashed_at IS NULL")
	}
	if filter.MarkedOnly {
		conditions = append(conditions, "marked_for_deletion = 1")
	}

	query := "SELECT " + photoColumns + " FROM photos"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	var rows []photoRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, storageErr("list photos", err)
	}
	return rowsToRecords(rows)
}

// SetHashes records the content and perceptual hashes of a photo
func (s *SQLiteStore) SetHashes(ctx context.Context, id int64, sha256, perceptual string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE photos SET sha256_hash = ?, perceptual_hash = ? WHERE id = ?",
		nullString(sha256), nullString(perceptual), id)
	return checkUpdated(res, err, "set hashes", id)
}

// SetDescription stores the free-text description of a photo
func (s *SQLiteStore) SetDescription(ctx context.Context, id int64, description string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE photos SET description = ? WHERE id = ?", nullString(description), id)
	return checkUpdated(res, err, "set description", id)
}

// SearchDescriptions finds non-trashed photos whose description contains every keyword
func (s *SQLiteStore) SearchDescriptions(ctx context.Context, keywords []string, limit int) ([]types.PhotoRecord, error) {
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}

	conditions := []string{"trashed_at IS NULL", "description IS NOT NULL"}
	args := make([]interface{}, 0, len(keywords)+1)
	for _, kw := range keywords {
		conditions = append(conditions, `fold_case(COALESCE(description, '')) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(kw))+"%")
	}
	args = append(args, limit)

	query := "SELECT " + photoColumns + " FROM photos WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY id LIMIT ?"

	var rows []photoRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storageErr("search descriptions", err)
	}
	return rowsToRecords(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func checkUpdated(res sql.Result, err error, op string, id int64) error {
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("%w: %s: photo %d: %v", types.ErrInvalidInput, op, id, err)
		}
		return storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: photo %d: %w", op, id, types.ErrNotFound)
	}
	return nil
}
