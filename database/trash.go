package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"photofinder/types"

	"github.com/mattn/go-sqlite3"
)

// SetMarked sets or clears the mark-for-deletion flag
func (s *SQLiteStore) SetMarked(ctx context.Context, id int64, marked bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE photos SET marked_for_deletion = ? WHERE id = ?", marked, id)
	return checkUpdated(res, err, "set marked", id)
}

// TrashPhoto moves the record to trashPath, remembering its previous path.
// The mark for deletion is cleared since trashing supersedes it.
func (s *SQLiteStore) TrashPhoto(ctx context.Context, id int64, trashPath string, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	var trashedAt sql.NullString
	err = tx.GetContext(ctx, &trashedAt, "SELECT trashed_at FROM photos WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("trash photo %d: %w", id, types.ErrNotFound)
		}
		return storageErr("trash photo", err)
	}
	if trashedAt.Valid {
		return fmt.Errorf("%w: photo %d is already trashed", types.ErrInvalidInput, id)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE photos
		SET original_path = path, path = ?, trashed_at = ?, marked_for_deletion = 0
		WHERE id = ?`, trashPath, formatTime(at), id)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("%w: trash path %s is already in use", types.ErrInvalidInput, trashPath)
		}
		return storageErr("trash photo", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit trash", err)
	}
	return nil
}

// RestorePhoto moves a trashed record back to its original path and returns it
func (s *SQLiteStore) RestorePhoto(ctx context.Context, id int64) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	var originalPath sql.NullString
	err = tx.GetContext(ctx, &originalPath, "SELECT original_path FROM photos WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("restore photo %d: %w", id, types.ErrNotFound)
		}
		return "", storageErr("restore photo", err)
	}
	if !originalPath.Valid || originalPath.String == "" {
		return "", fmt.Errorf("restore photo %d: not in trash: %w", id, types.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE photos
		SET path = original_path, original_path = NULL, trashed_at = NULL
		WHERE id = ?`, id)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return "", fmt.Errorf("%w: original path %s is now used by another photo", types.ErrInvalidInput, originalPath.String)
		}
		return "", storageErr("restore photo", err)
	}

	if err := tx.Commit(); err != nil {
		return "", storageErr("commit restore", err)
	}
	return originalPath.String, nil
}

// DeletePhoto permanently removes a record together with its embeddings and
// group memberships. Groups left without a representative or with fewer
// than two members are dissolved.
func (s *SQLiteStore) DeletePhoto(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err := checkUpdated(res, err, "delete photo", id); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM similarity_groups WHERE id IN (
			SELECT g.id FROM similarity_groups g
			LEFT JOIN group_members m ON m.group_id = g.id
			GROUP BY g.id
			HAVING COUNT(m.photo_id) < 2 OR COALESCE(SUM(m.is_representative), 0) <> 1
		)`)
	if err != nil {
		return storageErr("dissolve groups", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit delete", err)
	}
	return nil
}

type trashedRow struct {
	ID           int64  `db:"id"`
	Path         string `db:"path"`
	OriginalPath string `db:"original_path"`
	TrashedAt    string `db:"trashed_at"`
	SizeBytes    int64  `db:"size_bytes"`
}

// ListTrashed returns trashed photos, optionally only those trashed before a cutoff
func (s *SQLiteStore) ListTrashed(ctx context.Context, before time.Time) ([]types.TrashedPhoto, error) {
	query := `SELECT id, path, original_path, trashed_at, size_bytes FROM photos
		WHERE trashed_at IS NOT NULL AND original_path IS NOT NULL`
	var args []interface{}
	if !before.IsZero() {
		query += " AND trashed_at < ?"
		args = append(args, formatTime(before))
	}
	query += " ORDER BY trashed_at, id"

	var rows []trashedRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storageErr("list trashed", err)
	}

	trashed := make([]types.TrashedPhoto, 0, len(rows))
	for _, r := range rows {
		at, err := time.Parse(timeLayout, r.TrashedAt)
		if err != nil {
			return nil, storageErr("decode trashed_at", err)
		}
		trashed = append(trashed, types.TrashedPhoto{
			PhotoID:      r.ID,
			Path:         r.Path,
			OriginalPath: r.OriginalPath,
			TrashedAt:    at,
			SizeBytes:    r.SizeBytes,
		})
	}
	return trashed, nil
}

// TrashSize sums the size of all trashed photos
func (s *SQLiteStore) TrashSize(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(size_bytes), 0) FROM photos WHERE trashed_at IS NOT NULL")
	if err != nil {
		return 0, storageErr("trash size", err)
	}
	return total, nil
}
