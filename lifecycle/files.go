package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"photofinder/types"
	"photofinder/utils"
)

// Files applies lifecycle transitions to the files on disk as well as to
// the records. A file move is undone when the record update fails.
type Files struct {
	*Manager
	trashDir string
}

// NewFiles moves trashed files into trashDir
func NewFiles(m *Manager, trashDir string) *Files {
	return &Files{Manager: m, trashDir: trashDir}
}

// TrashPath returns where the file of photo p is kept while trashed
func (f *Files) TrashPath(p types.PhotoRecord) string {
	return filepath.Join(f.trashDir, fmt.Sprintf("%d_%s", p.ID, p.Filename))
}

// TrashFile moves the photo file into the trash directory and records the
// move. The whole sequence holds the manager lock.
func (f *Files) TrashFile(ctx context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.store.GetPhoto(ctx, id)
	if err != nil {
		return "", err
	}
	if p.IsTrashed() {
		return "", fmt.Errorf("%w: photo %d is already in the trash", types.ErrInvalidInput, id)
	}

	trashPath := f.TrashPath(*p)
	if utils.FileExists(trashPath) {
		return "", fmt.Errorf("%w: %s already exists", types.ErrInvalidInput, trashPath)
	}
	if err := os.MkdirAll(f.trashDir, 0o755); err != nil {
		return "", fmt.Errorf("create trash directory: %w", err)
	}
	if err := utils.MoveFile(p.Path, trashPath); err != nil {
		return "", fmt.Errorf("move %s to trash: %w", p.Path, err)
	}

	if err := f.trash(ctx, id, trashPath); err != nil {
		if undoErr := utils.MoveFile(trashPath, p.Path); undoErr != nil {
			f.log.Error().Err(undoErr).Str("path", trashPath).Msg("failed to move file back after trash failed")
			return "", errors.Join(err, undoErr)
		}
		return "", err
	}
	return trashPath, nil
}

// RestoreFile moves a trashed file back to its original location and
// records the restore
func (f *Files) RestoreFile(ctx context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.store.GetPhoto(ctx, id)
	if err != nil {
		return "", err
	}
	if !p.IsTrashed() || p.OriginalPath == "" {
		return "", fmt.Errorf("photo %d is not in the trash: %w", id, types.ErrNotFound)
	}
	if utils.FileExists(p.OriginalPath) {
		return "", fmt.Errorf("%w: %s already exists", types.ErrInvalidInput, p.OriginalPath)
	}
	if err := os.MkdirAll(filepath.Dir(p.OriginalPath), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(p.OriginalPath), err)
	}
	if err := utils.MoveFile(p.Path, p.OriginalPath); err != nil {
		return "", fmt.Errorf("move %s out of trash: %w", p.Path, err)
	}

	original, err := f.restore(ctx, id)
	if err != nil {
		if undoErr := utils.MoveFile(p.OriginalPath, p.Path); undoErr != nil {
			f.log.Error().Err(undoErr).Str("path", p.OriginalPath).Msg("failed to move file back after restore failed")
			return "", errors.Join(err, undoErr)
		}
		return "", err
	}
	return original, nil
}

// PurgeFile purges the record and removes its file if it is still present
func (f *Files) PurgeFile(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.store.GetPhoto(ctx, id)
	if err != nil {
		return err
	}
	if err := f.purge(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("photo %d purged but file remains: %w", id, err)
	}
	return nil
}

// Sweep returns the photos trashed more than maxAgeDays ago and, when
// purge is set, purges each of them. Failures do not stop the sweep.
func (f *Files) Sweep(ctx context.Context, maxAgeDays int, purge bool) ([]types.TrashedPhoto, error) {
	old, err := f.OldTrashed(ctx, maxAgeDays)
	if err != nil || !purge {
		return old, err
	}

	var errs []error
	purged := old[:0:0]
	for _, t := range old {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := f.PurgeFile(ctx, t.PhotoID); err != nil {
			f.log.Warn().Err(err).Int64("photo_id", t.PhotoID).Msg("sweep could not purge photo")
			errs = append(errs, err)
			continue
		}
		purged = append(purged, t)
	}
	f.log.Info().Int("purged", len(purged)).Int("candidates", len(old)).Int("max_age_days", maxAgeDays).Msg("trash sweep finished")
	return purged, errors.Join(errs...)
}
