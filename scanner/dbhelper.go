package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"photofinder/types"
)

// checkAndSkipIfUnchanged returns a result when path is already indexed and
// the file has not been modified since
func (s *Scanner) checkAndSkipIfUnchanged(ctx context.Context, path string, info os.FileInfo) *ProcessImageResult {
	existing, err := s.store.GetPhotoByPath(ctx, path)
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	if err != nil {
		return &ProcessImageResult{Path: path, Error: fmt.Errorf("database error for %s: %w", path, err)}
	}

	if existing.ModifiedAt == nil || info.ModTime().After(*existing.ModifiedAt) || info.Size() != existing.SizeBytes {
		return nil
	}
	s.log.Debug().Str("path", path).Msg("skipping unchanged image")
	return &ProcessImageResult{Path: path, PhotoID: existing.ID, Success: true, Unchanged: true}
}
