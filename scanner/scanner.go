// Package scanner indexes a folder of photos into the photo store.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"photofinder/database"
	"photofinder/types"

	"github.com/rs/zerolog"
)

// Scanner walks folders and writes a PhotoRecord with hashes for every image
type Scanner struct {
	store  database.PhotoStore
	hasher Hasher
	log    zerolog.Logger
}

// New creates a Scanner
func New(store database.PhotoStore, hasher Hasher, log zerolog.Logger) *Scanner {
	return &Scanner{store: store, hasher: hasher, log: log}
}

// ScanAndStoreFolder indexes every image under options.FolderPath with a
// bounded pool of workers. Files that fail are counted in the summary and do
// not stop the scan; cancelling ctx does.
func (s *Scanner) ScanAndStoreFolder(ctx context.Context, options ScanOptions) (*Summary, error) {
	info, err := os.Stat(options.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", types.ErrInvalidInput, options.FolderPath)
	}

	workers := max(options.MaxWorkers, 1)
	stats := countFilesToProcess(options.FolderPath)
	s.log.Info().
		Str("folder", options.FolderPath).
		Int("files", stats.totalFiles).
		Int("raw", stats.rawFiles).
		Int("tif", stats.tifFiles).
		Int("workers", workers).
		Bool("force", options.ForceRewrite).
		Msg("starting image indexing")

	startTime := time.Now()
	paths := make(chan string)
	resultsChan := make(chan ProcessImageResult, 100)
	tracker := NewProgressTracker(stats, resultsChan, options.Progress)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				resultsChan <- s.processAndStoreImage(ctx, path, options)
			}
		}()
	}

	walkErr := walkImages(ctx, options.FolderPath, paths)
	close(paths)
	wg.Wait()
	close(resultsChan)
	tracker.Stop()

	summary := tracker.Summary()
	summary.Elapsed = time.Since(startTime)
	if options.Progress != nil {
		fmt.Fprintln(options.Progress)
	}

	log := s.log.Info()
	if walkErr != nil {
		log = s.log.Warn().Err(walkErr)
	}
	log.Int("indexed", summary.Indexed).
		Int("unchanged", summary.Unchanged).
		Int("errors", summary.Errors).
		Dur("elapsed", summary.Elapsed).
		Msg("indexing complete")
	return &summary, walkErr
}

// countFilesToProcess counts and classifies image files under folder
func countFilesToProcess(folder string) FileStats {
	var stats FileStats
	filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !IsImageFile(path) {
			return nil
		}
		stats.totalFiles++
		if IsRawFormat(path) {
			stats.rawFiles++
		}
		if IsTiffFormat(path) {
			stats.tifFiles++
		}
		return nil
	})
	return stats
}

// walkImages sends every image path under folder until ctx is done
func walkImages(ctx context.Context, folder string, paths chan<- string) error {
	return filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			return nil
		}
		if d.IsDir() || !IsImageFile(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case paths <- path:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// processAndStoreImage hashes one file and upserts its record
func (s *Scanner) processAndStoreImage(ctx context.Context, path string, options ScanOptions) (result ProcessImageResult) {
	result = ProcessImageResult{Path: path, IsRaw: IsRawFormat(path), IsTif: IsTiffFormat(path)}

	// decoders run through cgo and may panic on malformed files
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("path", path).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("panic while processing image")
			result.Success = false
			result.Error = fmt.Errorf("panic while processing %s: %v", path, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	info, err := os.Stat(path)
	if err != nil {
		result.Error = fmt.Errorf("cannot stat file %s: %w", path, err)
		return result
	}

	if !options.ForceRewrite {
		if skip := s.checkAndSkipIfUnchanged(ctx, path, info); skip != nil {
			skip.IsRaw, skip.IsTif = result.IsRaw, result.IsTif
			return *skip
		}
	}

	hashes, err := s.hasher.HashFile(path)
	if err != nil {
		result.Error = fmt.Errorf("hash %s: %w", path, err)
		return result
	}

	modTime := info.ModTime().UTC()
	photo := &types.PhotoRecord{
		Path:           path,
		Filename:       filepath.Base(path),
		SizeBytes:      info.Size(),
		Width:          hashes.Width,
		Height:         hashes.Height,
		SHA256Hash:     hashes.SHA256,
		PerceptualHash: hashes.Perceptual,
		ModifiedAt:     &modTime,
	}
	if err := s.store.PutPhoto(ctx, photo); err != nil {
		result.Error = fmt.Errorf("store %s: %w", path, err)
		return result
	}

	result.PhotoID = photo.ID
	result.Success = true
	return result
}
