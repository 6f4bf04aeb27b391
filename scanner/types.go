package scanner

import (
	"io"
	"sync"
	"time"

	"photofinder/types"
)

// Hasher computes the hashes of one image file
type Hasher interface {
	HashFile(path string) (types.ImageHashes, error)
}

// ScanOptions defines the options for scanning
type ScanOptions struct {
	FolderPath   string
	ForceRewrite bool
	// MaxWorkers bounds concurrent hashing; values below 1 use one worker
	MaxWorkers int
	// Progress receives a progress line twice a second when set
	Progress io.Writer
}

// ProcessImageResult holds the result of processing an image
type ProcessImageResult struct {
	Path      string
	PhotoID   int64
	Success   bool
	Unchanged bool
	Error     error
	IsRaw     bool
	IsTif     bool
}

// FileStats tracks information about files to be processed
type FileStats struct {
	totalFiles int
	rawFiles   int
	tifFiles   int
}

// Summary reports the outcome of a scan
type Summary struct {
	Total     int
	Indexed   int
	Unchanged int
	Errors    int
	RawFiles  int
	TifFiles  int
	Elapsed   time.Duration
	// Failed maps each path that could not be indexed to its error
	Failed map[string]error
}

// ProgressTracker tracks progress of the scan operation
type ProgressTracker struct {
	processed    int
	unchanged    int
	errors       int
	rawProcessed int
	tifProcessed int
	failed       map[string]error
	out          io.Writer
	ticker       *time.Ticker
	done         chan struct{}
	finished     chan struct{}
	mu           sync.Mutex
	stats        FileStats
}
