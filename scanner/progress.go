package scanner

import (
	"fmt"
	"io"
	"time"

	"photofinder/logging"
)

// NewProgressTracker starts consuming resultsChan. Call Stop after the
// channel has been closed.
func NewProgressTracker(stats FileStats, resultsChan <-chan ProcessImageResult, out io.Writer) *ProgressTracker {
	tracker := &ProgressTracker{
		ticker:   time.NewTicker(500 * time.Millisecond),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		failed:   make(map[string]error),
		out:      out,
		stats:    stats,
	}

	go tracker.displayProgress()
	go tracker.processResults(resultsChan)

	return tracker
}

// displayProgress shows the progress periodically
func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			if p.out == nil {
				continue
			}
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Fprintf(p.out, "\rProgress: %d/%d (Errors: %d, RAW: %d/%d, TIF: %d/%d)",
					p.processed, p.stats.totalFiles, p.errors, p.rawProcessed, p.stats.rawFiles, p.tifProcessed, p.stats.tifFiles)
			} else {
				fmt.Fprintf(p.out, "\rProgress: %d/%d (RAW: %d/%d, TIF: %d/%d)",
					p.processed, p.stats.totalFiles, p.rawProcessed, p.stats.rawFiles, p.tifProcessed, p.stats.tifFiles)
			}
			p.mu.Unlock()
		}
	}
}

// processResults updates the tracker state based on processing results
func (p *ProgressTracker) processResults(resultsChan <-chan ProcessImageResult) {
	defer close(p.finished)
	for result := range resultsChan {
		p.mu.Lock()
		p.processed++
		if result.IsRaw {
			p.rawProcessed++
		}
		if result.IsTif {
			p.tifProcessed++
		}

		switch {
		case !result.Success:
			p.errors++
			p.failed[result.Path] = result.Error
			if result.Error != nil {
				logging.LogImageProcessed(result.Path, false, result.Error.Error())
			}
		case result.Unchanged:
			p.unchanged++
		default:
			logging.LogImageProcessed(result.Path, true, "")
		}
		p.mu.Unlock()
	}
}

// Stop waits for every result to be counted and ends the progress display
func (p *ProgressTracker) Stop() {
	<-p.finished
	p.ticker.Stop()
	close(p.done)
}

// Summary returns the counts collected so far
func (p *ProgressTracker) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	failed := make(map[string]error, len(p.failed))
	for k, v := range p.failed {
		failed[k] = v
	}
	return Summary{
		Total:     p.processed,
		Indexed:   p.processed - p.errors - p.unchanged,
		Unchanged: p.unchanged,
		Errors:    p.errors,
		RawFiles:  p.rawProcessed,
		TifFiles:  p.tifProcessed,
		Failed:    failed,
	}
}
