package signalhandler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"photofinder/logging"
)

// SetupHandler returns a context that is cancelled on the first SIGINT or
// SIGTERM so running operations can stop between files and transactions.
// A second signal exits immediately. Call stop to release the handler.
func SetupHandler(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			logging.LogWarning("Received %v, shutting down", sig)
			cancel()
		case <-done:
			return
		}

		select {
		case <-sigChan:
			logging.LogError("Received second signal, exiting")
			os.Exit(130)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(done)
		cancel()
	}
}

// GetOptimalProcs returns the optimal number of worker goroutines for the system
func GetOptimalProcs() int {
	// For image processing with CGo, using too many goroutines can cause issues
	return max((runtime.NumCPU()*3)/4, 1)
}
