package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"photofinder/cmd"
	"photofinder/signalhandler"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	ctx, stop := signalhandler.SetupHandler(context.Background())
	defer stop()

	app := cmd.NewApp()
	defer app.Close()

	if err := cmd.RootCommand(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
