package cmd

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"photofinder/logging"
	"photofinder/scanner"
	"photofinder/signalhandler"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func scanCommand(app *App) *cobra.Command {
	var (
		folder string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Index the photos under a folder",
		Long:  `Walk a folder, hash every image and store it in the photo database. Files unchanged since the last scan are skipped unless --force is given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workers := app.Settings.Scan.Workers
			if workers == 0 {
				workers = signalhandler.GetOptimalProcs()
			}

			s := scanner.New(app.Store, app.NewHasher(), logging.Component("scanner"))
			summary, err := s.ScanAndStoreFolder(cmd.Context(), scanner.ScanOptions{
				FolderPath:   folder,
				ForceRewrite: force,
				MaxWorkers:   workers,
				Progress:     cmd.ErrOrStderr(),
			})
			if summary != nil {
				printScanSummary(cmd, summary)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Folder to index")
	cmd.Flags().BoolVar(&force, "force", false, "Re-hash files even when they are unchanged")
	cmd.Flags().Int("workers", 0, "Number of hashing workers (default: 3/4 of the CPUs)")
	_ = cmd.MarkFlagRequired("folder")
	app.bind("scan.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func printScanSummary(cmd *cobra.Command, summary *scanner.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %s of %s files (%s unchanged, %s errors) in %s\n",
		humanize.Comma(int64(summary.Indexed)),
		humanize.Comma(int64(summary.Total)),
		humanize.Comma(int64(summary.Unchanged)),
		humanize.Comma(int64(summary.Errors)),
		summary.Elapsed.Round(time.Millisecond))
	if summary.RawFiles > 0 || summary.TifFiles > 0 {
		fmt.Fprintf(out, "Including %d RAW and %d TIFF files\n", summary.RawFiles, summary.TifFiles)
	}
	for _, path := range slices.Sorted(maps.Keys(summary.Failed)) {
		fmt.Fprintf(out, "  failed: %s: %v\n", path, summary.Failed[path])
	}
}
