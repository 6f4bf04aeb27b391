package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func statsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show a summary of the photo database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := app.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Photos:          %s\n", humanize.Comma(int64(stats.TotalPhotos)))
			fmt.Fprintf(out, "Unique hashes:   %s\n", humanize.Comma(int64(stats.UniqueHashes)))
			fmt.Fprintf(out, "With embeddings: %s\n", humanize.Comma(int64(stats.EmbeddedPhotos)))
			fmt.Fprintf(out, "Marked:          %s\n", humanize.Comma(int64(stats.MarkedPhotos)))
			fmt.Fprintf(out, "Trashed:         %s (%s)\n", humanize.Comma(int64(stats.TrashedPhotos)), humanize.Bytes(uint64(max(stats.TrashedBytes, 0))))
			return nil
		},
	}
}
