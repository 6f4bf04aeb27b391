package cmd

import (
	"fmt"

	"photofinder/lifecycle"
	"photofinder/logging"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (app *App) files() *lifecycle.Files {
	m := lifecycle.NewManager(app.Store, logging.Component("lifecycle"))
	return lifecycle.NewFiles(m, app.Settings.TrashDir)
}

// idCommand builds a command that applies run to a single photo id
func idCommand(use, short string, run func(cmd *cobra.Command, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, id)
		},
	}
}

func markCommand(app *App) *cobra.Command {
	return idCommand("mark", "Mark a photo for deletion", func(cmd *cobra.Command, id int64) error {
		if err := app.files().Mark(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked photo %d\n", id)
		return nil
	})
}

func unmarkCommand(app *App) *cobra.Command {
	return idCommand("unmark", "Clear the deletion mark of a photo", func(cmd *cobra.Command, id int64) error {
		if err := app.files().Unmark(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unmarked photo %d\n", id)
		return nil
	})
}

func trashCommand(app *App) *cobra.Command {
	return idCommand("trash", "Move a photo into the trash directory", func(cmd *cobra.Command, id int64) error {
		trashPath, err := app.files().TrashFile(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved photo %d to %s\n", id, trashPath)
		return nil
	})
}

func restoreCommand(app *App) *cobra.Command {
	return idCommand("restore", "Move a trashed photo back to its original location", func(cmd *cobra.Command, id int64) error {
		original, err := app.files().RestoreFile(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored photo %d to %s\n", id, original)
		return nil
	})
}

func purgeCommand(app *App) *cobra.Command {
	return idCommand("purge", "Permanently delete a photo and its records", func(cmd *cobra.Command, id int64) error {
		if err := app.files().PurgeFile(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged photo %d\n", id)
		return nil
	})
}

func trashedCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "trashed",
		Short: "List the photos in the trash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := app.files()
			trashed, err := f.Trashed(cmd.Context())
			if err != nil {
				return err
			}
			size, err := f.TrashTotalSize(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range trashed {
				fmt.Fprintf(out, "%6d %s (from %s, trashed %s, %s)\n",
					t.PhotoID, t.Path, t.OriginalPath, humanize.Time(t.TrashedAt), humanize.Bytes(uint64(max(t.SizeBytes, 0))))
			}
			fmt.Fprintf(out, "%d photos, %s in trash\n", len(trashed), humanize.Bytes(uint64(max(size, 0))))
			return nil
		},
	}
}

func sweepCommand(app *App) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "List or purge photos trashed longer than --max-age-days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			maxAge := app.Settings.Trash.MaxAgeDays
			swept, err := app.files().Sweep(cmd.Context(), maxAge, purge)

			out := cmd.OutOrStdout()
			var total uint64
			for _, t := range swept {
				total += uint64(max(t.SizeBytes, 0))
				fmt.Fprintf(out, "%6d %s (trashed %s)\n", t.PhotoID, t.OriginalPath, humanize.Time(t.TrashedAt))
			}
			verb := "Found"
			if purge {
				verb = "Purged"
			}
			fmt.Fprintf(out, "%s %d photos older than %d days (%s)\n", verb, len(swept), maxAge, humanize.Bytes(total))
			if err != nil {
				return fmt.Errorf("sweep finished with errors: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Int("max-age-days", 30, "Age in days after which trashed photos are swept")
	cmd.Flags().BoolVar(&purge, "purge", false, "Purge the old photos instead of listing them")
	app.bind("trash.maxagedays", cmd.Flags().Lookup("max-age-days"))

	return cmd
}
