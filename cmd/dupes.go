package cmd

import (
	"fmt"
	"io"

	"photofinder/duplicates"
	"photofinder/lifecycle"
	"photofinder/logging"
	"photofinder/quality"
	"photofinder/types"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func dupesCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dupes",
		Short: "Detect duplicate photos",
	}

	exactCmd := &cobra.Command{
		Use:   "exact",
		Short: "Group photos with identical content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := duplicates.NewGrouper(app.Store, app.Store, logging.Component("duplicates"))
			res, err := g.FindExactDuplicates(cmd.Context())
			if err != nil {
				return err
			}
			return printDetection(cmd, app, res)
		},
	}

	similarCmd := &cobra.Command{
		Use:   "similar",
		Short: "Group visually similar photos by perceptual hash",
		Long:  `Group photos whose perceptual hashes differ in at most --threshold bits. Similarity is transitive: photos linked through a chain of close matches share a group.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := duplicates.NewGrouper(app.Store, app.Store, logging.Component("duplicates"))
			res, err := g.FindPerceptualDuplicates(cmd.Context(), app.Settings.Duplicates.Threshold)
			if err != nil {
				return err
			}
			return printDetection(cmd, app, res)
		},
	}
	similarCmd.Flags().UintP("threshold", "t", 10, "Maximum Hamming distance between similar photos")
	app.bind("duplicates.threshold", similarCmd.Flags().Lookup("threshold"))

	cmd.AddCommand(exactCmd, similarCmd)
	return cmd
}

func groupsCommand(app *App) *cobra.Command {
	var groupType string

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Inspect stored duplicate groups",
	}
	cmd.PersistentFlags().StringVar(&groupType, "type", string(types.GroupPerceptual), "Group type: exact or perceptual")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the groups of the latest detection run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := duplicates.NewGrouper(app.Store, app.Store, logging.Component("duplicates"))
			groups, err := g.ListGroups(cmd.Context(), types.GroupType(groupType))
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No groups found.")
				return nil
			}
			for _, group := range groups {
				if err := printGroup(cmd, app, group); err != nil {
					return err
				}
			}
			return nil
		},
	}

	markCmd := &cobra.Command{
		Use:   "mark",
		Short: "Mark every photo except the representative of each group for deletion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := duplicates.NewGrouper(app.Store, app.Store, logging.Component("duplicates"))
			groups, err := g.ListGroups(cmd.Context(), types.GroupType(groupType))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			m := lifecycle.NewManager(app.Store, logging.Component("lifecycle"))
			marked, skipped := 0, 0
			for _, group := range groups {
				for _, id := range quality.DeletionCandidates(group) {
					// groups are not updated when members are trashed later
					state, err := m.State(ctx, id)
					if err != nil {
						return err
					}
					if state == lifecycle.StateTrashed {
						fmt.Fprintf(out, "  skipped photo %d: in the trash\n", id)
						skipped++
						continue
					}
					if err := m.Mark(ctx, id); err != nil {
						return err
					}
					marked++
				}
			}
			fmt.Fprintf(out, "Marked %s photos in %d groups (%d skipped)\n", humanize.Comma(int64(marked)), len(groups), skipped)
			return nil
		},
	}

	cmd.AddCommand(listCmd, markCmd)
	return cmd
}

func printDetection(cmd *cobra.Command, app *App, res *duplicates.Result) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d groups from %s photos (%s comparisons)\n",
		res.RunID, len(res.Groups), humanize.Comma(int64(res.Candidates)), humanize.Comma(int64(res.Comparisons)))
	for _, skip := range res.Skipped {
		fmt.Fprintf(out, "  skipped photo %d: %s\n", skip.PhotoID, skip.Reason)
	}
	for _, group := range res.Groups {
		if err := printGroup(cmd, app, group); err != nil {
			return err
		}
	}
	return nil
}

// printGroup prints one group, representative first, with the space that
// deleting the other members would free
func printGroup(cmd *cobra.Command, app *App, group types.SimilarityGroup) error {
	photos, err := app.Store.GetPhotos(cmd.Context(), group.PhotoIDs())
	if err != nil {
		return err
	}
	byID := make(map[int64]types.PhotoRecord, len(photos))
	for _, p := range photos {
		byID[p.ID] = p
	}

	var reclaimable uint64
	for _, id := range quality.DeletionCandidates(group) {
		reclaimable += uint64(byID[id].SizeBytes)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Group %d (%s, %d photos, %s reclaimable)\n",
		group.ID, group.GroupType, len(group.Members), humanize.Bytes(reclaimable))
	for _, member := range group.Members {
		printMember(out, member, byID[member.PhotoID])
	}
	return nil
}

func printMember(out io.Writer, member types.GroupMember, p types.PhotoRecord) {
	flag := " "
	if member.IsRepresentative {
		flag = "*"
	}
	distance := ""
	if member.SimilarityScore != nil {
		distance = fmt.Sprintf(" d=%d", *member.SimilarityScore)
	}
	fmt.Fprintf(out, "  %s %6d %s (%dx%d, %s)%s\n",
		flag, member.PhotoID, p.Path, p.Width, p.Height, humanize.Bytes(uint64(max(p.SizeBytes, 0))), distance)
}
