package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"photofinder/logging"
	"photofinder/search"
	"photofinder/types"

	"github.com/spf13/cobra"
)

func searchCommand(app *App) *cobra.Command {
	var (
		text       string
		vectorFile string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search photos by embedding similarity or description keywords",
		Long:  `Rank photos by cosine similarity between a query embedding (--vector-file, a JSON array of numbers) and the stored embeddings of --model. With --text, photos whose description contains every keyword are returned instead.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (text == "") == (vectorFile == "") {
				return fmt.Errorf("%w: exactly one of --text or --vector-file is required", types.ErrInvalidInput)
			}

			q := search.Query{
				Text:  text,
				Model: app.Settings.Search.Model,
				Limit: app.Settings.Search.Limit,
			}
			if vectorFile != "" {
				vector, err := readVector(vectorFile)
				if err != nil {
					return err
				}
				q.Embedding = vector
			}

			engine := search.NewEngine(app.Store, logging.Component("search"))
			resp, err := engine.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			printResults(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Keywords to look for in photo descriptions")
	cmd.Flags().StringVar(&vectorFile, "vector-file", "", "JSON file holding the query embedding")
	cmd.Flags().String("model", "", "Embedding model to search")
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of results")
	app.bind("search.model", cmd.Flags().Lookup("model"))
	app.bind("search.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

func readVector(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON array of numbers: %v", types.ErrInvalidInput, path, err)
	}
	return vector, nil
}

func printResults(cmd *cobra.Command, resp *search.Response) {
	out := cmd.OutOrStdout()
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No matches found.")
	}
	for i, r := range resp.Results {
		score := "     -"
		if !math.IsNaN(r.Similarity) {
			score = fmt.Sprintf("%.4f", r.Similarity)
		}
		fmt.Fprintf(out, "%2d. %s  %6d %s\n", i+1, score, r.PhotoID, r.Path)
		if r.Description != "" {
			fmt.Fprintf(out, "    %s\n", r.Description)
		}
	}
	if len(resp.Skipped) > 0 {
		fmt.Fprintf(out, "%d stored embeddings were skipped\n", len(resp.Skipped))
	}
}

// embeddingEntry is one element of an embedding import file. The photo is
// identified by id or, when id is zero, by path.
type embeddingEntry struct {
	PhotoID   int64     `json:"photo_id"`
	Path      string    `json:"path"`
	Embedding []float32 `json:"embedding"`
}

func embedCommand(app *App) *cobra.Command {
	var (
		file  string
		model string
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Import photo embeddings computed by an external model",
		Long:  `Import a JSON array of {"photo_id" or "path", "embedding"} objects as the embeddings of --model, replacing earlier embeddings of the same photos and model.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if model == "" {
				model = app.Settings.Search.Model
			}
			if model == "" {
				return fmt.Errorf("%w: --model is required", types.ErrInvalidInput)
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var entries []embeddingEntry
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("%w: %s: %v", types.ErrInvalidInput, file, err)
			}

			ctx := cmd.Context()
			for _, e := range entries {
				id := e.PhotoID
				if id == 0 {
					p, err := app.Store.GetPhotoByPath(ctx, e.Path)
					if err != nil {
						return fmt.Errorf("embedding for %q: %w", e.Path, err)
					}
					id = p.ID
				}
				record := types.EmbeddingRecord{PhotoID: id, Embedding: e.Embedding, ModelName: model}
				if err := app.Store.PutEmbedding(ctx, record); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d embeddings for model %s\n", len(entries), model)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the embeddings")
	cmd.Flags().StringVar(&model, "model", "", "Name of the model that produced the embeddings")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func describeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "describe ID TEXT...",
		Short: "Set the text description of a photo",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.Store.SetDescription(cmd.Context(), id, strings.Join(args[1:], " "))
		},
	}
}

// parseID parses a photo id argument
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid photo id %q", types.ErrInvalidInput, arg)
	}
	return id, nil
}
