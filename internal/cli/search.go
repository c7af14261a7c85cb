package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tutorlab/tutor-rag/internal/searcher"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored chunks",
	Long: `Embeds the query and ranks stored chunks by cosine similarity.
Results are printed best first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchOutput struct {
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	resp, err := a.Searcher.Search(cmd.Context(), searcher.SearchRequest{Query: query, Limit: searchLimit})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := make([]searchOutput, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, searchOutput{Rank: r.Rank, Score: r.Score, Source: r.Chunk.Source, Text: r.Chunk.Text})
	}
	if searchJSON {
		return outputJSON(cmd, out)
	}

	if len(out) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	cmd.Println("Results:")
	cmd.Println()
	for _, r := range out {
		cmd.Printf("  [%d] %s (%.2f)\n", r.Rank, r.Source, r.Score)
		cmd.Printf("      %s\n", truncate(strings.Join(strings.Fields(r.Text), " "), 160))
		cmd.Println()
	}
	return nil
}
