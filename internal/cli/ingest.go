package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tutorlab/tutor-rag/internal/indexer"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into courses and the vector store",
	Long: `Extracts the text of each PDF, text or markdown file, builds a course from
its outline and stores embedded chunks for retrieval. Files are processed
concurrently (ingest.workers). A failed embedding batch is skipped and
reported; the rest of the document is still stored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(ingestCmd)
}

type ingestOutput struct {
	Path     string   `json:"path"`
	CourseID string   `json:"courseId,omitempty"`
	Title    string   `json:"title,omitempty"`
	Chapters int      `json:"chapters"`
	Chunks   int      `json:"chunks"`
	Fallback bool     `json:"outlineFallback,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	if !a.Indexer.TryLock() {
		return errors.New("another ingestion is already running")
	}
	defer a.Indexer.Unlock()

	results, err := a.Indexer.IngestFiles(ctx, args)
	if err != nil {
		return fmt.Errorf("ingestion aborted: %w", err)
	}

	out := make([]ingestOutput, 0, len(results))
	failed := 0
	for _, r := range results {
		out = append(out, toIngestOutput(r))
		if r.Err != nil {
			failed++
		}
	}

	if ingestJSON {
		if err := outputJSON(cmd, out); err != nil {
			return err
		}
	} else {
		for _, o := range out {
			if o.Error != "" {
				cmd.Printf("FAILED  %s: %s\n", o.Path, o.Error)
				continue
			}
			cmd.Printf("OK      %s: %q (%d chapters, %d chunks)\n", o.Path, o.Title, o.Chapters, o.Chunks)
			cmd.Printf("        course id: %s\n", o.CourseID)
			if o.Fallback {
				cmd.Println("        outline unavailable, using a single general chapter")
			}
			for _, w := range o.Warnings {
				cmd.Printf("        warning: %s\n", w)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func toIngestOutput(r indexer.FileResult) ingestOutput {
	if r.Err != nil {
		return ingestOutput{Path: r.Path, Error: r.Err.Error()}
	}
	return ingestOutput{
		Path:     r.Path,
		CourseID: r.Stats.Course.ID,
		Title:    r.Stats.Course.Title,
		Chapters: len(r.Stats.Course.Chapters),
		Chunks:   r.Stats.ChunksEmbedded,
		Fallback: r.Stats.OutlineFallback,
		Warnings: r.Stats.ErrorMessages,
	}
}
