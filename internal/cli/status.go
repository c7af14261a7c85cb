package cli

import (
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store, registry and provider status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	st := a.Status()
	if statusJSON {
		return outputJSON(cmd, st)
	}
	cmd.Printf("Data dir:     %s\n", a.Config.DataDir)
	cmd.Printf("Store:        %s (%d chunks, dimension %d)\n", st.StoreBackend, st.Chunks, st.Dimension)
	cmd.Printf("Registry:     %d courses, %d lessons, %d tests\n", st.Registry.Courses, st.Registry.Lessons, st.Registry.Tests)
	cmd.Printf("Embeddings:   %s (%s)\n", st.EmbeddingProvider, st.EmbeddingModel)
	cmd.Printf("LLM model:    %s\n", st.LLMModel)
	cmd.Printf("SQLite:       %s (%s)\n", st.SQLiteDriver, st.BuildMode)
	return nil
}
