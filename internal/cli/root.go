package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tutorlab/tutor-rag/internal/app"
	"github.com/tutorlab/tutor-rag/internal/config"
	"github.com/tutorlab/tutor-rag/internal/logging"
	"github.com/tutorlab/tutor-rag/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"

	configPath string
	dataDir    string

	// appOptions are applied to every App the commands open
	appOptions []app.Option
)

var rootCmd = &cobra.Command{
	Use:   "tutorrag",
	Short: "Turn documents into courses, lessons and quizzes",
	Long: `tutorrag ingests PDF and text documents, extracts a course outline from each,
and indexes the text for retrieval. Lessons, quizzes and answers are generated
from the retrieved passages by an OpenAI-compatible model.

Run "tutorrag serve" to expose the same operations to MCP clients.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default ./tutorrag.yaml, then ~/.config/tutorrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the data directory")
	setVersion(version, buildTime)
}

// Execute runs the root command
func Execute(ctx context.Context, v, built string) error {
	setVersion(v, built)
	return rootCmd.ExecuteContext(ctx)
}

func setVersion(v, built string) {
	version, buildTime = v, built
	rootCmd.Version = v
	rootCmd.SetVersionTemplate(versionText())
}

func versionText() string {
	return fmt.Sprintf("tutorrag %s\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\n",
		version, buildTime, storage.BuildMode, storage.DriverName)
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// openApp loads configuration and builds every component. Call the returned
// func to close them.
func openApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, syncLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger, appOptions...)
	if err != nil {
		_ = syncLog()
		return nil, nil, err
	}
	return a, func() {
		_ = a.Close()
		_ = syncLog()
	}, nil
}
