package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tutorlab/tutor-rag/internal/mcp"
	"github.com/tutorlab/tutor-rag/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Starts the Model Context Protocol server on standard input/output.
Logs are written to stderr (and log.file when configured); stdout carries
protocol frames only. When metrics.addr is set, Prometheus metrics are
served on that address until shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	a.Logger.Info("tutor-rag MCP server starting",
		zap.String("version", version),
		zap.String("build_mode", storage.BuildMode),
		zap.String("sqlite_driver", storage.DriverName))

	server := mcp.NewServer(a)

	// stdin closing ends the session, so it also stops the metrics listener
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.ServeMetrics(gctx)
	})
	g.Go(func() error {
		defer cancel()
		err := server.Serve(gctx)
		if errors.Is(err, gctx.Err()) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	a.Logger.Info("server stopped")
	return nil
}
