package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP frontend",
	Long: `Serve runs the tgcloud HTTP frontend: file listing, upload, download,
rename, and delete over a REST API, plus health and (optionally) Prometheus
metrics endpoints.

Examples:
  # Run with the default config location
  tgcloud serve

  # Run with a custom config
  tgcloud serve --config /etc/tgcloud/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc.close(closeCtx)
	}()

	server := api.NewServer(api.Config{
		Port:         svc.cfg.Web.Port,
		ReadTimeout:  svc.cfg.Web.ReadTimeout,
		WriteTimeout: svc.cfg.Web.WriteTimeout,
	}, svc.engine, svc.registry)

	logger.Info("serving", "port", svc.cfg.Web.Port, "metrics", svc.cfg.Metrics.Enabled)
	return server.Start(ctx)
}
