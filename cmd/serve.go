// File: cmd/serve.go
package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/mendbot/internal/observability"
	"github.com/xkilldash9x/mendbot/internal/server"
)

// newServeCmd creates the API server command.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the healing API (REST + SSE + websocket).",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			app, closer, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer closer()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg.Server, app.Healer, app.Store, app.Registry, logger)
			return srv.Run(ctx)
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
