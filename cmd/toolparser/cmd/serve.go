package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/efortin/vllm-toolparser/pkg/config"
	"github.com/efortin/vllm-toolparser/pkg/server"
	"github.com/efortin/vllm-toolparser/pkg/stats"
)

func newServeCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tool-call parser HTTP server",
		Long: `Start the HTTP server exposing the parsers.

The server provides:
- POST /v1/parse and /v1/extract for complete responses
- /v1/sessions for incremental parsing of streamed output
- /health and Prometheus /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if !cfg.Debug {
				gin.SetMode(gin.ReleaseMode)
			}

			srv, err := server.New(cfg, stats.NewMetricsRecorder())
			if err != nil {
				return err
			}

			log.Printf("🚀 Starting toolparser %s on :%s", version, cfg.Port)
			log.Printf("   Engine: %s", cfg.Engine)
			log.Printf("   Markers: %s ... %s", cfg.StartMarker, cfg.EndMarker)
			log.Printf("   Max sessions: %d", cfg.MaxSessions)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	def := config.Default()
	cmd.Flags().String("port", def.Port, "HTTP server port")
	cmd.Flags().Int("max-sessions", def.MaxSessions, "Maximum number of live streaming sessions")
	cmd.Flags().StringSlice("allow-origin", nil, "Origin allowed to make CORS requests, repeatable (\"*\" for any)")
	return cmd
}
