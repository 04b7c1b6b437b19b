package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagraph/internal/config"
	"github.com/leapstack-labs/schemagraph/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve diagrams over HTTP",
		Long: `Start an HTTP server for editor and browser hosts.

Endpoints:
  POST /api/diagram         SQL in, diagram out
  PUT  /api/source          Replace the served source
  GET  /api/source/diagram  Diagram of the served source (ETag aware)
  GET  /api/events          Server-sent events on every change
  GET  /healthz             Liveness

With a file argument the file is the served source and is reloaded
whenever it changes.`,
		Example: `  # Stateless diagram service
  schemagraph serve

  # Follow a schema file on another port
  schemagraph serve schema.sql --addr 127.0.0.1:9000`,
		Args: cobra.MaximumNArgs(1),
		RunE: runServe,
	}

	cmd.Flags().String("addr", config.DefaultServerAddr, "Listen address")
	cmd.Flags().Duration("debounce", config.DefaultDebounce, "Quiet period before reloading the watched file")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sc := cc.Cfg.Server
	cfg := server.Config{
		Addr:            sc.Addr,
		AllowedOrigins:  sc.AllowedOrigins,
		RateLimit:       sc.RateLimit,
		Burst:           sc.Burst,
		MaxBodyBytes:    sc.MaxBodyBytes,
		RequestTimeout:  sc.RequestTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
		Diagram:         cc.DiagramOptions(),
		Debounce:        cc.Cfg.Watch.Debounce,
		Logger:          cc.Logger,
	}
	if len(args) == 1 {
		cfg.WatchPath = args[0]
	}

	cc.Renderer.Success("serving on http://" + sc.Addr)
	return server.New(cfg).Serve(cmd.Context())
}
