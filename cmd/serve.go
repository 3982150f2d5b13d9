package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/seascope/internal/app"
	"github.com/KaramelBytes/seascope/internal/logging"
	"github.com/KaramelBytes/seascope/internal/metrics"
	"github.com/KaramelBytes/seascope/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve every analysis as a JSON API",
	Long: `Serve starts an HTTP server exposing the analyses under /api, plus /healthz and
Prometheus metrics at /metrics. With --watch a local data file is watched and the
cached dataset is dropped whenever it changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("no configuration loaded (see `seascope config init`)")
		}
		// Server logs are JSON unless the config asks otherwise.
		lc := cfg.Log
		if lc.Encoding == "" || lc.Encoding == "console" {
			lc.Encoding = "json"
		}
		if debug {
			lc.Level = "debug"
		}
		if err := logging.Init(lc); err != nil {
			return err
		}

		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		a := app.New(cfg, metrics.New(), logging.Named("app"), app.WithLocation(flagData), app.WithSheet(flagSheet))
		srv := server.New(a, server.Config{Addr: addr, Watch: serveWatch})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving %s on %s\n", a.Location(), addr)
		return srv.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "drop the cached dataset when the local data file changes")
}
