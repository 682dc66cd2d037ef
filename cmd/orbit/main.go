package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hitoshi/orbit/internal/app"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serve はSIGINTまたはSIGTERMでキャンセルされるコンテキストでサーバーを起動する。
func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Serve(ctx, os.Stdout)
}

var rootCmd = &cobra.Command{
	Use:          "orbit",
	Short:        "Orbit Finance web frontend",
	SilenceUsage: true,
	RunE:         serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  serve,
}

var healthcheckPort string

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe /health of the local server (for distroless images)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Healthcheck(healthcheckPort)
	},
}

func init() {
	defaultPort := os.Getenv("SERVER_PORT")
	if defaultPort == "" {
		defaultPort = "8080"
	}
	healthcheckCmd.Flags().StringVar(&healthcheckPort, "port", defaultPort, "server port to probe")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthcheckCmd)
}
