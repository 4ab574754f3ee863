package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"kmeansviz/internal/client"
	"kmeansviz/internal/config"
	"kmeansviz/internal/logger"
	"kmeansviz/internal/server"
	"kmeansviz/internal/session"
)

// NewServeCmd creates the serve command for starting the web front end
func NewServeCmd() *cobra.Command {
	var (
		port        int
		host        string
		templateDir string
		serviceURL  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web front end",
		Long: `Start the kmeansviz web front end.

The page offers a cluster count input, an initialization method selector and
the new dataset, step, converge and reset commands. With the "manual" method,
centroids are placed by clicking on the plot.

The algorithm service must be reachable at service.base_url
(KMEANS_SERVICE_URL). Start the reference one with 'kmeansviz algorithm'.

Examples:
  # Start on the default port 8080
  kmeansviz serve

  # Point at another algorithm service
  kmeansviz serve --service-url http://algo.internal:3000

  # Edit templates without rebuilding
  kmeansviz serve --template-dir ./internal/server/templates`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, host, templateDir, serviceURL)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().StringVar(&templateDir, "template-dir", "", "Load templates from disk with hot reload")
	cmd.Flags().StringVar(&serviceURL, "service-url", "", "Algorithm service base URL (default from config)")

	return cmd
}

func runServe(port int, host, templateDir, serviceURL string) error {
	log := logger.Component("serve")

	serverCfg := config.GetServer()
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}
	if templateDir != "" {
		serverCfg.TemplateDir = templateDir
	}

	serviceCfg := config.GetService()
	if serviceURL != "" {
		serviceCfg.BaseURL = serviceURL
	}

	log.Info("Using algorithm service", "url", serviceCfg.BaseURL, "timeout", serviceCfg.Timeout)
	ctrl := session.New(client.New(serviceCfg.BaseURL, serviceCfg.Timeout))

	srv := server.New(ctrl, serverCfg, config.GetUI())
	log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))

	return runUntilSignal(log, srv, serverCfg.ShutdownTimeout)
}
