package handlers

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kmeansviz/internal/client"
	"kmeansviz/internal/config"
	"kmeansviz/internal/logger"
	"kmeansviz/internal/session"
	"kmeansviz/internal/tui"
)

// NewTUICmd creates the TUI command
func NewTUICmd() *cobra.Command {
	var (
		serviceURL string
		logFile    string
	)

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the terminal front end",
		Long: `Launch the kmeansviz terminal front end.

Type digits to set the cluster count, tab to change the initialization method,
then n for a new dataset, s to step, c to converge and r to reset. With the
"manual" method, click on the plot to place centroids. e exports the current
scene as an HTML chart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(serviceURL, logFile)
		},
	}

	cmd.Flags().StringVar(&serviceURL, "service-url", "", "Algorithm service base URL (default from config)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file (logs are discarded otherwise)")

	return cmd
}

func runTUI(serviceURL, logFile string) error {
	logging := config.GetLogging()
	serviceCfg := config.GetService()
	uiCfg := config.GetUI()

	// Logging to stdout would draw over the alt screen
	var logOut io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		defer f.Close()
		logOut = f
	}
	logger.Configure(logOut, logging.Level, logging.Format)

	baseURL := serviceCfg.BaseURL
	if serviceURL != "" {
		baseURL = serviceURL
	}
	ctrl := session.New(client.New(baseURL, serviceCfg.Timeout))

	return tui.StartTUI(ctrl, tui.Options{
		Methods:         uiCfg.Methods,
		DefaultMethod:   uiCfg.DefaultMethod,
		DefaultClusters: uiCfg.DefaultClusters,
		ExportDir:       uiCfg.ExportDir,
		Timeout:         serviceCfg.Timeout,
	})
}
