package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kmeansviz/internal/config"
	"kmeansviz/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kmeansviz",
		Short: "kmeansviz drives and visualizes KMeans clustering step by step.",
		Long: `kmeansviz is an interactive front end for KMeans clustering.

The numeric work is done by an algorithm service. The front end collects the
cluster count and initialization method, lets the operator place centroids by
clicking on the plot, and renders every step of the run.

  kmeansviz algorithm   start the reference algorithm service
  kmeansviz serve       start the web front end
  kmeansviz tui         run the terminal front end`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kmeansviz.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewAlgorithmCmd())
	rootCmd.AddCommand(NewTUICmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Configure(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
	if config.IsDebugMode() {
		logger.Info("Debug mode enabled", "level", cfg.Logging.Level)
	}
}
