package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"kmeansviz/internal/algorithm"
	"kmeansviz/internal/config"
	"kmeansviz/internal/kmeans"
	"kmeansviz/internal/logger"
)

// NewAlgorithmCmd creates the command that runs the reference algorithm service
func NewAlgorithmCmd() *cobra.Command {
	var (
		port        int
		datasetSize int
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "algorithm",
		Short: "Start the reference KMeans algorithm service",
		Long: `Start the reference algorithm service used by the front ends.

It exposes POST /initialize, /step, /converge and /reset. Each initialize
generates a fresh dataset of normally distributed 2D points; the session that
issued it is remembered through the X-Session-ID header.

Examples:
  kmeansviz algorithm
  kmeansviz algorithm --port 3001 --dataset-size 500 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlgorithm(port, datasetSize, seed)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Service port (default from config: 3000)")
	cmd.Flags().IntVar(&datasetSize, "dataset-size", 0, "Points per generated dataset (default from config: 200)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed, 0 seeds from the clock")

	return cmd
}

func runAlgorithm(port, datasetSize int, seed int64) error {
	log := logger.Component("algorithm")

	algoCfg := config.GetAlgorithm()
	if port != 0 {
		algoCfg.Port = port
	}
	if datasetSize > 0 {
		algoCfg.DatasetSize = datasetSize
	}
	if seed != 0 {
		algoCfg.Seed = seed
	}

	engine := kmeans.NewEngine(algorithm.EngineConfig(algoCfg))
	srv := algorithm.New(algorithm.NewState(engine), algoCfg)

	log.Info(fmt.Sprintf("Algorithm service listening on http://%s:%d", algoCfg.Host, algoCfg.Port),
		"dataset_size", algoCfg.DatasetSize,
		"max_iterations", algoCfg.MaxIterations,
	)

	return runUntilSignal(log, srv, config.GetServer().ShutdownTimeout)
}
