package main

import (
	"fmt"
	"io"

	"github.com/iwvelando/risk-forecast/internal/config"
	"github.com/iwvelando/risk-forecast/internal/simulation"
	"github.com/iwvelando/risk-forecast/pkg/constants"
	"github.com/iwvelando/risk-forecast/pkg/output"
	"github.com/iwvelando/risk-forecast/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	configPath   string
	outputFormat string
	logLevel     string
	seed         uint64
	iterations   int
	workers      int
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate the risk register in a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", constants.DefaultConfigFile, "path to configuration file")
	flags.StringVar(&opts.outputFormat, "output-format", "", "type of output override: pretty, csv, json")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed override")
	flags.IntVar(&opts.iterations, "iterations", 0, "iteration count override")
	flags.IntVar(&opts.workers, "workers", 0, "number of goroutines drawing iterations")
	return cmd
}

func runSimulation(cmd *cobra.Command, opts *runOptions) error {
	conf, err := config.LoadConfiguration(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration at %s: %w", opts.configPath, err)
	}

	logger, err := initializeLogger(conf.Logging, opts.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	flags := cmd.Flags()
	if flags.Changed("seed") {
		seed := opts.seed
		conf.Simulation.Seed = &seed
	}
	if flags.Changed("iterations") {
		conf.Simulation.Iterations = opts.iterations
	}
	if flags.Changed("workers") {
		conf.Simulation.Workers = opts.workers
	}

	// CLI override takes precedence over config
	outputFormat := conf.Output.Format
	if opts.outputFormat != "" {
		outputFormat = opts.outputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main.run"),
		)
	}

	engine := simulation.NewEngine(logger,
		simulation.WithWorkers(conf.Simulation.Workers),
		simulation.WithSamplerConfig(conf.SamplerConfig()),
	)
	result, err := engine.Run(cmd.Context(), conf.Request())
	if err != nil {
		return fmt.Errorf("failed to run simulation: %w", err)
	}

	return writeResult(cmd.OutOrStdout(), outputFormat, result)
}

func writeResult(w io.Writer, outputFormat string, result *simulation.Result) error {
	switch outputFormat {
	case constants.OutputFormatCSV:
		return output.CsvFormat(w, result)
	case constants.OutputFormatJSON:
		return output.JSONFormat(w, result)
	default:
		return output.PrettyFormat(w, result)
	}
}
