package main

import (
	"context"
	"fmt"

	"github.com/iwvelando/risk-forecast/internal/config"
	"github.com/iwvelando/risk-forecast/internal/jobs"
	"github.com/iwvelando/risk-forecast/internal/metrics"
	"github.com/iwvelando/risk-forecast/internal/repository"
	"github.com/iwvelando/risk-forecast/internal/server"
	"github.com/iwvelando/risk-forecast/internal/simulation"
	"github.com/iwvelando/risk-forecast/pkg/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	serverConfigPath string
	configPath       string
	dbPath           string
	address          string
	maxRequestSize   string
	logLevel         string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation API over HTTP",
		Long: `Starts the HTTP API. Ad-hoc simulations are always available. When a
configuration file or a SQLite database is given, its project revisions can be
simulated by name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.serverConfigPath, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	flags.StringVar(&opts.configPath, "config", "", "configuration file whose project revision is served (and imported when --db is set)")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database holding project revisions")
	flags.StringVar(&opts.address, "address", "", "listen address override")
	flags.StringVar(&opts.maxRequestSize, "max-request-size", "", "request body limit override, e.g. 512K or 4MB")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	return cmd
}

func runServer(ctx context.Context, opts *serveOptions) error {
	cfg, err := server.LoadConfig(opts.serverConfigPath)
	if err != nil {
		return err
	}
	if err := applyServeOverrides(cfg, opts); err != nil {
		return err
	}

	logger, err := initializeLogger(cfg.Logging, opts.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	var conf *config.Configuration
	if opts.configPath != "" {
		conf, err = config.LoadConfiguration(opts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration at %s: %w", opts.configPath, err)
		}
		for _, warning := range conf.ValidateConfiguration() {
			logger.Warn("Configuration warning: "+warning,
				zap.String("op", "main.serve"),
			)
		}
	}

	repo, closeRepo, err := openRepository(ctx, conf, opts.dbPath, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	engineOpts := []simulation.Option{simulation.WithWorkers(cfg.Workers)}
	if conf != nil {
		engineOpts = append(engineOpts, simulation.WithSamplerConfig(conf.SamplerConfig()))
	}
	m := metrics.New()
	engineOpts = append(engineOpts, simulation.WithObserver(m))
	engine := simulation.NewEngine(logger, engineOpts...)

	manager := jobs.NewManager(engine, logger,
		jobs.WithMaxJobs(cfg.MaxJobs),
		jobs.WithGauge(m.JobsActive()),
	)

	handler := server.NewHandler(logger, server.Options{
		Engine:         engine,
		Jobs:           manager,
		Repository:     repo,
		Metrics:        m.Handler(),
		MaxRequestSize: cfg.RequestSizeBytes(),
		Version:        version,
	})

	serveErr := server.Serve(ctx, cfg, handler, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn("jobs did not stop before the shutdown timeout",
			zap.String("op", "main.serve"),
			zap.Error(err),
		)
	}
	return serveErr
}

// applyServeOverrides layers command-line flags over the server config.
func applyServeOverrides(cfg *server.Config, opts *serveOptions) error {
	if opts.address != "" {
		cfg.Address = opts.address
	}
	if opts.maxRequestSize != "" {
		size, err := server.ParseSize(opts.maxRequestSize)
		if err != nil {
			return fmt.Errorf("invalid --max-request-size: %w", err)
		}
		if size <= 0 {
			return fmt.Errorf("invalid --max-request-size: %q must be positive", opts.maxRequestSize)
		}
		cfg.SetRequestSizeBytes(size)
	}
	return nil
}

// openRepository selects the revision source. A SQLite database wins over the
// configuration file; a configuration passed alongside one is imported first.
func openRepository(ctx context.Context, conf *config.Configuration, dbPath string, logger *zap.Logger) (repository.Source, func(), error) {
	noop := func() {}

	if dbPath == "" && conf != nil && conf.Repository.Driver == constants.RepositoryDriverSQLite {
		dbPath = conf.Repository.DSN
	}

	if dbPath == "" {
		if conf == nil {
			return nil, noop, nil
		}
		return repository.NewConfigRepository(conf), noop, nil
	}

	store, err := repository.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return nil, noop, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close repository",
				zap.String("op", "main.openRepository"),
				zap.Error(err),
			)
		}
	}

	if conf != nil {
		if err := store.Import(ctx, conf); err != nil {
			closeStore()
			return nil, noop, fmt.Errorf("failed to import configuration into %s: %w", dbPath, err)
		}
		logger.Info("imported project revision",
			zap.String("op", "main.openRepository"),
			zap.String("project", conf.Project.Name),
			zap.String("revision", conf.Project.Revision),
			zap.String("db", store.Path()),
		)
	}
	return store, closeStore, nil
}
