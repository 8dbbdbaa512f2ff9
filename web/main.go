package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/studenthistory/internal/config"
	"github.com/devilmonastery/studenthistory/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/studenthistory/internal/pkg/idgen"
	"github.com/devilmonastery/studenthistory/internal/pkg/logger"
	"github.com/devilmonastery/studenthistory/migrations"
)

// dbConnectAttempts covers a database that starts together with the app
const dbConnectAttempts = 10

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath    string
	logLevel      string
	logFile       string
	logFormat     string
	alsoLogStderr bool
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		flags        globalFlags
		forceVersion int
		cfg          *config.Config
	)

	cmd := &cobra.Command{
		Use:   "studenthistory",
		Short: "Student lesson history service",
		Long:  "Serves lesson history from Google Sheets to students through a Telegram Mini App and shared links",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return setupLogging(cmd, flags, cfg.Log)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfg, forceVersion)
		},
		SilenceUsage: true,
	}

	cmd.Flags().IntVar(&forceVersion, "force-migration", -1, "Force migration version (use to fix dirty migration state)")

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to config file (optional)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	pf.BoolVar(&flags.alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	pf.StringVar(&flags.logFormat, "log-format", "text", "Log format (text, json)")

	configFn := func() *config.Config { return cfg }
	cmd.AddCommand(newAdminCommand(configFn))
	cmd.AddCommand(newStudentCommand(configFn))
	cmd.AddCommand(newTokenCommand(configFn))

	return cmd
}

// setupLogging configures the global logger. Flags win over the config
// file when given explicitly.
func setupLogging(cmd *cobra.Command, flags globalFlags, logCfg config.LogConfig) error {
	level, format, file := logCfg.Level, logCfg.Format, logCfg.File
	if cmd.Flags().Changed("log-level") || level == "" {
		level = flags.logLevel
	}
	if cmd.Flags().Changed("log-format") || format == "" {
		format = flags.logFormat
	}
	if cmd.Flags().Changed("log-file") {
		file = flags.logFile
	}

	globalLogger, err := logger.SetupLogger(logger.Config{
		Level:         logger.ParseLevel(level),
		LogFile:       file,
		LogToStderr:   file == "",
		AlsoLogStderr: flags.alsoLogStderr,
		Format:        format,
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	slog.SetDefault(globalLogger)
	return nil
}

// connectDatabase connects to PostgreSQL without touching the schema
func connectDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*postgres.Connection, error) {
	if err := idgen.Initialize(cfg.Server.NodeID); err != nil {
		return nil, fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	log.Info("Initializing PostgreSQL database",
		"host", cfg.Database.Postgres.Host,
		"database", cfg.Database.Postgres.Database,
		"user", cfg.Database.Postgres.User)

	return postgres.ConnectWithRetry(ctx, cfg.Database.Postgres.ConnectionString(), dbConnectAttempts, log)
}

// openDatabase connects to PostgreSQL and brings the schema up to date
func openDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*postgres.Connection, error) {
	conn, err := connectDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := conn.RunMigrations(migrations.FS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
	}
	return conn, nil
}
