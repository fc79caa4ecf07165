package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/editgroups/editgroups/internal/config"
	"github.com/editgroups/editgroups/internal/database"
	"github.com/editgroups/editgroups/internal/ingest"
	"github.com/editgroups/editgroups/internal/logging"
	"github.com/editgroups/editgroups/internal/registry"
	"github.com/editgroups/editgroups/internal/store"
)

var (
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *logrus.Logger
	db     *gorm.DB
)

var rootCmd = &cobra.Command{
	Use:           "editgroups",
	Short:         "Group Wikidata edits into the batches of the tools that made them",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine: the environment may be set directly
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}

		db, err = database.Open(cfg.DatabaseURL, gormLogLevel(logger.GetLevel()))
		if err != nil {
			return err
		}
		return database.AutoMigrate(db)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if db == nil {
			return nil
		}
		return database.Close(db)
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.WithError(err).Error("Command failed")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of environment variables to load")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
}

func gormLogLevel(level logrus.Level) gormlogger.LogLevel {
	switch {
	case level >= logrus.TraceLevel:
		return gormlogger.Info
	case level >= logrus.WarnLevel:
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

// newPipeline builds an ingestion pipeline over the stored tool registry.
func newPipeline(ctx context.Context) (*ingest.Pipeline, error) {
	st := store.NewGorm(db)
	tools, err := st.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	if len(tools) == 0 {
		return nil, errors.New("no tools are registered, run load-tools first")
	}
	reg, err := registry.New(tools)
	if err != nil {
		return nil, fmt.Errorf("invalid tool registry: %w", err)
	}

	logger.WithField("tools", reg.Len()).Debug("Tool registry loaded")
	return ingest.New(st, reg,
		ingest.WithChunkSize(cfg.ChunkSize),
		ingest.WithMaxFieldLength(cfg.MaxFieldLength),
		ingest.WithWorkers(cfg.ClassifyWorkers),
		ingest.WithMaxRetries(cfg.MaxRetries),
		ingest.WithLogger(logger),
	), nil
}
