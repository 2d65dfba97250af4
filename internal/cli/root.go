// Package cli implements the tetherdb command line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/adrianmcphee/tetherdb"
	"github.com/adrianmcphee/tetherdb/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.4.0"
)

// app holds what the commands of one invocation share
type app struct {
	v        *viper.Viper
	settings *config.Settings
	logger   *tetherdb.ZapLogger
	metrics  *tetherdb.PrometheusMetrics
}

// NewRootCommand builds the tetherdb command tree
func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "tetherdb",
		Short: "document store for small devices",
		Long: fmt.Sprintf(`TetherDB (v%s)

A small embedded document store. Documents are JSON objects stored under
random numeric ids in a single file, with timestamps, device tags, filters
and age-based cleanup.`, Version),
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", WrapString("config file (json, yaml or toml)"))
	flags.String("env-dir", ".", WrapString("directory holding .env and .env.local"))
	flags.String("path", tetherdb.DefaultPath, WrapString("database file"))
	flags.String("engine", tetherdb.DefaultEngine, WrapString("storage engine (bolt, sqlite, memory)"))
	flags.String("device-id", "", WrapString("device tag for written documents, defaults to <os>-device"))
	flags.String("utc-offset", tetherdb.DefaultOffsetLabel, WrapString("label appended to displayed timestamps"))
	flags.String("cleanup-seconds", "", WrapString("default age in seconds for cleanup"))
	flags.String("log-level", config.DefaultLogLevel, WrapString("log level (debug, info, warn, error)"))

	bind := map[string]string{
		config.KeyPath:           "path",
		config.KeyEngine:         "engine",
		config.KeyDeviceID:       "device-id",
		config.KeyUTCOffset:      "utc-offset",
		config.KeyCleanupSeconds: "cleanup-seconds",
		config.KeyLogLevel:       "log-level",
	}
	for key, flag := range bind {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newWriteCmd(a),
		newReadCmd(a),
		newDeleteCmd(a),
		newFilterCmd(a),
		newCleanupCmd(a),
		newStatsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newVersionCmd(),
	)

	return root
}

// open loads configuration and opens the store for one command
func (a *app) open(cmd *cobra.Command) (*tetherdb.Store, error) {
	envDir, _ := cmd.Flags().GetString("env-dir")
	config.LoadEnvFiles(envDir)

	file, _ := cmd.Flags().GetString("config")
	settings, err := config.Load(a.v, file)
	if err != nil {
		return nil, err
	}
	a.settings = settings

	logger, err := tetherdb.NewZapLoggerAtLevel(settings.LogLevel)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	for _, w := range settings.Warnings {
		logger.Warn("configuration value ignored", "detail", w)
	}

	a.metrics = tetherdb.NewPrometheusMetrics(nil)

	return tetherdb.Open(settings.Store,
		tetherdb.WithLogger(logger),
		tetherdb.WithMetrics(a.metrics),
	)
}

// withStore wraps a command body with opening and closing the store
func (a *app) withStore(run func(cmd *cobra.Command, args []string, s *tetherdb.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		s, err := a.open(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.Close(); cerr != nil && err == nil {
				err = cerr
			}
			_ = a.logger.Sync()
		}()
		return run(cmd, args, s)
	}
}

// Execute runs the command tree and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
