// Package cli wires the pulsecheck commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/logging"
)

var (
	cfgFile       string
	currentConfig config.Config
)

var rootCmd = &cobra.Command{
	Use:           "pulsecheck",
	Short:         "pulsecheck: request and query latency rollups on DuckDB",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Flags override file and environment.
		if cmd.Flags().Changed("db") {
			cfg = cfg.WithDatabasePath(viper.GetString("db"))
		}
		if cmd.Flags().Changed("log-level") {
			cfg = cfg.WithLogLevel(viper.GetString("log-level"))
		}
		if cmd.Flags().Changed("graph") {
			cfg = cfg.WithGraph(viper.GetBool("graph"))
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		currentConfig = cfg

		return logging.Init(cfg.Logging)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
}

// Execute runs the root command and exits non-zero on failure. Interrupts
// cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("db", "", "DuckDB file, overrides database.path")
	rootCmd.PersistentFlags().String("log-level", "", "log level, overrides logging.level")
	rootCmd.PersistentFlags().Bool("graph", false, "mirror summaries to Neo4j, overrides graph.enabled")

	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("graph", rootCmd.PersistentFlags().Lookup("graph"))
}

// getConfig returns the configuration resolved for the running command.
func getConfig() config.Config {
	return currentConfig
}

// openStore opens and migrates the configured database.
func openStore(ctx context.Context) (*relational.DuckDBClient, *relational.Repo, error) {
	client, repo, err := relational.Open(ctx, getConfig().Database)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("path", getConfig().Database.Path).Debug("database opened")
	return client, repo, nil
}

// parseInstant accepts RFC3339 or a bare YYYY-MM-DD (midnight UTC). Empty means now.
func parseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
