package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"shakeout/internal/banner"
	"shakeout/internal/config"
	"shakeout/internal/harness"
	"shakeout/internal/logging"
	"shakeout/internal/ops"
	"shakeout/internal/retry"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "shakeout",
	Short: "Shakeout - resilience verification for collaborative services",
	Long: `
Shakeout drives simulated users against a catalog of operations, retries
failures with exponential backoff and reports latency percentiles.

It supports three modes:
1. Load (Default): a fixed number of users, each issuing a run of requests
2. Stress (--stress): users ramped up in steps until --max-users
3. Endurance (--endurance): a single operation at a fixed rate for --duration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, logger, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()
		return runHarness(cmd, s, logger)
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, harness.ErrHarnessFault) {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shakeout.yaml)")
	config.RegisterFlags(rootCmd.Flags())

	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(dummyCmd)
}

// loadSettings resolves the command's settings and builds its logger.
func loadSettings(cmd *cobra.Command) (config.Settings, *zap.Logger, error) {
	s, err := config.Load(viper.New(), cmd.Flags(), cfgFile)
	if err != nil {
		return s, nil, err
	}
	level := s.LogLevel
	if s.TUI && level != "debug" {
		// The dashboard owns the terminal.
		level = "error"
	}
	logger, err := logging.New(level, s.LogFormat)
	if err != nil {
		return s, nil, err
	}
	return s, logger, nil
}

func loadCatalog(path string) (ops.Catalog, error) {
	if path == "" {
		return ops.DefaultCatalog(), nil
	}
	return ops.LoadCatalog(path)
}

func policies(s config.Settings) retry.Registry {
	return retry.DefaultRegistry().Scaled(s.RetryScale)
}
