package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shakeout/internal/runner"
	"shakeout/internal/scenario"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Run only the failure scenario simulator",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, logger, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env := runner.NewEnv(logger, policies(s))
		if err := env.Init(); err != nil {
			return err
		}
		defer env.Teardown()

		sim := scenario.NewSimulator(env.Executor, env.Policies, logger.Named("scenario"))
		outcomes, err := sim.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("\n🧪 FAILURE SCENARIOS\n")
		fmt.Printf("======================================================================\n")
		for _, o := range outcomes {
			mark := "✅"
			if o.Status != scenario.StatusRecovered {
				mark = "❌"
			}
			fmt.Printf("%s %-18s %-14s attempts: %d  %s\n", mark, o.Name, o.Policy, o.Attempts, o.Message)
		}
		fmt.Printf("======================================================================\n")

		if !scenario.AllRecovered(outcomes) {
			return fmt.Errorf("not every failure scenario recovered")
		}
		return nil
	},
}

func init() {
	scenariosCmd.Flags().Float64("retry-scale", 1, "Multiply every retry delay by this factor")
	scenariosCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	scenariosCmd.Flags().String("log-format", "console", "Log format: console or json")
}
