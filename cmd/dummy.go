package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shakeout/internal/dummy"
	"shakeout/internal/logging"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Serve the simulated target locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		path, _ := cmd.Flags().GetString("catalog")

		catalog, err := loadCatalog(path)
		if err != nil {
			return err
		}
		logger, err := logging.New("info", "console")
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return dummy.Start(ctx, dummy.ServerConfig{Port: port, Catalog: catalog}, logger.Named("dummy"))
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
	dummyCmd.Flags().String("catalog", "", "YAML operation catalog (default built-in)")
}
