package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JamesWheadon/Carbon-Intensity/app"
	"github.com/JamesWheadon/Carbon-Intensity/config"
	"github.com/JamesWheadon/Carbon-Intensity/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "carbon-scheduler",
	Short: "Low carbon charge time scheduler",
	RunE:  run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and forecast feeds",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json); environment only when empty")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
