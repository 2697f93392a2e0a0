package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/maildispatch/app"
	"github.com/jonwraymond/maildispatch/config"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP dispatch service",
		Long: `Start the HTTP dispatch service.

Configuration is layered: built-in defaults, then the YAML file given by
--config, then MAILDISPATCH_* environment variables, then flags. A .env file
in the working directory is loaded first when present.`,
		RunE: runServe,
	}
	cmd.Flags().StringP("config", "c", "", "path to a YAML configuration file")
	cmd.Flags().Int("port", 0, "HTTP port (overrides configuration and PORT)")
	cmd.Flags().StringSlice("env-file", nil, "dotenv files to load (default .env)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Email dispatch service running on http://%s\n", cfg.Server.Addr())
	fmt.Fprintf(cmd.ErrOrStderr(), "  POST %s\n", cfg.Server.SendPath)
	return a.Run(ctx)
}
