package cmd

import (
	"context"
	"os"

	"github.com/jacobweinstock/wpci/cmd/installproxy"
	"github.com/jacobweinstock/wpci/cmd/resolve"
	"github.com/jacobweinstock/wpci/cmd/root"
	"github.com/jacobweinstock/wpci/cmd/run"
	"github.com/jacobweinstock/wpci/cmd/stop"
	"github.com/jacobweinstock/wpci/cmd/wait"
	"github.com/peterbourgon/ff/v3/ffcli"
)

// Execute sets up the config and logging, then runs the selected subcommand
func Execute(ctx context.Context) error {
	rootCmd, rootConfig := root.New()
	rootCmd.Subcommands = []*ffcli.Command{
		run.New(rootConfig),
		resolve.New(rootConfig),
		wait.New(rootConfig),
		installproxy.New(rootConfig),
		stop.New(rootConfig),
	}

	if err := rootCmd.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := rootConfig.Setup(); err != nil {
		return err
	}
	return rootCmd.Run(ctx)
}
