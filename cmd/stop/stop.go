package stop

import (
	"context"
	"flag"

	"github.com/jacobweinstock/wpci/app"
	"github.com/jacobweinstock/wpci/cmd/root"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const stopCmd = "stop"

// Config for the stop subcommand.
type Config struct {
	rootConfig    *root.Config
	containerName string
}

func New(rootConfig *root.Config) *ffcli.Command {
	cfg := Config{
		rootConfig: rootConfig,
	}

	fs := flag.NewFlagSet(stopCmd, flag.ExitOnError)
	cfg.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       stopCmd,
		ShortUsage: "wpci stop [flags]",
		ShortHelp:  "stop and remove the WordPress CI container.",
		FlagSet:    fs,
		Options:    root.Options(),
		Exec:       cfg.Exec,
	}
}

func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.containerName, "container-name", app.DefaultContainerName, "name of the WordPress CI container (optional)")
}

// Exec function for this command.
func (c *Config) Exec(ctx context.Context, _ []string) error {
	backend, err := c.rootConfig.Backend()
	if err != nil {
		return err
	}
	return c.stop(ctx, backend)
}

func (c *Config) stop(ctx context.Context, runtime app.Runtime) error {
	if err := runtime.Remove(ctx, c.containerName); err != nil {
		return err
	}
	c.rootConfig.Log.V(0).Info("container removed", "name", c.containerName)
	return nil
}
