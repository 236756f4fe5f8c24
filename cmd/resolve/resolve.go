package resolve

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"

	"github.com/jacobweinstock/wpci/cmd/root"
	"github.com/jacobweinstock/wpci/pkg/container"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pkg/errors"
)

const resolveCmd = "resolve"

// Config for the resolve subcommand.
type Config struct {
	rootConfig *root.Config
	out        io.Writer
}

func New(rootConfig *root.Config) *ffcli.Command {
	cfg := Config{
		rootConfig: rootConfig,
		out:        os.Stdout,
	}

	fs := flag.NewFlagSet(resolveCmd, flag.ExitOnError)

	return &ffcli.Command{
		Name:       resolveCmd,
		ShortUsage: "wpci resolve <dns-name-fragment>",
		ShortHelp:  "print the network and container reachable by a DNS name containing the fragment.",
		FlagSet:    fs,
		Options:    root.Options(),
		Exec:       cfg.Exec,
	}
}

// Exec function for this command.
func (c *Config) Exec(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return flag.ErrHelp
	}
	backend, err := c.rootConfig.Backend()
	if err != nil {
		return err
	}
	return c.resolve(ctx, &container.Resolver{Runtime: backend}, args[0])
}

func (c *Config) resolve(ctx context.Context, r *container.Resolver, match string) error {
	found, err := r.FindByDNSName(ctx, match)
	if err != nil {
		return err
	}
	c.rootConfig.Log.V(0).Info("container found", "network", found.NetworkName, "container", found.ContainerInfo.ID)
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(found), "unable to write result")
}
