package installproxy

import (
	"context"
	"flag"

	"github.com/jacobweinstock/wpci/app"
	"github.com/jacobweinstock/wpci/cmd/root"
	"github.com/jacobweinstock/wpci/pkg/proxy"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const installProxyCmd = "install-proxy"

// Config for the install-proxy subcommand.
type Config struct {
	rootConfig *root.Config
	path       string
	container  string
	command    string
	installer  app.ScriptInstaller
}

func New(rootConfig *root.Config) *ffcli.Command {
	cfg := Config{
		rootConfig: rootConfig,
		installer:  proxy.Installer{},
	}

	fs := flag.NewFlagSet(installProxyCmd, flag.ExitOnError)
	cfg.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       installProxyCmd,
		ShortUsage: "wpci install-proxy [flags]",
		ShortHelp:  "install a script that runs its arguments inside the WordPress CI container.",
		FlagSet:    fs,
		Options:    root.Options(),
		Exec:       cfg.Exec,
	}
}

func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.path, "path", proxy.DefaultPath, "where to install the script (optional)")
	fs.StringVar(&c.container, "container", app.DefaultContainerName, "container the script execs into (optional)")
	fs.StringVar(&c.command, "command", "", "command prefixed to the script's arguments (optional)")
}

// Exec function for this command.
func (c *Config) Exec(_ context.Context, _ []string) error {
	content, err := proxy.Script(c.container, c.command)
	if err != nil {
		return err
	}
	wrote, err := c.installer.Install(c.path, content)
	if err != nil {
		return err
	}
	if !wrote {
		c.rootConfig.Log.V(0).Info("proxy script already exists, leaving it in place", "path", c.path)
		return nil
	}
	c.rootConfig.Log.V(0).Info("proxy script installed", "path", c.path, "container", c.container)
	return nil
}
