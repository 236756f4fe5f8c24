package run

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jacobweinstock/wpci/app"
	"github.com/jacobweinstock/wpci/cmd/root"
	"github.com/jacobweinstock/wpci/pkg/container"
	"github.com/jacobweinstock/wpci/pkg/httpwait"
	"github.com/jacobweinstock/wpci/pkg/proxy"
	"github.com/jacobweinstock/wpci/pkg/shell"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-githubactions"
)

const runCmd = "run"

// Config for the run subcommand. List inputs are newline-delimited, the way
// GitHub Actions passes multi-line inputs.
type Config struct {
	rootConfig *root.Config
	app        app.Config
	plugins    string
	themes     string
	interval   time.Duration
	// image reference parts, used when --image is not set
	imageRegistry string
	imageName     string
	imageTag      string
}

func New(rootConfig *root.Config) *ffcli.Command {
	cfg := Config{
		rootConfig: rootConfig,
	}

	fs := flag.NewFlagSet(runCmd, flag.ExitOnError)
	cfg.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       runCmd,
		ShortUsage: "wpci run --image <image> [flags]",
		ShortHelp:  "start the WordPress CI container, run the test command against it and remove it.",
		FlagSet:    fs,
		Options:    root.Options(),
		Exec:       cfg.Exec,
	}
}

func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.app.Image, "image", "", "WordPress CI container image, required unless image-name is set")
	fs.StringVar(&c.imageRegistry, "image-registry", "", "registry of the image, combined with image-name and image-tag (optional)")
	fs.StringVar(&c.imageName, "image-name", "", "image name, used when image is not set (optional)")
	fs.StringVar(&c.imageTag, "image-tag", "latest", "image tag (optional)")
	fs.StringVar(&c.app.Network, "network", "", "network for the container, discovered from db-host when empty (optional)")
	fs.StringVar(&c.plugins, "plugins", "", "newline-delimited plugin paths to mount (optional)")
	fs.StringVar(&c.themes, "themes", "", "newline-delimited theme paths to mount (optional)")
	fs.StringVar(&c.app.DBHost, "db-host", "", "database host (optional)")
	fs.StringVar(&c.app.DBName, "db-name", "", "database name (optional)")
	fs.StringVar(&c.app.DBUser, "db-user", "", "database user (optional)")
	fs.StringVar(&c.app.DBPassword, "db-password", "", "database password (optional)")
	fs.BoolVar(&c.app.CleanOnStart, "clean-on-start", false, "reset WordPress when the container starts (optional)")
	fs.StringVar(&c.app.ImportSQL, "import-sql", "", "SQL dump to import when the container starts (optional)")
	fs.StringVar(&c.app.SetupScript, "setup-script", "", "bash script run before the test command (optional)")
	fs.StringVar(&c.app.TestCommand, "test-command", "", "bash script to run against the container (optional)")
	fs.StringVar(&c.app.TestCommandContext, "test-command-context", ".", "working directory of the test command (optional)")
	fs.StringVar(&c.app.Workspace, "workspace", "", "base directory for relative paths, defaults to the current directory (optional)")
	fs.StringVar(&c.app.ContainerName, "container-name", app.DefaultContainerName, "name of the WordPress CI container (optional)")
	fs.IntVar(&c.app.Port, "port", app.DefaultPort, "host port the container's web server is published on (optional)")
	fs.DurationVar(&c.app.StartTimeout, "start-timeout", app.DefaultStartTimeout, "how long to wait for the container to answer HTTP (optional)")
	fs.DurationVar(&c.interval, "poll-interval", httpwait.DefaultInterval, "wait between HTTP readiness probes (optional)")
	fs.StringVar(&c.app.ProxyPath, "proxy-path", proxy.DefaultPath, "where to install the proxy script (optional)")
}

// Exec function for this command.
func (c *Config) Exec(ctx context.Context, _ []string) error {
	log := c.rootConfig.Log
	action := githubactions.New()
	cfg, err := c.appConfig()
	if err != nil {
		action.SetOutput("status", "error")
		action.Errorf("%v", err)
		return err
	}
	log.V(1).Info("configuration", "image", cfg.Image, "network", cfg.Network, "plugins", cfg.Plugins, "themes", cfg.Themes,
		"dbHost", cfg.DBHost, "dbName", cfg.DBName, "dbUser", cfg.DBUser, "dbPassword", redact(cfg.DBPassword),
		"cleanOnStart", cfg.CleanOnStart, "importSQL", cfg.ImportSQL, "setupScript", cfg.SetupScript, "testCommand", cfg.TestCommand,
		"testCommandContext", cfg.TestCommandContext, "workspace", cfg.Workspace)

	backend, err := c.rootConfig.Backend()
	if err != nil {
		action.SetOutput("status", "error")
		return err
	}
	env := app.Environment{
		Runtime:   backend,
		Resolver:  &container.Resolver{Runtime: backend},
		Waiter:    &httpwait.Waiter{Interval: c.interval, Log: log},
		Installer: proxy.Installer{},
		Shell:     &shell.Runner{Out: os.Stdout},
		Reporter:  action,
		Log:       log,
	}
	result, err := app.Run(ctx, cfg, env)
	if err != nil {
		action.Errorf("%v", err)
		return err
	}
	log.V(0).Info("run complete", "network", result.Network, "elapsed", result.Elapsed.String())
	return nil
}

func (c *Config) appConfig() (app.Config, error) {
	cfg := c.app
	if cfg.Image == "" {
		cfg.Image = app.ImageRef(c.imageRegistry, c.imageName, c.imageTag)
	}
	cfg.Plugins = app.SplitList(c.plugins)
	cfg.Themes = app.SplitList(c.themes)
	if cfg.TestCommandContext == "" {
		cfg.TestCommandContext = "."
	}
	if cfg.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return app.Config{}, errors.Wrap(err, "unable to determine the workspace")
		}
		cfg.Workspace = wd
	}
	if err := validator.New().Struct(cfg); err != nil {
		return app.Config{}, errors.Wrap(err, "invalid run configuration")
	}
	return cfg, nil
}

func redact(s string) string {
	if s == "" {
		return "[EMPTY]"
	}
	return "[REDACTED]"
}
