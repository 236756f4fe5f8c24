package wait

import (
	"context"
	"flag"
	"time"

	"github.com/jacobweinstock/wpci/app"
	"github.com/jacobweinstock/wpci/cmd/root"
	"github.com/jacobweinstock/wpci/pkg/httpwait"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pkg/errors"
)

const waitCmd = "wait"

// Config for the wait subcommand.
type Config struct {
	rootConfig *root.Config
	url        string
	timeout    time.Duration
	interval   time.Duration
}

func New(rootConfig *root.Config) *ffcli.Command {
	cfg := Config{
		rootConfig: rootConfig,
	}

	fs := flag.NewFlagSet(waitCmd, flag.ExitOnError)
	cfg.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       waitCmd,
		ShortUsage: "wpci wait --url <url> [flags]",
		ShortHelp:  "wait until a URL answers HTTP.",
		FlagSet:    fs,
		Options:    root.Options(),
		Exec:       cfg.Exec,
	}
}

func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.url, "url", "", "URL to probe (required)")
	fs.DurationVar(&c.timeout, "timeout", app.DefaultStartTimeout, "how long to wait (optional)")
	fs.DurationVar(&c.interval, "interval", httpwait.DefaultInterval, "wait between probes (optional)")
}

// Exec function for this command.
func (c *Config) Exec(ctx context.Context, _ []string) error {
	if c.url == "" {
		return errors.New("--url is required")
	}
	if c.timeout <= 0 {
		return errors.Errorf("--timeout must be positive, got %v", c.timeout)
	}
	w := &httpwait.Waiter{Interval: c.interval, Log: c.rootConfig.Log}
	if err := w.Wait(ctx, c.url, c.timeout); err != nil {
		return err
	}
	c.rootConfig.Log.V(0).Info("url is ready", "url", c.url)
	return nil
}
