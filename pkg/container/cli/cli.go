// Package cli drives containers through the docker command line client.
package cli

import (
	"context"
	"strings"

	"github.com/go-logr/logr"
	"github.com/jacobweinstock/wpci/pkg/container"
	"github.com/jacobweinstock/wpci/pkg/errs"
	"github.com/jacobweinstock/wpci/pkg/runopts"
	"github.com/jacobweinstock/wpci/pkg/shell"
	"github.com/pkg/errors"
)

// DefaultBinary is the docker client looked up in PATH.
const DefaultBinary = "docker"

type executor interface {
	Exec(ctx context.Context, name string, args ...string) (shell.Output, error)
}

// Client runs docker commands.
type Client struct {
	Exec   executor
	Binary string
	Log    logr.Logger
}

func (c *Client) docker(ctx context.Context, args ...string) (shell.Output, error) {
	bin := c.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	c.Log.V(1).Info("running docker command", "command", append([]string{bin}, args...))
	return c.Exec.Exec(ctx, bin, args...)
}

// ListRunning runs `docker ps -q`.
func (c *Client) ListRunning(ctx context.Context) ([]string, error) {
	out, err := c.docker(ctx, "ps", "-q")
	if err != nil {
		return nil, err
	}
	return container.ParseIDs(out.Stdout), nil
}

// Inspect runs `docker inspect` over all ids in one call, also when there are none.
// docker refuses an inspect without arguments, that exit is read as an empty array.
func (c *Client) Inspect(ctx context.Context, ids ...string) ([]byte, error) {
	out, err := c.docker(ctx, append([]string{"inspect"}, ids...)...)
	if err != nil {
		var execErr *errs.ExecutionError
		if len(ids) == 0 && errors.As(err, &execErr) {
			c.Log.V(1).Info("no containers to inspect", "exitCode", execErr.ExitCode)
			return []byte("[]"), nil
		}
		return nil, err
	}
	return []byte(out.Stdout), nil
}

// EnsureRunning starts the container described by opts unless one with the
// same name is already running.
func (c *Client) EnsureRunning(ctx context.Context, opts runopts.Options) error {
	out, err := c.docker(ctx, "ps", "--quiet", "--filter", "name="+opts.NameFilter())
	if err != nil {
		return errors.Wrap(err, "unable to list containers")
	}
	if strings.TrimSpace(out.Stdout) != "" {
		c.Log.V(0).Info("container already running", "name", opts.Name)
		return nil
	}
	c.Log.V(0).Info("starting container", "name", opts.Name, "image", opts.Image, "network", opts.Network)
	if _, err := c.docker(ctx, append([]string{"run"}, opts.Args()...)...); err != nil {
		return errors.Wrapf(err, "unable to start container %v", opts.Name)
	}
	return nil
}

// Remove stops and removes the named container.
func (c *Client) Remove(ctx context.Context, name string) error {
	if _, err := c.docker(ctx, "container", "stop", name); err != nil {
		return errors.Wrapf(err, "unable to stop container %v", name)
	}
	if _, err := c.docker(ctx, "container", "rm", name); err != nil {
		return errors.Wrapf(err, "unable to remove container %v", name)
	}
	return nil
}

// Logs returns the combined stdout and stderr logs of the named container.
func (c *Client) Logs(ctx context.Context, name string) (string, error) {
	out, err := c.docker(ctx, "logs", name)
	if err != nil {
		return "", errors.Wrapf(err, "unable to get logs for container %v", name)
	}
	return out.Stdout + out.Stderr, nil
}
