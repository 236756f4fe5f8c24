package app

import (
	"context"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/jacobweinstock/wpci/pkg/container"
	"github.com/jacobweinstock/wpci/pkg/proxy"
	"github.com/jacobweinstock/wpci/pkg/runopts"
	"github.com/jacobweinstock/wpci/pkg/shell"
	"github.com/pkg/errors"
)

const teardownTimeout = time.Minute

// Runtime is the container runtime the WordPress CI container runs on.
type Runtime interface {
	// EnsureRunning starts the container unless one with the same name is running.
	EnsureRunning(ctx context.Context, opts runopts.Options) error
	// Remove stops and removes a container.
	Remove(ctx context.Context, name string) error
	// Logs returns the output of a container.
	Logs(ctx context.Context, name string) (string, error)
}

// NetworkResolver finds the network of a container by one of its DNS names.
type NetworkResolver interface {
	FindByDNSName(ctx context.Context, match string) (*container.NetworkMatch, error)
}

// ReadyWaiter waits for an HTTP endpoint to answer.
type ReadyWaiter interface {
	Wait(ctx context.Context, url string, timeout time.Duration) error
}

// ScriptInstaller installs an executable script unless the path exists.
type ScriptInstaller interface {
	Install(path, content string) (installed bool, err error)
}

// CommandRunner runs the test command.
type CommandRunner interface {
	Run(ctx context.Context, c shell.Command) (shell.Output, error)
}

// Reporter speaks the GitHub Actions workflow command protocol.
type Reporter interface {
	Group(title string)
	EndGroup()
	SetOutput(k, v string)
	AddMask(p string)
	Infof(msg string, args ...interface{})
	Warningf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

// Environment holds the collaborators of Run.
type Environment struct {
	Runtime   Runtime
	Resolver  NetworkResolver
	Waiter    ReadyWaiter
	Installer ScriptInstaller
	Shell     CommandRunner
	Reporter  Reporter
	Log       logr.Logger
}

// Result of a run.
type Result struct {
	Network string
	Stdout  string
	Stderr  string
	Elapsed time.Duration
}

// Run starts the WordPress CI container, runs the setup script and the test
// command against it and removes the container again. Stages run in order and
// the first failure ends the run; once starting the container was attempted it
// is always removed. The outputs are set whatever the outcome.
func Run(ctx context.Context, cfg Config, env Environment) (result Result, err error) {
	start := time.Now()
	log := env.Log.WithValues("container", cfg.ContainerName)
	defer func() {
		result.Elapsed = time.Since(start)
		env.Reporter.SetOutput("stdout", result.Stdout)
		env.Reporter.SetOutput("stderr", result.Stderr)
		env.Reporter.SetOutput("time", strconv.FormatInt(result.Elapsed.Milliseconds(), 10))
		env.Reporter.SetOutput("test-results", result.Stdout+result.Stderr)
		env.Reporter.SetOutput("status", status(err))
	}()

	if cfg.DBPassword != "" {
		env.Reporter.AddMask(cfg.DBPassword)
	}

	result.Network, err = resolveNetwork(ctx, log, cfg, env.Resolver)
	if err != nil {
		return result, err
	}
	opts, err := ContainerOptions(cfg, result.Network)
	if err != nil {
		return result, stageErr(StageConfig, err)
	}
	log.V(1).Info("container options", "args", opts.Args())
	if err := checkPlugins(cfg, env.Reporter); err != nil {
		return result, stageErr(StageConfig, err)
	}

	defer func() {
		// the run context may already be canceled
		tctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		env.Reporter.Group("Stop the WordPress CI container")
		defer env.Reporter.EndGroup()
		rmErr := env.Runtime.Remove(tctx, cfg.ContainerName)
		if rmErr == nil {
			log.V(0).Info("container removed")
			return
		}
		if err != nil {
			err = multierror.Append(err, stageErr(StageTeardown, rmErr))
			return
		}
		log.V(0).Error(rmErr, "unable to remove container, continuing")
	}()

	if err := startContainer(ctx, log, cfg, opts, env); err != nil {
		return result, stageErr(StageStart, err)
	}

	if err := installProxy(log, cfg, env); err != nil {
		return result, stageErr(StageProxy, err)
	}

	cmdEnv := []string{"WORDPRESS_CI_URL=" + cfg.URL()}
	if cfg.SetupScript != "" {
		env.Reporter.Group("Setup Script")
		_, err := env.Shell.Run(ctx, shell.Command{Script: cfg.SetupScript, Dir: cfg.TestDir(), Env: cmdEnv})
		env.Reporter.EndGroup()
		if err != nil {
			return result, stageErr(StageSetup, err)
		}
		log.V(0).Info("setup script succeeded")
	}

	if cfg.TestCommand == "" {
		env.Reporter.Infof("No test command provided, skipping test execution.")
		return result, nil
	}
	env.Reporter.Group("Test Command")
	env.Reporter.Infof("%s", cfg.TestCommand)
	env.Reporter.EndGroup()

	env.Reporter.Group("Test Command Result")
	out, err := env.Shell.Run(ctx, shell.Command{
		Script: cfg.TestCommand,
		Dir:    cfg.TestDir(),
		Env:    cmdEnv,
	})
	env.Reporter.EndGroup()
	result.Stdout, result.Stderr = out.Stdout, out.Stderr
	if err != nil {
		return result, stageErr(StageTest, err)
	}
	log.V(0).Info("test command succeeded")
	return result, nil
}

// status is the value of the status output: success, failure of a stage
// after the container was started, or error for a run that never got there.
func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case failedBeforeStart(err):
		return "error"
	default:
		return "failure"
	}
}

// resolveNetwork returns cfg.Network, or the network of the container reachable as cfg.DBHost.
func resolveNetwork(ctx context.Context, log logr.Logger, cfg Config, resolver NetworkResolver) (string, error) {
	if cfg.Network != "" {
		return cfg.Network, nil
	}
	if cfg.DBHost == "" {
		return "", stageErr(StageConfig, errors.New("the network input must be provided when db-host is empty"))
	}
	match, err := resolver.FindByDNSName(ctx, cfg.DBHost)
	if err != nil {
		return "", stageErr(StageNetwork, errors.Wrapf(err, "unable to find the network of %v", cfg.DBHost))
	}
	log.V(0).Info("network discovered", "network", match.NetworkName, "dbHost", cfg.DBHost, "dbContainer", match.ContainerInfo.ID, "dnsNames", match.DNSNames)
	return match.NetworkName, nil
}

func startContainer(ctx context.Context, log logr.Logger, cfg Config, opts runopts.Options, env Environment) error {
	env.Reporter.Group("Start WordPress CI container")
	defer env.Reporter.EndGroup()
	env.Reporter.Infof("Waiting for WordPress CI to be available at %v...", cfg.URL())

	if err := env.Runtime.EnsureRunning(ctx, opts); err != nil {
		return err
	}
	if err := env.Waiter.Wait(ctx, cfg.URL(), cfg.StartTimeout); err != nil {
		showLogs(ctx, log, cfg, env)
		return err
	}
	return nil
}

func showLogs(ctx context.Context, log logr.Logger, cfg Config, env Environment) {
	logs, err := env.Runtime.Logs(ctx, cfg.ContainerName)
	if err != nil {
		log.V(0).Error(err, "unable to get container logs")
		return
	}
	env.Reporter.Errorf("WordPress CI container did not become available, container logs follow")
	env.Reporter.Infof("%s", logs)
}

func installProxy(log logr.Logger, cfg Config, env Environment) error {
	env.Reporter.Group("Setup proxy script to run command in WordPress CI container")
	defer env.Reporter.EndGroup()
	script, err := proxy.Script(cfg.ContainerName, "")
	if err != nil {
		return err
	}
	installed, err := env.Installer.Install(cfg.ProxyPath, script)
	if err != nil {
		return err
	}
	if !installed {
		env.Reporter.Infof("Script %v already exists, skipping installation.", cfg.ProxyPath)
		return nil
	}
	log.V(0).Info("proxy script installed", "path", cfg.ProxyPath)
	return nil
}
