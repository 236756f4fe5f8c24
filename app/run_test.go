package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"github.com/jacobweinstock/wpci/pkg/container"
	"github.com/jacobweinstock/wpci/pkg/errs"
	"github.com/jacobweinstock/wpci/pkg/runopts"
	"github.com/jacobweinstock/wpci/pkg/shell"
)

// envMock implements every collaborator of Run and records the calls in order.
type envMock struct {
	calls []string

	match      *container.NetworkMatch
	resolveErr error
	startErr   error
	waitErr    error
	removeErr  error
	exists     bool
	testOut    shell.Output
	testErr    error
	// runs matching setupScript are reported as the setup stage
	setupScript string
	setupErr    error

	opts         runopts.Options
	command      shell.Command
	setupCommand shell.Command
	outputs      map[string]string
	masks        []string
	messages     []string
	warnings     []string
}

func (e *envMock) EnsureRunning(ctx context.Context, opts runopts.Options) error {
	e.calls = append(e.calls, "start")
	e.opts = opts
	return e.startErr
}

func (e *envMock) Remove(ctx context.Context, name string) error {
	e.calls = append(e.calls, "remove "+name)
	return e.removeErr
}

func (e *envMock) Logs(ctx context.Context, name string) (string, error) {
	e.calls = append(e.calls, "logs "+name)
	return "apache crashed", nil
}

func (e *envMock) FindByDNSName(ctx context.Context, match string) (*container.NetworkMatch, error) {
	e.calls = append(e.calls, "resolve "+match)
	return e.match, e.resolveErr
}

func (e *envMock) Wait(ctx context.Context, url string, timeout time.Duration) error {
	e.calls = append(e.calls, "wait "+url)
	return e.waitErr
}

func (e *envMock) Install(path, content string) (bool, error) {
	e.calls = append(e.calls, "install "+path)
	return !e.exists, nil
}

func (e *envMock) Run(ctx context.Context, c shell.Command) (shell.Output, error) {
	if e.setupScript != "" && c.Script == e.setupScript {
		e.calls = append(e.calls, "setup")
		e.setupCommand = c
		return shell.Output{Stdout: "plugin activated"}, e.setupErr
	}
	e.calls = append(e.calls, "test")
	e.command = c
	return e.testOut, e.testErr
}

func (e *envMock) Group(title string) {}
func (e *envMock) EndGroup()          {}
func (e *envMock) AddMask(p string)   { e.masks = append(e.masks, p) }
func (e *envMock) SetOutput(k, v string) {
	if e.outputs == nil {
		e.outputs = map[string]string{}
	}
	e.outputs[k] = v
}

func (e *envMock) Infof(msg string, args ...interface{}) {
	e.messages = append(e.messages, fmt.Sprintf(msg, args...))
}

func (e *envMock) Warningf(msg string, args ...interface{}) {
	e.warnings = append(e.warnings, fmt.Sprintf(msg, args...))
}

func (e *envMock) Errorf(msg string, args ...interface{}) {
	e.messages = append(e.messages, fmt.Sprintf(msg, args...))
}

func (e *envMock) environment() Environment {
	return Environment{
		Runtime:   e,
		Resolver:  e,
		Waiter:    e,
		Installer: e,
		Shell:     e,
		Reporter:  e,
		Log:       logr.Discard(),
	}
}

func testConfig() Config {
	return Config{
		Image:              "wordpress-ci:latest",
		Network:            "some-network",
		DBHost:             "mysql",
		DBPassword:         "secret",
		TestCommand:        "vendor/bin/codecept run",
		TestCommandContext: "./example",
		Workspace:          "/work",
		ContainerName:      DefaultContainerName,
		Port:               DefaultPort,
		StartTimeout:       time.Second,
		ProxyPath:          "/usr/local/bin/wpci-cmd",
	}
}

func TestRun(t *testing.T) {
	mock := &envMock{testOut: shell.Output{Stdout: "OK (3 tests)", Stderr: "+ vendor/bin/codecept run"}}
	result, err := Run(context.Background(), testConfig(), mock.environment())
	if err != nil {
		t.Fatal(err)
	}
	wantCalls := []string{
		"start",
		"wait http://localhost:8080",
		"install /usr/local/bin/wpci-cmd",
		"test",
		"remove wordpress-ci",
	}
	if diff := cmp.Diff(wantCalls, mock.calls); diff != "" {
		t.Fatal(diff)
	}
	wantCommand := shell.Command{
		Script: "vendor/bin/codecept run",
		Dir:    "/work/example",
		Env:    []string{"WORDPRESS_CI_URL=http://localhost:8080"},
	}
	if diff := cmp.Diff(wantCommand, mock.command); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff("some-network", mock.opts.Network); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]string{"secret"}, mock.masks); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff("OK (3 tests)", mock.outputs["stdout"]); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff("+ vendor/bin/codecept run", mock.outputs["stderr"]); diff != "" {
		t.Fatal(diff)
	}
	if _, ok := mock.outputs["time"]; !ok {
		t.Fatal("expected the time output to be set")
	}
	if diff := cmp.Diff("some-network", result.Network); diff != "" {
		t.Fatal(diff)
	}
}

func TestRunDiscoversNetwork(t *testing.T) {
	mock := &envMock{match: &container.NetworkMatch{NetworkName: "github_network_abc", DNSNames: []string{"mysql", "f00"}}}
	cfg := testConfig()
	cfg.Network = ""
	result, err := Run(context.Background(), cfg, mock.environment())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("resolve mysql", mock.calls[0]); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff("github_network_abc", mock.opts.Network); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff("github_network_abc", result.Network); diff != "" {
		t.Fatal(diff)
	}
}

func TestRunFailsBeforeStart(t *testing.T) {
	tests := map[string]struct {
		cfg        func(Config) Config
		resolveErr error
		wantStage  string
		wantCalls  []string
	}{
		"no network and no db host": {
			cfg:       func(c Config) Config { c.Network, c.DBHost = "", ""; return c },
			wantStage: StageConfig,
		},
		"db container not found": {
			cfg:        func(c Config) Config { c.Network = ""; return c },
			resolveErr: &errs.NotFoundError{Match: "mysql"},
			wantStage:  StageNetwork,
			wantCalls:  []string{"resolve mysql"},
		},
		"invalid options": {
			cfg:       func(c Config) Config { c.Plugins = []string{"./a:b"}; return c },
			wantStage: StageConfig,
		},
		"missing plugin directory": {
			cfg:       func(c Config) Config { c.Plugins = []string{"/nonexistent/wpci/myplugin"}; return c },
			wantStage: StageConfig,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			mock := &envMock{resolveErr: tc.resolveErr}
			_, err := Run(context.Background(), tc.cfg(testConfig()), mock.environment())
			var stage *StageError
			if !errors.As(err, &stage) {
				t.Fatalf("expected *StageError, got: %v", err)
			}
			if diff := cmp.Diff(tc.wantStage, stage.Stage); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(tc.wantCalls, mock.calls); diff != "" {
				t.Fatal(diff)
			}
			if tc.resolveErr != nil {
				var notFound *errs.NotFoundError
				if !errors.As(err, &notFound) {
					t.Fatalf("expected the not found error to be kept: %v", err)
				}
			}
			if _, ok := mock.outputs["time"]; !ok {
				t.Fatal("expected the time output to be set")
			}
			if diff := cmp.Diff("error", mock.outputs["status"]); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestRunTeardown(t *testing.T) {
	removeErr := errors.New("no such container")
	tests := map[string]struct {
		mock      *envMock
		wantStage string
		wantCalls []string
	}{
		"start fails": {
			mock:      &envMock{startErr: errors.New("image not found")},
			wantStage: StageStart,
			wantCalls: []string{"start", "remove wordpress-ci"},
		},
		"wait times out": {
			mock:      &envMock{waitErr: &errs.TimeoutError{TimeoutValue: time.Second}},
			wantStage: StageStart,
			wantCalls: []string{"start", "wait http://localhost:8080", "logs wordpress-ci", "remove wordpress-ci"},
		},
		"test fails": {
			mock:      &envMock{testErr: &errs.ExecutionError{ExitCode: 1}},
			wantStage: StageTest,
			wantCalls: []string{"start", "wait http://localhost:8080", "install /usr/local/bin/wpci-cmd", "test", "remove wordpress-ci"},
		},
		"teardown fails after success": {
			mock:      &envMock{removeErr: removeErr},
			wantCalls: []string{"start", "wait http://localhost:8080", "install /usr/local/bin/wpci-cmd", "test", "remove wordpress-ci"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Run(context.Background(), testConfig(), tc.mock.environment())
			if diff := cmp.Diff(tc.wantCalls, tc.mock.calls); diff != "" {
				t.Fatal(diff)
			}
			if tc.wantStage == "" {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			var stage *StageError
			if !errors.As(err, &stage) {
				t.Fatalf("expected *StageError, got: %v", err)
			}
			if diff := cmp.Diff(tc.wantStage, stage.Stage); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestRunTestAndTeardownFail(t *testing.T) {
	mock := &envMock{testErr: errors.New("tests failed"), removeErr: errors.New("no such container")}
	_, err := Run(context.Background(), testConfig(), mock.environment())
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("expected *multierror.Error, got: %T %v", err, err)
	}
	if diff := cmp.Diff(2, len(merr.Errors)); diff != "" {
		t.Fatal(diff)
	}
	if !strings.Contains(err.Error(), "tests failed") || !strings.Contains(err.Error(), "no such container") {
		t.Fatalf("expected both errors to be reported: %v", err)
	}
}

func TestRunNoTestCommand(t *testing.T) {
	mock := &envMock{exists: true}
	cfg := testConfig()
	cfg.TestCommand = ""
	if _, err := Run(context.Background(), cfg, mock.environment()); err != nil {
		t.Fatal(err)
	}
	wantCalls := []string{"start", "wait http://localhost:8080", "install /usr/local/bin/wpci-cmd", "remove wordpress-ci"}
	if diff := cmp.Diff(wantCalls, mock.calls); diff != "" {
		t.Fatal(diff)
	}
	wantMessages := []string{
		"Waiting for WordPress CI to be available at http://localhost:8080...",
		"Script /usr/local/bin/wpci-cmd already exists, skipping installation.",
		"No test command provided, skipping test execution.",
	}
	if diff := cmp.Diff(wantMessages, mock.messages); diff != "" {
		t.Fatal(diff)
	}
}

func TestRunSetupScript(t *testing.T) {
	tests := map[string]struct {
		setupErr   error
		noTest     bool
		wantStage  string
		wantCalls  []string
		wantStatus string
	}{
		"setup then test": {
			wantCalls:  []string{"start", "wait http://localhost:8080", "install /usr/local/bin/wpci-cmd", "setup", "test", "remove wordpress-ci"},
			wantStatus: "success",
		},
		"setup without test command": {
			noTest:     true,
			wantCalls:  []string{"start", "wait http://localhost:8080", "install /usr/local/bin/wpci-cmd", "setup", "remove wordpress-ci"},
			wantStatus: "success",
		},
		"setup fails": {
			setupErr:   &errs.ExecutionError{ExitCode: 2},
			wantStage:  StageSetup,
			wantCalls:  []string{"start", "wait http://localhost:8080", "install /usr/local/bin/wpci-cmd", "setup", "remove wordpress-ci"},
			wantStatus: "failure",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			cfg.SetupScript = "wpci-cmd wp plugin activate myplugin"
			if tc.noTest {
				cfg.TestCommand = ""
			}
			mock := &envMock{setupScript: cfg.SetupScript, setupErr: tc.setupErr, testOut: shell.Output{Stdout: "OK"}}
			_, err := Run(context.Background(), cfg, mock.environment())
			if diff := cmp.Diff(tc.wantCalls, mock.calls); diff != "" {
				t.Fatal(diff)
			}
			wantSetup := shell.Command{
				Script: "wpci-cmd wp plugin activate myplugin",
				Dir:    "/work/example",
				Env:    []string{"WORDPRESS_CI_URL=http://localhost:8080"},
			}
			if diff := cmp.Diff(wantSetup, mock.setupCommand); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(tc.wantStatus, mock.outputs["status"]); diff != "" {
				t.Fatal(diff)
			}
			if strings.Contains(mock.outputs["stdout"], "plugin activated") {
				t.Fatal("setup output must not be reported as test output")
			}
			if tc.wantStage == "" {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			var stage *StageError
			if !errors.As(err, &stage) {
				t.Fatalf("expected *StageError, got: %v", err)
			}
			if diff := cmp.Diff(tc.wantStage, stage.Stage); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestRunStatusOutputs(t *testing.T) {
	tests := map[string]struct {
		mock        *envMock
		wantStatus  string
		wantResults string
	}{
		"success": {
			mock:        &envMock{testOut: shell.Output{Stdout: "OK (3 tests)\n", Stderr: "+ composer test\n"}},
			wantStatus:  "success",
			wantResults: "OK (3 tests)\n+ composer test\n",
		},
		"test fails": {
			mock:        &envMock{testOut: shell.Output{Stdout: "FAILURES!\n"}, testErr: &errs.ExecutionError{ExitCode: 1}},
			wantStatus:  "failure",
			wantResults: "FAILURES!\n",
		},
		"start fails": {
			mock:       &envMock{startErr: errors.New("image not found")},
			wantStatus: "failure",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, _ = Run(context.Background(), testConfig(), tc.mock.environment())
			if diff := cmp.Diff(tc.wantStatus, tc.mock.outputs["status"]); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(tc.wantResults, tc.mock.outputs["test-results"]); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}
