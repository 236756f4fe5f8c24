package root

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/go-playground/validator/v10"
	"github.com/jacobweinstock/ffyaml"
	"github.com/jacobweinstock/wpci/app"
	"github.com/jacobweinstock/wpci/pkg/container"
	"github.com/jacobweinstock/wpci/pkg/container/cli"
	"github.com/jacobweinstock/wpci/pkg/container/docker"
	"github.com/jacobweinstock/wpci/pkg/shell"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppName is the binary name and, upper cased, the env var prefix.
const AppName = "wpci"

// Runtime backends.
const (
	RuntimeCLI = "cli"
	RuntimeAPI = "api"
)

// Config holds the flags shared by all subcommands.
type Config struct {
	LogLevel string `validate:"oneof=debug info"`
	// Config is the location to a config file
	Config string
	// Runtime selects how containers are driven, "cli" runs the docker
	// binary and "api" talks to the Docker Engine API.
	Runtime string `validate:"oneof=cli api"`
	// Docker is the docker binary used by the cli runtime
	Docker string
	// Registry is a slice of container registries with credentials to use
	// when the api runtime pulls the WordPress CI image
	Registry registries `yaml:"registries"`
	// RegistryAuth holds a map of repo names to base64 encoded auth string
	RegistryAuth map[string]string
	Log          logr.Logger
}

// needed for (*flag.FlagSet).Var.
type registries []Registry

// Registry details for a container registry.
type Registry struct {
	// Name is the name of the registry, such as "ghcr.io"
	Name string
	User string
	Pass string
}

// Backend is a container runtime usable by every subcommand.
type Backend interface {
	container.Inspector
	app.Runtime
}

// Options are the ff options of every command in the tree.
func Options() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix(strings.ToUpper(AppName)),
	}
}

func New() (*ffcli.Command, *Config) {
	var cfg Config

	fs := flag.NewFlagSet(AppName, flag.ExitOnError)
	cfg.RegisterFlags(fs)

	return &ffcli.Command{
		ShortUsage: "wpci [flags] <subcommand>",
		FlagSet:    fs,
		Options: append(Options(),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithAllowMissingConfigFile(true),
			ff.WithIgnoreUndefined(true),
		),
		Exec: cfg.Exec,
	}, &cfg
}

func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.LogLevel, "loglevel", "info", "log level, debug or info (optional)")
	fs.StringVar(&c.Config, "config", "wpci.yaml", "config file (optional)")
	fs.StringVar(&c.Runtime, "runtime", RuntimeCLI, "container runtime backend, cli or api (optional)")
	fs.StringVar(&c.Docker, "docker", cli.DefaultBinary, "docker binary used by the cli runtime (optional)")
	fs.Var(&c.Registry, "registry", `container image registry, {"name":"ghcr.io","user":"u","pass":"p"} (optional)`)
}

// Exec function for this command.
func (c *Config) Exec(context.Context, []string) error {
	// The root command has no meaning, so if it gets executed,
	// display the usage text to the user instead.
	return flag.ErrHelp
}

// Setup validates the parsed flags and creates the logger. It must run
// after flag parsing and before any subcommand executes.
func (c *Config) Setup() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	c.Log = defaultLogger(c.LogLevel)
	c.RegistryAuth = make(map[string]string)
	for _, elem := range c.Registry {
		c.RegistryAuth[elem.Name] = encodeRegistryAuth(types.AuthConfig{
			Username: elem.User,
			Password: elem.Pass,
		})
	}
	return nil
}

// Backend creates the configured container runtime.
func (c *Config) Backend() (Backend, error) {
	switch c.Runtime {
	case RuntimeAPI:
		dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, errors.Wrap(err, "unable to create docker client")
		}
		return &docker.Client{Conn: dockerClient, RegistryAuth: c.RegistryAuth, Log: c.Log}, nil
	case RuntimeCLI, "":
		return &cli.Client{Exec: shell.Executor{}, Binary: c.Docker, Log: c.Log}, nil
	default:
		return nil, fmt.Errorf("unknown runtime: %v", c.Runtime)
	}
}

// String lists the registries with their passwords masked.
func (i *registries) String() string {
	var re []string
	v := `{"name":"%v","user":"%v","pass":"%v"}`
	for _, elem := range *i {
		pass := ""
		if elem.Pass != "" {
			pass = "***"
		}
		re = append(re, fmt.Sprintf(v, elem.Name, elem.User, pass))
	}
	return fmt.Sprintf("[%v]", strings.Join(re, ","))
}

func (i *registries) Set(value string) error {
	var r Registry
	err := json.Unmarshal([]byte(value), &r)
	if err != nil {
		return err
	}
	*i = append(*i, r)
	return nil
}

func encodeRegistryAuth(v types.AuthConfig) string {
	encodedAuth, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(encodedAuth)
}

// defaultLogger writes JSON logs to stderr, keeping stdout for command output.
func defaultLogger(level string) logr.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = ""
	var zLevel zapcore.Level
	switch level {
	case "debug":
		zLevel = zapcore.DebugLevel
	default:
		zLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zLevel)
	zapLogger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("who watches the watchmen (%v)?", err))
	}

	return zapr.NewLogger(zapLogger)
}
