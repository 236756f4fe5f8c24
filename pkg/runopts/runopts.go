// Package runopts builds validated options for starting a container.
// The same Options render either to a `docker run` argument list or to
// Docker Engine API create configs.
package runopts

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/hashicorp/go-multierror"
)

// EnvVar is a single container environment variable.
type EnvVar struct {
	Key   string
	Value string
}

// Mount is a bind mount from the host into the container.
type Mount struct {
	Source      string
	Destination string
}

// Port publishes a container port on the host.
type Port struct {
	Host      int
	Container int
}

// Options describe a detached, named container.
type Options struct {
	Name    string
	Image   string
	Network string
	Publish []Port
	Env     []EnvVar
	Volumes []Mount
}

// Builder accumulates Options and validation errors.
type Builder struct {
	opts Options
	errs *multierror.Error
}

// New starts a builder for a container called name running image.
func New(name, image string) *Builder {
	b := &Builder{opts: Options{Name: name, Image: image}}
	if name == "" {
		b.fail("container name must not be empty")
	}
	if image == "" {
		b.fail("image must not be empty")
	}
	return b
}

func (b *Builder) fail(format string, a ...interface{}) {
	b.errs = multierror.Append(b.errs, fmt.Errorf(format, a...))
}

// Network attaches the container to network.
func (b *Builder) Network(network string) *Builder {
	b.opts.Network = network
	return b
}

// Env adds an environment variable.
func (b *Builder) Env(key, value string) *Builder {
	switch {
	case key == "":
		b.fail("env key must not be empty")
	case strings.ContainsAny(key, "=\x00"):
		b.fail("env key %q must not contain '=' or NUL", key)
	case strings.ContainsRune(value, 0):
		b.fail("env value for %q must not contain NUL", key)
	default:
		b.opts.Env = append(b.opts.Env, EnvVar{Key: key, Value: value})
	}
	return b
}

// Volume adds a bind mount of src on the host to dst in the container.
func (b *Builder) Volume(src, dst string) *Builder {
	switch {
	case src == "" || dst == "":
		b.fail("volume source and destination must not be empty (%q:%q)", src, dst)
	case strings.Contains(src, ":"):
		b.fail("volume source %q must not contain ':'", src)
	case !path.IsAbs(dst):
		b.fail("volume destination %q must be an absolute path", dst)
	default:
		b.opts.Volumes = append(b.opts.Volumes, Mount{Source: src, Destination: dst})
	}
	return b
}

// Publish maps containerPort to hostPort on the host.
func (b *Builder) Publish(hostPort, containerPort int) *Builder {
	if !validPort(hostPort) || !validPort(containerPort) {
		b.fail("invalid port mapping %v:%v", hostPort, containerPort)
		return b
	}
	b.opts.Publish = append(b.opts.Publish, Port{Host: hostPort, Container: containerPort})
	return b
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// Build returns the Options, or every validation error seen so far.
func (b *Builder) Build() (Options, error) {
	if err := b.errs.ErrorOrNil(); err != nil {
		return Options{}, err
	}
	return b.opts, nil
}

// Args renders the options as `docker run` arguments, excluding "docker run" itself.
// No shell is involved, so values are not quoted.
func (o Options) Args() []string {
	args := []string{"--detach", "--name=" + o.Name}
	for _, p := range o.Publish {
		args = append(args, fmt.Sprintf("--publish=%d:%d", p.Host, p.Container))
	}
	if o.Network != "" {
		args = append(args, "--network="+o.Network)
	}
	for _, e := range o.Env {
		args = append(args, "--env="+e.String())
	}
	for _, v := range o.Volumes {
		args = append(args, "--volume="+v.String())
	}
	return append(args, o.Image)
}

// NameFilter is a `name` filter matching only the container called o.Name.
// docker matches name filters as unanchored regular expressions against
// names that carry a leading slash.
func (o Options) NameFilter() string {
	return "^/?" + regexp.QuoteMeta(o.Name) + "$"
}

func (e EnvVar) String() string {
	return e.Key + "=" + e.Value
}

func (m Mount) String() string {
	return m.Source + ":" + m.Destination
}

// ContainerConfig renders the Docker Engine API container config.
func (o Options) ContainerConfig() *container.Config {
	cfg := &container.Config{Image: o.Image}
	for _, e := range o.Env {
		cfg.Env = append(cfg.Env, e.String())
	}
	if len(o.Publish) > 0 {
		cfg.ExposedPorts = nat.PortSet{}
		for _, p := range o.Publish {
			cfg.ExposedPorts[containerPort(p)] = struct{}{}
		}
	}
	return cfg
}

// HostConfig renders the Docker Engine API host config.
func (o Options) HostConfig() *container.HostConfig {
	hc := &container.HostConfig{}
	if o.Network != "" {
		hc.NetworkMode = container.NetworkMode(o.Network)
	}
	for _, v := range o.Volumes {
		hc.Binds = append(hc.Binds, v.String())
	}
	if len(o.Publish) > 0 {
		hc.PortBindings = nat.PortMap{}
		for _, p := range o.Publish {
			port := containerPort(p)
			hc.PortBindings[port] = append(hc.PortBindings[port], nat.PortBinding{HostPort: strconv.Itoa(p.Host)})
		}
	}
	return hc
}

func containerPort(p Port) nat.Port {
	port, _ := nat.NewPort("tcp", strconv.Itoa(p.Container))
	return port
}
