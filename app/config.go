package app

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jacobweinstock/wpci/pkg/runopts"
)

// Paths inside the WordPress CI image.
const (
	PluginsDir    = "/var/www/html/wp-content/plugins"
	ThemesDir     = "/var/www/html/wp-content/themes"
	ImportSQLPath = "/opt/imports/import.sql"
)

// Defaults for the optional Config fields.
const (
	DefaultContainerName = "wordpress-ci"
	DefaultPort          = 8080
	DefaultStartTimeout  = 30 * time.Second
	containerHTTPPort    = 80
)

// Config is everything a run needs, normally set from the action inputs.
type Config struct {
	// Image is the WordPress CI container image reference.
	Image string `validate:"required"`
	// Network to attach the container to. When empty, the network of the
	// container reachable as DBHost is used.
	Network string
	// Plugins and Themes are host paths mounted into wp-content.
	Plugins []string
	Themes  []string

	DBHost     string
	DBName     string
	DBUser     string
	DBPassword string

	// CleanOnStart asks the image to reset WordPress before starting.
	CleanOnStart bool
	// ImportSQL is a host path to a SQL dump imported at start.
	ImportSQL string

	// SetupScript runs before TestCommand, in the same directory and environment.
	SetupScript string
	TestCommand string
	// TestCommandContext is the test command's working directory.
	TestCommandContext string
	// Workspace is the base for relative host paths.
	Workspace string `validate:"required"`

	ContainerName string        `validate:"required"`
	Port          int           `validate:"min=1,max=65535"`
	StartTimeout  time.Duration `validate:"gt=0"`
	ProxyPath     string        `validate:"required"`
}

// URL is where the container's web server is published.
func (c Config) URL() string {
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

// hostPath resolves p against the workspace.
func (c Config) hostPath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Workspace, p)
}

// TestDir is the absolute working directory of the test command.
func (c Config) TestDir() string {
	dir := c.TestCommandContext
	if dir == "" {
		dir = "."
	}
	return c.hostPath(dir)
}

// SplitList parses a newline-delimited input, trimming entries and dropping empty ones.
func SplitList(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if v := strings.TrimSpace(line); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ImageRef joins registry, name and tag into an image reference. The tag
// defaults to latest and an empty registry means the runtime's default one.
func ImageRef(registry, name, tag string) string {
	if name == "" {
		return ""
	}
	if tag == "" {
		tag = "latest"
	}
	ref := name + ":" + tag
	if registry = strings.TrimSuffix(registry, "/"); registry != "" {
		ref = registry + "/" + ref
	}
	return ref
}

// ContainerOptions builds the run options of the WordPress CI container on network.
func ContainerOptions(cfg Config, network string) (runopts.Options, error) {
	b := runopts.New(cfg.ContainerName, cfg.Image).
		Network(network).
		Publish(cfg.Port, containerHTTPPort).
		Env("WORDPRESS_DB_HOST", cfg.DBHost).
		Env("WORDPRESS_DB_NAME", cfg.DBName).
		Env("WORDPRESS_DB_USER", cfg.DBUser).
		Env("WORDPRESS_DB_PASSWORD", cfg.DBPassword)
	if cfg.CleanOnStart {
		b.Env("CLEAN_ON_START", "yes")
	}
	for _, p := range cfg.Plugins {
		src := cfg.hostPath(p)
		b.Volume(src, path.Join(PluginsDir, filepath.Base(src)))
	}
	for _, t := range cfg.Themes {
		src := cfg.hostPath(t)
		b.Volume(src, path.Join(ThemesDir, filepath.Base(src)))
	}
	if cfg.ImportSQL != "" {
		b.Env("IMPORT_SQL_FILE", ImportSQLPath)
		b.Volume(cfg.hostPath(cfg.ImportSQL), ImportSQLPath)
	}
	return b.Build()
}
