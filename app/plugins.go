package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// checkPlugins fails for plugin paths that do not exist and warns about
// plugin directories without a composer.json or a PHP file. Single file
// plugins are mounted as they are.
func checkPlugins(cfg Config, reporter Reporter) error {
	for _, p := range cfg.Plugins {
		dir := cfg.hostPath(p)
		info, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return errors.Errorf("plugin directory does not exist: %v", dir)
			}
			return errors.Wrapf(err, "unable to check plugin %v", dir)
		}
		if !info.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, "composer.json")); err != nil {
			reporter.Warningf("No composer.json found in plugin directory %v", dir)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errors.Wrapf(err, "unable to read plugin directory %v", dir)
		}
		if !hasPHPFile(entries) {
			reporter.Warningf("No PHP files found in plugin directory %v", dir)
		}
		reporter.Infof("Plugin directory validated: %v", dir)
	}
	return nil
}

func hasPHPFile(entries []os.DirEntry) bool {
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".php") {
			return true
		}
	}
	return false
}
