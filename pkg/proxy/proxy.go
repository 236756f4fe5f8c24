// Package proxy installs scripts that forward commands into a running container.
package proxy

import (
	"bytes"
	"os"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// DefaultPath is where the proxy script is installed.
const DefaultPath = "/usr/local/bin/wpci-cmd"

var scriptTmpl = template.Must(template.New("proxy").Funcs(template.FuncMap{"quote": quote}).Parse(`#!/bin/bash

docker exec -i {{quote .Container}}{{if .Command}} {{.Command}}{{end}} "$@"

exit $?
`))

// quote makes s a single bash word.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Script returns a bash script running its arguments inside container,
// prefixed with command when it is not empty. command is inserted as shell
// words, the container name always as one quoted word.
func Script(container, command string) (string, error) {
	if container == "" {
		return "", errors.New("container name must not be empty")
	}
	var buf bytes.Buffer
	err := scriptTmpl.Execute(&buf, struct{ Container, Command string }{container, command})
	return buf.String(), err
}

// Installer writes scripts to disk.
type Installer struct{}

// Install writes content to path with mode 0755. An existing file is left
// untouched and installed is false.
func (Installer) Install(path, content string) (installed bool, err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o755)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "unable to install script %v", path)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return false, errors.Wrapf(err, "unable to write script %v", path)
	}
	if err := f.Close(); err != nil {
		return false, errors.Wrapf(err, "unable to write script %v", path)
	}
	// OpenFile applies the umask
	return true, os.Chmod(path, 0o755)
}
