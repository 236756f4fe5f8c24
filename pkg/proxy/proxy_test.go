package proxy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScript(t *testing.T) {
	tests := map[string]struct {
		container string
		command   string
		want      string
		wantErr   bool
	}{
		"no command": {
			container: "wordpress-ci",
			want:      "#!/bin/bash\n\ndocker exec -i 'wordpress-ci' \"$@\"\n\nexit $?\n",
		},
		"wp-cli": {
			container: "wordpress-ci",
			command:   "wp",
			want:      "#!/bin/bash\n\ndocker exec -i 'wordpress-ci' wp \"$@\"\n\nexit $?\n",
		},
		"name with quote and spaces": {
			container: "it's; rm -rf /",
			want:      "#!/bin/bash\n\ndocker exec -i 'it'\\''s; rm -rf /' \"$@\"\n\nexit $?\n",
		},
		"no container": {wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Script(tc.container, tc.command)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestInstall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wpci-cmd")

	installed, err := Installer{}.Install(path, "first")
	if err != nil {
		t.Fatal(err)
	}
	if !installed {
		t.Fatal("expected the script to be installed")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(os.FileMode(0o755), info.Mode().Perm()); diff != "" {
		t.Fatal(diff)
	}

	installed, err = Installer{}.Install(path, "second")
	if err != nil {
		t.Fatal(err)
	}
	if installed {
		t.Fatal("an existing script must not be replaced")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("first", string(b)); diff != "" {
		t.Fatal(diff)
	}
}

func TestInstallMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "wpci-cmd")
	if _, err := (Installer{}).Install(path, "x"); err == nil {
		t.Fatal("expected an error")
	}
}
