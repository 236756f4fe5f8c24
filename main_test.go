package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteFailure(t *testing.T) {
	tests := map[string]struct {
		err  error
		want map[string]string
	}{
		"plain": {
			err:  errors.New("boom"),
			want: map[string]string{"level": "error", "msg": "wpci failed", "err": "boom"},
		},
		"quotes and newlines": {
			err:  errors.New(`stderr: "docker inspect" failed` + "\nexit 1"),
			want: map[string]string{"level": "error", "msg": "wpci failed", "err": "stderr: \"docker inspect\" failed\nexit 1"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			writeFailure(&buf, tc.err)
			var got map[string]string
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("output is not one JSON object: %v: %q", err, buf.String())
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}
