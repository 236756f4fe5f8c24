package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobweinstock/wpci/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		writeFailure(os.Stderr, err)
		os.Exit(1)
	}
}

// writeFailure prints err as a single JSON log line, matching the logger's format
// for errors raised before the logger exists.
func writeFailure(w io.Writer, err error) {
	line, merr := json.Marshal(struct {
		Level string `json:"level"`
		Msg   string `json:"msg"`
		Err   string `json:"err"`
	}{"error", "wpci failed", err.Error()})
	if merr != nil {
		fmt.Fprintf(w, "wpci failed: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(line))
}
