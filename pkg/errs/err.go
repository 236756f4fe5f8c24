package errs

import (
	"fmt"
	"strings"
	"time"
)

// TimeoutError time out errors.
type TimeoutError struct {
	TimeoutValue time.Duration
	// LastErr is the last error seen before the timeout was reached, if any.
	LastErr error
}

func (t *TimeoutError) Error() string {
	if t.LastErr != nil {
		return fmt.Sprintf("timeout reached: %v; last error: %v", t.TimeoutValue, t.LastErr)
	}
	return fmt.Sprintf("timeout reached: %v", t.TimeoutValue)
}

func (t *TimeoutError) Unwrap() error { return t.LastErr }

// ExecutionError is returned when an external command exits unsuccessfully.
type ExecutionError struct {
	Command  []string
	ExitCode int
	Stderr   string
	Msg      string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("msg: %v; command: %v; exit code: %v; stderr: %v", e.Msg, strings.Join(e.Command, " "), e.ExitCode, strings.TrimSpace(e.Stderr))
}

// TransportError means the container runtime could not be queried.
type TransportError struct {
	Op  string
	Err error
}

func (t *TransportError) Error() string {
	return fmt.Sprintf("%v: %v", t.Op, t.Err)
}

func (t *TransportError) Unwrap() error { return t.Err }

// ParseError means the container runtime answered with data that could not be decoded.
type ParseError struct {
	Data string
	Err  error
}

func (p *ParseError) Error() string {
	return fmt.Sprintf("unable to parse container inspect data: %v", p.Err)
}

func (p *ParseError) Unwrap() error { return p.Err }

// NotFoundError no container has a DNS name containing Match.
type NotFoundError struct {
	Match string
}

func (n *NotFoundError) Error() string {
	return fmt.Sprintf("no container found with DNS name matching: %v", n.Match)
}
