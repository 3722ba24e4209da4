// Package cmdutil holds the small amount of command-line scaffolding
// shared by cmd/filestack-naming and cmd/filestack-storage: an
// exit-code-carrying error type and a SIGINT/SIGTERM-aware run wrapper,
// both generalized from the teacher's cmd/root.go and cmd/errors.go.
package cmdutil

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

// ErrSigInt and ErrSigTerm are the sentinel errors RunSignalWrapper
// returns when the corresponding signal triggers shutdown.
var (
	ErrSigInt  = &ExitError{Err: errors.New("SIGINT signal received"), Code: 130}
	ErrSigTerm = &ExitError{Err: errors.New("SIGTERM signal received"), Code: 137}
)

// ExitError is an error with an exit code, matching the conventions at
// https://tldp.org/LDP/abs/html/exitcodes.html.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "<missing error>"
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exit calls os.Exit with err's code if it is an *ExitError, or 1
// otherwise. It never returns.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	code := 1
	var ee *ExitError
	if errors.As(err, &ee) {
		code = ee.Code
	}
	os.Exit(code)
}

// RunSignalWrapper runs start in the background and watches for SIGINT
// and SIGTERM. It returns whichever happens first: start's own error (or
// nil success, once serve returns), or a signal-derived *ExitError. On
// signal, it cancels the context passed to start so the node can shut
// down its servers before RunSignalWrapper returns.
func RunSignalWrapper(parent context.Context, start func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	done := make(chan error, 1)
	go func() { done <- start(ctx) }()

	select {
	case s := <-signals:
		cancel()
		<-done
		switch s {
		case syscall.SIGINT:
			return ErrSigInt
		default:
			return ErrSigTerm
		}
	case err := <-done:
		return err
	}
}
