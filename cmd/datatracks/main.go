// Command datatracks runs the streaming engine: loading a plan directory,
// replaying the write-ahead log, and validating plan definitions before
// deployment.
package main

import (
	"fmt"
	"os"
)

// Version is the build version, overridable via -ldflags.
var Version = "0.1.0"

// Exit codes per the engine's process contract.
const (
	exitOK              = 0
	exitBadConfigOrPlan = 2
	exitWalCorrupt      = 3
	exitFatalEngineInit = 4
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command error to the process's documented exit
// code. Subcommands wrap errors in exitCodeError to select a non-default
// code; anything else is treated as a bad-config/plan error.
func exitCodeFor(err error) int {
	var ec exitCodeError
	if asExitCodeError(err, &ec) {
		return ec.code
	}
	return exitBadConfigOrPlan
}

// exitCodeError pairs an error with the exit code it should produce.
type exitCodeError struct {
	code int
	err  error
}

func (e exitCodeError) Error() string { return e.err.Error() }
func (e exitCodeError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return exitCodeError{code: code, err: err}
}

func asExitCodeError(err error, target *exitCodeError) bool {
	for err != nil {
		if ec, ok := err.(exitCodeError); ok {
			*target = ec
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
