package gaserrors

import (
	"errors"
	"strings"
)

// Fatal preconditions (C) - these abort the run before or during setup.
var (
	ErrCannotConnect = errors.New("C1|CannotConnect: RPC endpoint unreachable at connectivity check.")
	ErrBuildFailed   = errors.New("C2|BuildFailed: Fixture contract compilation failed.")
	ErrDeployFailed  = errors.New("C3|DeployFailed: Fixture contract deployment failed.")
)

// Harness defects (H) - indicate a bug in the harness itself, not the node.
var (
	ErrUnknownProbe = errors.New("H1|UnknownProbe: Probe name not registered in the expectation table.")
)

// Per-probe failures (P) - recovered locally, downgraded to a Skipped
// measurement.
var (
	ErrRPCCallFailed = errors.New("P1|RpcCallFailed: RPC call for a single probe failed; probe is skipped.")
)

// Code returns the short code before the '|' separator, or the full
// message when the error is not one of the registered sentinels.
func Code(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if idx := strings.Index(msg, "|"); idx > 0 && idx <= 3 {
		return msg[:idx]
	}
	return msg
}

// IsFatal reports whether err wraps a precondition or harness-defect
// sentinel that must abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCannotConnect) ||
		errors.Is(err, ErrBuildFailed) ||
		errors.Is(err, ErrDeployFailed) ||
		errors.Is(err, ErrUnknownProbe)
}
