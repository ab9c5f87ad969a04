package gaserrors

import (
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrCannotConnect, "C1"},
		{ErrBuildFailed, "C2"},
		{ErrDeployFailed, "C3"},
		{ErrUnknownProbe, "H1"},
		{ErrRPCCallFailed, "P1"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Errorf("Code(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(ErrCannotConnect) {
		t.Error("CannotConnect must be fatal")
	}
	if !IsFatal(fmt.Errorf("wrapped: %w", ErrUnknownProbe)) {
		t.Error("wrapped UnknownProbe must be fatal")
	}
	if IsFatal(ErrRPCCallFailed) {
		t.Error("per-probe failures are recovered, not fatal")
	}
	if IsFatal(nil) {
		t.Error("nil is not fatal")
	}
}
