package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Message(t *testing.T) {
	e := New(RouteNotFound, "dest-abc", nil)
	if e.Error() != "route.not_found: dest-abc" {
		t.Errorf("got %q", e.Error())
	}

	wrapped := New(RouteNotFound, "dest-abc", errors.New("no peers"))
	if wrapped.Error() != "route.not_found: dest-abc: no peers" {
		t.Errorf("got %q", wrapped.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	e := New(Internal, "x", cause)
	if !errors.Is(e, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestIs(t *testing.T) {
	e := New(LedgerInsufficientBalance, "node-1", nil)
	wrapped := fmt.Errorf("stake failed: %w", e)

	if !Is(wrapped, LedgerInsufficientBalance) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
	if Is(wrapped, LedgerInsufficientStake) {
		t.Error("Is should not match a different kind")
	}
	if Is(errors.New("plain"), Internal) {
		t.Error("Is should return false for a non-*Error")
	}
}
