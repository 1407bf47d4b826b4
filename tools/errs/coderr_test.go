package errs

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestWithDetailKeepsSentinelClean(t *testing.T) {
	err := ErrValidation.WithDetail("name is required")
	if ErrValidation.Detail != "" {
		t.Fatalf("sentinel mutated: %q", ErrValidation.Detail)
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("detailed copy does not match its sentinel")
	}
	if errors.Is(err, ErrConflict) {
		t.Errorf("validation error matched conflict")
	}
}

func TestCodeMapping(t *testing.T) {
	if got := Code(ErrNotFound.WithDetail("group x")); got != 404 {
		t.Errorf("Code = %d, want 404", got)
	}
	if got := Code(errors.New("plain")); got != 500 {
		t.Errorf("Code(plain) = %d, want 500", got)
	}
	wrapped := pkgerrors.Wrap(ErrUpstream.WithDetail("mongo"), "send")
	if got := Code(wrapped); got != 502 {
		t.Errorf("Code(wrapped) = %d, want 502", got)
	}
	if !errors.Is(wrapped, ErrUpstream) {
		t.Errorf("wrapped error lost its code identity")
	}
}
