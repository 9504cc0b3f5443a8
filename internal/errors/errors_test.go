// internal/errors/errors_test.go
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cause := fmt.Errorf("boom")
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"nav_error", New(KindOutOfRange, 9, cause), KindOutOfRange},
		{"wrapped_nav_error", fmt.Errorf("outer: %w", New(KindExhausted, 2, nil)), KindExhausted},
		{"capability_sentinel", fmt.Errorf("getCurrentPage: %w", ErrCapabilityMissing), KindCapabilityMissing},
		{"deadline", context.DeadlineExceeded, KindVerificationTimeout},
		{"plain", cause, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNavError_MessageAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("rejected by sdk")
	err := New(KindCallRejected, 4, cause).WithStrategy("number-one-based")

	msg := err.Error()
	for _, part := range []string{"page 4", "call_rejected", "number-one-based", "rejected by sdk"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Expected message to contain %q, got %q", part, msg)
		}
	}
	if !stderrors.Is(err, cause) {
		t.Error("Expected NavError to unwrap to its cause")
	}
}

func TestWithStrategy_DoesNotMutateOriginal(t *testing.T) {
	base := New(KindVerificationTimeout, 1, nil)
	_ = base.WithStrategy("location-page")
	if base.Strategy != "" {
		t.Errorf("Expected original strategy to stay empty, got %q", base.Strategy)
	}
}
