package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	base := New(KindInvalidOtp, "Invalid OTP.")
	wrapped := fmt.Errorf("verifying: %w", base)

	if got := KindOf(wrapped); got != KindInvalidOtp {
		t.Fatalf("KindOf() = %v, want %v", got, KindInvalidOtp)
	}
	if !Is(wrapped, KindInvalidOtp) {
		t.Fatal("expected Is() to match wrapped kind")
	}
}

func TestKindOfDefaultsToServerError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindServerError {
		t.Fatalf("KindOf() = %v, want %v", got, KindServerError)
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected Internal() to wrap cause")
	}
	if err.Message != "An internal error occurred" {
		t.Fatalf("Message = %q", err.Message)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNotYetEligible, "NotYetEligible"},
		{KindEmailDeliveryFailed, "EmailDeliveryFailed"},
		{Kind(99), "Kind(99)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}
