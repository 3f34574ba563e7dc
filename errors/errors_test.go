package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"no discovery message", ErrNoDiscoveryMessage, true},
		{"no data", ErrNoData, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"nonexistent channel", ErrNonexistentChannel, false},
		{"resource exhausted", ErrResourceExhausted, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network write failed"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"resource exhausted", ErrResourceExhausted, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"unsupported service type", ErrUnsupportedServiceType, false},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"unsupported service type", ErrUnsupportedServiceType, true},
		{"nonexistent channel", ErrNonexistentChannel, true},
		{"decode failed", ErrDecodeFailed, true},
		{"connection lost", ErrConnectionLost, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if Wrap(nil, "Gateway", "AddChannel", "channel creation") != nil {
			t.Error("expected nil for nil error")
		}
	})

	t.Run("wraps with component context", func(t *testing.T) {
		base := errors.New("pool exhausted")
		wrapped := Wrap(base, "Gateway", "AddChannel", "channel creation")

		expected := "Gateway.AddChannel: channel creation failed: pool exhausted"
		if wrapped.Error() != expected {
			t.Errorf("expected %q, got %q", expected, wrapped.Error())
		}
		if !errors.Is(wrapped, base) {
			t.Error("wrapped error should match base via errors.Is")
		}
	})
}

func TestWrapClassified(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"fatal", WrapFatal, ErrorFatal},
		{"invalid", WrapInvalid, ErrorInvalid},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			wrapped := test.wrap(base, "Bridge", "Forward", "payload write")
			if wrapped == nil {
				t.Fatal("expected non-nil wrapped error")
			}

			var ce *ClassifiedError
			if !errors.As(wrapped, &ce) {
				t.Fatal("expected ClassifiedError")
			}
			if ce.Class != test.class {
				t.Errorf("expected class %v, got %v", test.class, ce.Class)
			}
			if !strings.Contains(wrapped.Error(), "Bridge.Forward") {
				t.Errorf("expected component context in message, got %q", wrapped.Error())
			}
			if !errors.Is(wrapped, base) {
				t.Error("classified error should unwrap to base")
			}

			if test.wrap(nil, "Bridge", "Forward", "noop") != nil {
				t.Error("expected nil for nil error")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil defaults to transient", nil, ErrorTransient},
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"missing config", ErrMissingConfig, ErrorFatal},
		{"nonexistent channel", ErrNonexistentChannel, ErrorInvalid},
		{"unknown defaults to transient", errors.New("mystery"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}
