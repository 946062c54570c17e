package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(ErrCodeNotFound, "scenario %q not found", "black-0.ignore")
	if got, want := err.Error(), `NOT_FOUND: scenario "black-0.ignore" not found`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := errors.New("exit status 1")
	wrapped := Wrap(ErrCodeInspectFailed, cause, "inspect %s", "python3")
	if got, want := wrapped.Error(), "INSPECT_FAILED: inspect python3: exit status 1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(wrapped, cause) || errors.Unwrap(wrapped) != cause {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"coded", New(ErrCodeInvalidInput, "x"), ErrCodeInvalidInput},
		{"wrapped by fmt", fmt.Errorf("load: %w", New(ErrCodeInvalidConfig, "x")), ErrCodeInvalidConfig},
		{"outermost code wins", Wrap(ErrCodeInspectFailed, New(ErrCodeInvalidInput, "inner"), "outer"), ErrCodeInspectFailed},
		{"validation error", fmt.Errorf("load: %w", &ValidationError{Subject: "s", Issues: []Issue{{Message: "bad"}}}), ErrCodeInvalidScenario},
		{"plain", errors.New("plain"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %q, want %q", got, tt.want)
			}
			if tt.want != "" && !Is(tt.err, tt.want) {
				t.Errorf("Is(%q) = false", tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{New(ErrCodeNotFound, "no wheelhouse at w"), "no wheelhouse at w"},
		{Wrap(ErrCodeInvalidConfig, errors.New("line 3"), "load config c.toml"), "load config c.toml: line 3"},
		{fmt.Errorf("outer: %w", New(ErrCodeInvalidInput, "inner")), "inner"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestHint(t *testing.T) {
	if h := Hint(New(ErrCodeNotFound, "x")); !strings.Contains(h, "wheelbench list") {
		t.Errorf("NOT_FOUND hint = %q", h)
	}
	if h := Hint(&ValidationError{Issues: []Issue{{Message: "bad"}}}); !strings.Contains(h, "validate") {
		t.Errorf("validation hint = %q", h)
	}
	if h := Hint(New(ErrCodeInvalidInput, "x")); h != "" {
		t.Errorf("INVALID_INPUT hint = %q, want none", h)
	}
	if h := Hint(errors.New("plain")); h != "" {
		t.Errorf("plain hint = %q", h)
	}
}
