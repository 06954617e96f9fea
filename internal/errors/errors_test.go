package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"simple error", errors.New("habit not found"), "Error: habit not found"},
		{"wrapped error", fmt.Errorf("failed to sync: %w", errors.New("connection refused")), "Error: failed to sync: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.err); got != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestFormatf(t *testing.T) {
	got := Formatf("invalid time %q", "25:00")
	if want := `Error: invalid time "25:00"`; got != want {
		t.Errorf("Formatf() = %q, want %q", got, want)
	}
}

func TestWarning(t *testing.T) {
	if got := Warning(nil); got != "" {
		t.Errorf("Warning(nil) = %q, want empty", got)
	}
	if got, want := Warning(errors.New("remote rejected write")), "Warning: remote rejected write"; got != want {
		t.Errorf("Warning() = %q, want %q", got, want)
	}
}
