package config

import (
	"os"
	"testing"
)

func TestMustGetEnv(t *testing.T) {
	t.Run("returns the value", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost:5432/tutorhub")
		defer os.Unsetenv("DATABASE_URL")

		if got := mustGetEnv("DATABASE_URL"); got != "postgres://localhost:5432/tutorhub" {
			t.Errorf("Expected the env value, got %q", got)
		}
	})

	t.Run("panics when unset", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for missing required env var")
			}
		}()

		os.Unsetenv("JWT_SECRET")
		mustGetEnv("JWT_SECRET")
	})
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"env value wins", "SERVER_PORT", "9090", "8080", "9090"},
		{"falls back when unset", "FRONTEND_URL", "", "http://localhost:3000", "http://localhost:3000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			} else {
				os.Unsetenv(tc.key)
			}

			if got := getEnvOrDefault(tc.key, tc.defaultVal); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

// The calendar knobs (CALENDAR_TIMEOUT_SECONDS, CALENDAR_INVITE_CONCURRENCY)
// ride on this helper; a malformed value must degrade to the default, never
// to zero.
func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses the timeout", "CALENDAR_TIMEOUT_SECONDS", "30", 15, 30},
		{"parses the concurrency", "CALENDAR_INVITE_CONCURRENCY", "8", 5, 8},
		{"falls back when unset", "CALENDAR_TIMEOUT_SECONDS", "", 15, 15},
		{"falls back on non-numeric", "CALENDAR_TIMEOUT_SECONDS", "soon", 15, 15},
		{"falls back on fractional", "CALENDAR_TIMEOUT_SECONDS", "2.5", 15, 15},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			} else {
				os.Unsetenv(tc.key)
			}

			if got := getEnvAsIntOrDefault(tc.key, tc.defaultVal); got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}
