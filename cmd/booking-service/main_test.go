package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		value string
		want  log.Level
	}{
		{"", log.InfoLevel},
		{"debug", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"WARNING", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"not-a-level", log.InfoLevel},
	}

	for _, tc := range cases {
		if got := parseLogLevel(tc.value); got != tc.want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", tc.value, got, tc.want)
		}
	}
}

func TestSetupLogger_DoesNotPanic(t *testing.T) {
	setupLogger("debug")
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	setupLogger("")
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
}
