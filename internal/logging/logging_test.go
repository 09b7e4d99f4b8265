package logging

import "testing"

func TestNew(t *testing.T) {
	logger, err := New("info")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger instance")
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level to be disabled")
	}
	_ = logger.Sync()
}

func TestNewDebugLevel(t *testing.T) {
	logger, err := New("debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level to be enabled")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
