package utils

import (
	"context"
	"errors"
	"testing"
)

func TestHealthMonitorCheck(t *testing.T) {
	m := NewHealthMonitor(nil)
	m.Register("redis", func(context.Context) error { return nil })
	m.Register("mongo", func(context.Context) error { return errors.New("no route") })

	got := m.Check(context.Background())
	if got.Healthy {
		t.Fatal("Healthy = true with a failing check")
	}
	if !got.Checks["redis"] || got.Checks["mongo"] {
		t.Fatalf("Checks = %v", got.Checks)
	}
	if m.Status().CheckedAt != got.CheckedAt {
		t.Fatal("Status does not reflect the last check")
	}
}

func TestHealthMonitorStartRejectsBadSpec(t *testing.T) {
	m := NewHealthMonitor(nil)
	if err := m.Start("not a schedule"); err == nil {
		t.Fatal("expected parse error")
	}
}
