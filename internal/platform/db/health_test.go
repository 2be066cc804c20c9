package db

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestCheckDependencies(t *testing.T) {
	deps := []Dependency{
		{Name: "cache", Ping: func(context.Context) error { return nil }},
		{Name: "broker", Ping: func(context.Context) error { return errors.New("connection refused") }},
	}

	checks, healthy := CheckDependencies(context.Background(), deps)
	if healthy {
		t.Error("expected unhealthy when one dependency fails")
	}
	if checks["cache"] != "ok" {
		t.Errorf("expected cache ok, got %q", checks["cache"])
	}
	if checks["broker"] != "connection refused" {
		t.Errorf("expected broker error, got %q", checks["broker"])
	}

	_, healthy = CheckDependencies(context.Background(), nil)
	if !healthy {
		t.Error("expected healthy with no dependencies")
	}
}

func TestNewReport(t *testing.T) {
	tests := []struct {
		name        string
		dbErr       error
		depsHealthy bool
		wantCode    int
		wantStatus  string
	}{
		{"all up", nil, true, http.StatusOK, "healthy"},
		{"cache down", nil, false, http.StatusOK, "degraded"},
		{"database down", errors.New("dial tcp: refused"), true, http.StatusServiceUnavailable, "unhealthy"},
		{"both down", errors.New("dial tcp: refused"), false, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, r := newReport(tt.dbErr, PoolStats{Max: 10}, map[string]string{"cache": "ok"}, tt.depsHealthy)
			if code != tt.wantCode || r.Status != tt.wantStatus {
				t.Errorf("got %d %s, want %d %s", code, r.Status, tt.wantCode, tt.wantStatus)
			}
			if tt.dbErr != nil && r.Database != tt.dbErr.Error() {
				t.Errorf("expected database error in report, got %q", r.Database)
			}
			if r.Pool.Max != 10 {
				t.Errorf("expected pool stats to be carried, got %+v", r.Pool)
			}
		})
	}
}
