package db

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestHealthReport_Healthy(t *testing.T) {
	stats := &PoolStats{TotalConns: 5, IdleConns: 3, AcquiredConns: 2, MaxConns: 10}

	code, report := healthReport("0.1.0", stats, nil)
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if report.Status != "ok" {
		t.Errorf("expected status ok, got %q", report.Status)
	}
	if report.Version != "0.1.0" {
		t.Errorf("expected version 0.1.0, got %q", report.Version)
	}
	if report.Error != "" {
		t.Errorf("expected no error, got %q", report.Error)
	}
	if report.Pool != stats {
		t.Error("expected pool stats to be carried through")
	}
}

func TestHealthReport_PingFailure(t *testing.T) {
	code, report := healthReport("0.1.0", &PoolStats{}, errors.New("connection refused"))
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if report.Status != "unhealthy" {
		t.Errorf("expected status unhealthy, got %q", report.Status)
	}
	if report.Error != "connection refused" {
		t.Errorf("expected ping error in payload, got %q", report.Error)
	}
}

func TestHealthReport_JSONShape(t *testing.T) {
	_, report := healthReport("0.1.0", &PoolStats{TotalConns: 1, MaxConns: 4}, nil)

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["status"] != "ok" {
		t.Errorf("expected status ok, got %v", decoded["status"])
	}
	if _, ok := decoded["error"]; ok {
		t.Error("expected error field to be omitted when healthy")
	}
	pool, ok := decoded["pool"].(map[string]any)
	if !ok {
		t.Fatal("expected pool object in payload")
	}
	if pool["max_conns"] != float64(4) {
		t.Errorf("expected max_conns 4, got %v", pool["max_conns"])
	}
}
