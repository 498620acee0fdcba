package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLivenessHandler(t *testing.T) {
	handler := LivenessHandler()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Expected body OK, got %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for POST, got %d", rec.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	t.Run("all checks passing", func(t *testing.T) {
		checker := New(time.Second)
		checker.RegisterCheck("certificate", func(ctx context.Context) error { return nil })
		checker.RegisterCheck("forex", func(ctx context.Context) error { return nil })

		rec := httptest.NewRecorder()
		checker.ReadinessHandler()(rec, httptest.NewRequest("GET", "/ready", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var status Status
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if status.Status != "ready" {
			t.Errorf("Expected ready, got %s", status.Status)
		}
		if len(status.Checks) != 2 {
			t.Errorf("Expected 2 check results, got %d", len(status.Checks))
		}
	})

	t.Run("failing check degrades", func(t *testing.T) {
		checker := New(time.Second)
		checker.RegisterCheck("certificate", func(ctx context.Context) error {
			return errors.New("certificate expired")
		})
		checker.RegisterCheck("forex", func(ctx context.Context) error { return nil })

		rec := httptest.NewRecorder()
		checker.ReadinessHandler()(rec, httptest.NewRequest("GET", "/ready", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("Expected 503, got %d", rec.Code)
		}

		var status Status
		json.Unmarshal(rec.Body.Bytes(), &status)
		if status.Status != "degraded" {
			t.Errorf("Expected degraded, got %s", status.Status)
		}
		if status.Checks["certificate"].Message != "certificate expired" {
			t.Errorf("Expected failure message, got %q", status.Checks["certificate"].Message)
		}
	})

	t.Run("slow check times out", func(t *testing.T) {
		checker := New(50 * time.Millisecond)
		checker.RegisterCheck("slow", func(ctx context.Context) error {
			select {
			case <-time.After(time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		status := checker.CheckReadiness(context.Background())
		if status.Status != "degraded" {
			t.Errorf("Expected degraded on timeout, got %s", status.Status)
		}
	})

	t.Run("no checks means ready", func(t *testing.T) {
		status := New(time.Second).CheckReadiness(context.Background())
		if status.Status != "ready" {
			t.Errorf("Expected ready with no checks, got %s", status.Status)
		}
	})
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "abc123", "2026-08-01T00:00:00Z")(rec, httptest.NewRequest("GET", "/version", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc123" {
		t.Errorf("Unexpected version info: %+v", info)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should be populated")
	}
}
