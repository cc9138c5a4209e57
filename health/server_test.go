package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"nobroker_watchdog/scheduler"
)

func TestHandleHealth(t *testing.T) {
	sched := scheduler.New(func(context.Context) error { return nil }, time.Minute, "", time.Minute)
	s := NewServer(0, sched)

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["state"] != "idle" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["last_run_ts"] != nil {
		t.Fatalf("fresh process must report a null last run, got %v", body["last_run_ts"])
	}

	sched.RunCycle(context.Background())
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["last_run_ts"] == nil {
		t.Fatalf("last run timestamp must appear after a cycle")
	}
}
