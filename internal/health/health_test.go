package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// decode unmarshals a health endpoint response body.
func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var res response
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal body %q: %v", rec.Body.String(), err)
	}
	return res
}

func okChecker(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return nil }}
}

func failChecker(name, msg string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return errors.New(msg) }}
}

func TestHealthzAlwaysOK(t *testing.T) {
	// Liveness must not depend on readiness checks.
	h := New(failChecker("database", "connection refused"))

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if res := decode(t, rec); res.Status != "ok" {
		t.Errorf("body status = %q, want %q", res.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]checkStatus
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all dependencies healthy",
			checkers: []Checker{
				okChecker("exercises"),
				okChecker("progress-breaker"),
				okChecker("database"),
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]checkStatus{
				"exercises":        {Status: "ok"},
				"progress-breaker": {Status: "ok"},
				"database":         {Status: "ok"},
			},
		},
		{
			name: "empty exercise library",
			checkers: []Checker{
				failChecker("exercises", "no exercises loaded"),
				okChecker("progress-breaker"),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]checkStatus{
				"exercises":        {Status: "fail", Error: "no exercises loaded"},
				"progress-breaker": {Status: "ok"},
			},
		},
		{
			name: "open progress breaker",
			checkers: []Checker{
				okChecker("exercises"),
				failChecker("progress-breaker", "circuit breaker open"),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]checkStatus{
				"exercises":        {Status: "ok"},
				"progress-breaker": {Status: "fail", Error: "circuit breaker open"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := New(tc.checkers...)
			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			res := decode(t, rec)
			if res.Status != tc.wantStatus {
				t.Errorf("body status = %q, want %q", res.Status, tc.wantStatus)
			}
			if len(res.Checks) != len(tc.wantChecks) {
				t.Fatalf("checks = %v, want %v", res.Checks, tc.wantChecks)
			}
			for name, want := range tc.wantChecks {
				if got := res.Checks[name]; got != want {
					t.Errorf("check %q = %+v, want %+v", name, got, want)
				}
			}
		})
	}
}

func TestReadyzChecksGetDeadline(t *testing.T) {
	var deadlineSet bool
	h := New(Checker{Name: "database", Check: func(ctx context.Context) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	}})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if !deadlineSet {
		t.Error("check context has no deadline")
	}
}

func TestReadyzRunsChecksInParallel(t *testing.T) {
	// Each check blocks until all three have started. If the handler ran
	// them sequentially the barrier would never release and the shared
	// deadline would fire instead.
	var barrier sync.WaitGroup
	barrier.Add(3)

	blocking := func(name string) Checker {
		return Checker{Name: name, Check: func(ctx context.Context) error {
			barrier.Done()
			done := make(chan struct{})
			go func() { barrier.Wait(); close(done) }()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}}
	}

	h := New(blocking("exercises"), blocking("progress-breaker"), blocking("database"))

	start := time.Now()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (checks did not run in parallel)", rec.Code)
	}
	if elapsed := time.Since(start); elapsed > readyTimeout {
		t.Errorf("readyz took %v, want well under %v", elapsed, readyTimeout)
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New(okChecker("exercises")).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
