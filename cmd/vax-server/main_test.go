package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaxflow/vaxflow/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:             "8000",
		Env:              "development",
		CORSOrigins:      []string{"*"},
		ClinicTimezone:   "UTC",
		CancelCutoffHrs:  24,
		LockTimeoutMS:    2000,
		RequestTimeoutMS: 30000,
	}
}

func TestBuildServer_Health(t *testing.T) {
	e := buildServer(testConfig(), nil, time.UTC, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestBuildServer_RoutingTable(t *testing.T) {
	e := buildServer(testConfig(), nil, time.UTC, zerolog.Nop())

	want := []string{
		"POST /api/v1/eligibility/evaluate",
		"POST /api/v1/appointment-details",
		"POST /api/v1/appointment-details/:id/pay",
		"POST /api/v1/appointment-details/:id/cancel-request",
		"POST /api/v1/appointment-details/:id/reschedule",
		"POST /api/v1/appointment-details/:id/check-in",
		"POST /api/v1/appointment-details/:id/complete",
		"POST /api/v1/cancel-requests/:id/resolve",
		"GET /api/v1/children/:id/dose-history",
		"GET /api/v1/vaccine-batches/:id/candidate-storages",
		"POST /api/v1/vaccine-batches/:id/assign",
		"POST /api/v1/vaccine-batches/:id/release",
		"POST /api/v1/vaccines",
		"POST /api/v1/cold-storages",
	}

	registered := map[string]bool{}
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, w := range want {
		if !registered[w] {
			t.Errorf("route not registered: %s", w)
		}
	}
}

func TestCommandTree(t *testing.T) {
	migrate := migrateCmd()
	var names []string
	for _, c := range migrate.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"up", "status"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("migrate %s subcommand missing", want)
		}
	}

	if serveCmd().Name() != "serve" {
		t.Error("serve command missing")
	}
}
