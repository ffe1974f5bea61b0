package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"certissuer/internal/api"
)

func TestNextRunFallsBackToConfiguredSchedule(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"next-run"}, env.configPath)
	if err != nil {
		t.Fatalf("next-run: %v", err)
	}
	requireContains(t, out, "computed from config")
	requireContains(t, out, env.cfg.Schedule.Spec)
}

func TestTriggerReportsUnavailableDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"trigger"}, env.configPath)
	if err == nil {
		t.Fatal("expected trigger to fail without a daemon")
	}
	requireContains(t, err.Error(), "certissuer daemon")
}

func TestStatusRendersDaemonHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.HealthResponse{
			Ready: false,
			PID:   4242,
			Stages: []api.StageHealth{
				{Name: "render", Ready: true},
				{Name: "assemble", Ready: false, Detail: "signing key missing"},
			},
			Staging: []api.StagingDir{{Name: "leftover-run", SizeBytes: 128}},
		})
	}))
	defer srv.Close()

	env := setupCLITestEnv(t)
	env.cfg.Daemon.APIBind = strings.TrimPrefix(srv.URL, "http://")
	env.save(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err == nil {
		t.Fatal("expected status to fail when a stage is not ready")
	}
	requireContains(t, out, "4242")
	requireContains(t, out, "signing key missing")
	requireContains(t, out, "leftover-run")
}
