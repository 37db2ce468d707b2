package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestObservePerformAndTrapAppearInHandler(t *testing.T) {
	m := NewMetrics()
	m.ObservePerform("DoThing", OutcomeSuccess, 0.01)
	m.ObservePerform("DoThing", OutcomePerform, 0.02)
	m.ObserveTrap()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`onesdk_perform_total{outcome="success",usecase="DoThing"} 1`,
		`onesdk_perform_total{outcome="perform_error",usecase="DoThing"} 1`,
		"onesdk_trap_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestNewMetricsReturnsIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.ObserveTrap()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "onesdk_trap_total 1") {
		t.Error("expected a separate Metrics instance's registry to stay unaffected")
	}
}
