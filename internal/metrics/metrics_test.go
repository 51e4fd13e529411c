package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/risk-forecast/internal/simulation"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun(simulation.OutcomeSuccess, 1000, 20*time.Millisecond)
	m.ObserveRun(simulation.OutcomeSuccess, 500, 10*time.Millisecond)
	m.ObserveRun(simulation.OutcomeInvalid, 1000, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(simulation.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(simulation.OutcomeInvalid)))
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.iterationsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestJobsActive(t *testing.T) {
	m := New()
	m.JobsActive().Inc()
	m.JobsActive().Inc()
	m.JobsActive().Dec()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsActive()))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRun(simulation.OutcomeAborted, 10, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"riskforecast_simulation_runs_total",
		"riskforecast_simulation_duration_seconds",
		"riskforecast_jobs_active",
	} {
		assert.True(t, strings.Contains(body, name), "expected %s in exposition", name)
	}
}

func TestEngineReportsToMetrics(t *testing.T) {
	m := New()
	engine := simulation.NewEngine(nil, simulation.WithObserver(m))
	_, err := engine.Run(t.Context(), simulation.Request{Settings: simulation.Settings{Iterations: 64, TargetPercentile: 80}})
	require.NoError(t, err)
	assert.Equal(t, 64.0, testutil.ToFloat64(m.iterationsTotal))
}
