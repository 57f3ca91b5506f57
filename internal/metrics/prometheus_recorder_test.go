package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("styles", 150*time.Millisecond)
	pr.IncStageResult("styles", ResultSuccess)
	pr.IncStageResult("styles", ResultFailed)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncBuildOutcome(BuildSuccess)
	pr.IncChangeEvent("scripts")
	pr.IncReload("css")
	pr.SetLiveReloadClients(2)

	assert.InDelta(t, 1, testutil.ToFloat64(pr.stageResults.WithLabelValues("styles", "failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.changeEvents.WithLabelValues("scripts")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(pr.clients), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 7)
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncReload("page")
	pr.ObserveStageDuration("x", time.Second)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncBuildOutcome(BuildFailed)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `assetpipe_build_outcomes_total{outcome="failed"} 1`)
}
