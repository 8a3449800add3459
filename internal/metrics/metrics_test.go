package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtsched/internal/metrics"
)

func TestHandler_exposesCounters(t *testing.T) {
	m := metrics.New()
	m.RangesAppended.WithLabelValues("secondary").Inc()
	m.RangesAppended.WithLabelValues("secondary").Inc()
	m.SelectionErrors.WithLabelValues("malformed_timestamp").Inc()
	m.Sessions.Set(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RangesAppended.WithLabelValues("secondary")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Sessions))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mtsched_ranges_appended_total{mode="secondary"} 2`)
	assert.Contains(t, string(body), `mtsched_selection_errors_total{reason="malformed_timestamp"} 1`)
	assert.Contains(t, string(body), "mtsched_sessions 3")
}
