package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolidayFetchCounter(t *testing.T) {
	before := testutil.ToFloat64(HolidayFetches.WithLabelValues(FetchFresh))
	HolidayFetches.WithLabelValues(FetchFresh).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(HolidayFetches.WithLabelValues(FetchFresh)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	OccurrenceQueries.WithLabelValues("day").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "visitcal_occurrence_queries_total")
}
