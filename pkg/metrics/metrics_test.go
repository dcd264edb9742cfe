package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CacheHit("department")
	m.CacheHit("department")
	m.CacheMiss("department")
	m.CacheEvicted("department", 2)
	m.CacheEvicted("department", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("department")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("department")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheEvictions.WithLabelValues("department")))
}

func TestMetrics_ObserveQuery(t *testing.T) {
	m := New()

	m.ObserveQuery("department", "flat", time.Now(), nil)
	m.ObserveQuery("department", "group", time.Now(), errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.queryDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryErrors.WithLabelValues("department")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit("x")
		m.CacheMiss("x")
		m.CacheEvicted("x", 1)
		m.ObserveQuery("x", "flat", time.Now(), nil)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CacheHit("department")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `orgtree_row_cache_hits_total{entity="department"} 1`))
}
