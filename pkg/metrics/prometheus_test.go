package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordAnalysis("ok")
	r.RecordAnalysis("ok")
	r.RecordAnalysis("event_block")
	r.RecordFetchError("yahoo", "VIX")
	r.RecordLastPrice("XSP", 580.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.analyses.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.analyses.WithLabelValues("event_block")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchErrors.WithLabelValues("yahoo", "VIX")))
	assert.Equal(t, 580.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("XSP")))
}
