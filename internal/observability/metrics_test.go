package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordRefresh(time.Second, 7, nil)
	m.RecordRefresh(time.Second, 0, errors.New("rpc down"))
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordRPCCall("eth_getLogs", 20*time.Millisecond, errors.New("timeout"))
	m.RecordQuoteFetch(38.5, nil)
	m.RecordQuoteFetch(0, errors.New("429"))
	m.SetLatestBlock(123)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues("error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.LaunchesServed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCCallErrors.WithLabelValues("eth_getLogs")))
	assert.Equal(t, 38.5, testutil.ToFloat64(m.QuoteUSD))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuoteFetches.WithLabelValues("error")))
	assert.Equal(t, 123.0, testutil.ToFloat64(m.LatestBlock))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRefresh(time.Second, 1, nil)
		m.RecordCacheLookup(false)
		m.RecordEnrichmentError("holders")
		m.RecordSinkError("redis")
		m.RecordRPCCall("eth_blockNumber", time.Millisecond, nil)
		m.RecordQuoteFetch(1, nil)
		m.SetLatestBlock(1)
	})
}
