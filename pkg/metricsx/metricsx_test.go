package metricsx

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsNoop(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.RecordExchange(ResultSuccess, time.Second)
	c.RecordTokenExpiry(time.Now())
	c.StartRequest("GET")(200)
}

func TestCollectorExchanges(t *testing.T) {
	t.Parallel()

	c := NewCollector(prometheus.NewRegistry())

	c.RecordExchange(ResultSuccess, 10*time.Millisecond)
	c.RecordExchange(ResultRejected, 10*time.Millisecond)
	c.RecordExchange(ResultPoisoned, 0)
	c.RecordExchange(ResultPoisoned, 0)

	require.InDelta(t, 1, testutil.ToFloat64(c.exchangesTotal.WithLabelValues(ResultSuccess)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(c.exchangesTotal.WithLabelValues(ResultRejected)), 0)
	require.InDelta(t, 2, testutil.ToFloat64(c.exchangesTotal.WithLabelValues(ResultPoisoned)), 0)
	require.Equal(t, 3, testutil.CollectAndCount(c.exchangesTotal))

	c.RecordTokenExpiry(time.Unix(1700000000, 0))
	require.InDelta(t, 1700000000, testutil.ToFloat64(c.tokenExpiry), 0)
}

func TestCollectorRequests(t *testing.T) {
	t.Parallel()

	c := NewCollector(prometheus.NewRegistry())

	done := c.StartRequest("POST")
	require.InDelta(t, 1, testutil.ToFloat64(c.inFlight), 0)
	done(403)
	require.InDelta(t, 0, testutil.ToFloat64(c.inFlight), 0)

	c.StartRequest("POST")(200)
	c.StartRequest("POST")(200)

	require.InDelta(t, 2, testutil.ToFloat64(c.requestsTotal.WithLabelValues("POST", "200")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(c.requestsTotal.WithLabelValues("POST", "403")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(c.requestDuration))
}
