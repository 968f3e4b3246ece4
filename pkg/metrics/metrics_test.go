package metrics_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/wicket/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAreRegistered(t *testing.T) {
	before := testutil.ToFloat64(metrics.CacheLookupsTotal.WithLabelValues("hit"))
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	gt.Equal(t, testutil.ToFloat64(metrics.CacheLookupsTotal.WithLabelValues("hit")), before+1)

	metrics.FetchDuration.WithLabelValues("live").Observe(0.2)
	gt.True(t, testutil.CollectAndCount(metrics.FetchDuration) > 0)
}
