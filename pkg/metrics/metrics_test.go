package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectorsExposesSeriesBeforeFirstEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"glucoview_rate_limit_allowed_total",
		"glucoview_rate_limit_rejected_total",
		"glucoview_upstream_requests_total",
		"glucoview_upstream_request_seconds",
		"glucoview_refresh_cycles_total",
		"glucoview_session_verdicts_total",
	} {
		require.True(t, names[want], "missing %s", want)
	}
	require.Equal(t, 3, testutil.CollectAndCount(SessionVerdicts))
}
