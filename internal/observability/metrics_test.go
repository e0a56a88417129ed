package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordEmissionLogged(t *testing.T) {
	before := testutil.ToFloat64(emissionsLoggedCounter.WithLabelValues("fuel"))
	kgBefore := testutil.ToFloat64(emissionsKgCounter.WithLabelValues("fuel"))

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	RecordEmissionLogged("fuel", 23.1, ts)

	require.Equal(t, before+1, testutil.ToFloat64(emissionsLoggedCounter.WithLabelValues("fuel")))
	require.InDelta(t, kgBefore+23.1, testutil.ToFloat64(emissionsKgCounter.WithLabelValues("fuel")), 1e-9)
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(lastLoggedGauge))
}

func TestRecordGoalTransition(t *testing.T) {
	before := testutil.ToFloat64(goalTransitionCounter.WithLabelValues("completed"))
	RecordGoalTransition("completed")
	require.Equal(t, before+1, testutil.ToFloat64(goalTransitionCounter.WithLabelValues("completed")))
}
