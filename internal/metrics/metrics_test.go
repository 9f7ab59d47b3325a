package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.OperationStarted("register")
	c.OperationStarted("register")
	c.OperationFinished("register", "none", time.Second)
	c.OperationFinished("register", "authorization", 2*time.Second)
	c.OperationFinished("refresh", "busy", 0)
	c.SetBusy(true)
	c.SetRosterSize(3)

	require.EqualValues(t, 2, testutil.ToFloat64(c.started.WithLabelValues("register")))
	require.EqualValues(t, 1, testutil.ToFloat64(c.finished.WithLabelValues("register", "success")))
	require.EqualValues(t, 1, testutil.ToFloat64(c.finished.WithLabelValues("register", "authorization")))
	require.EqualValues(t, 1, testutil.ToFloat64(c.finished.WithLabelValues("refresh", "busy")))
	require.EqualValues(t, 1, testutil.ToFloat64(c.busy))
	require.EqualValues(t, 3, testutil.ToFloat64(c.students))
	require.Equal(t, 1, testutil.CollectAndCount(c.duration))

	c.SetBusy(false)
	require.Zero(t, testutil.ToFloat64(c.busy))

	require.Panics(t, func() { NewCollector(reg) })
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector

	require.NotPanics(t, func() {
		c.OperationStarted("refresh")
		c.OperationFinished("refresh", "none", time.Second)
		c.SetBusy(true)
		c.SetRosterSize(1)
	})
}
