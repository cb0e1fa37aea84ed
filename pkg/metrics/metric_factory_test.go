package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricFactoryReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewMetricFactory(NewPromRegistry(reg))

	first := f.NewProducerErrorsTotal()
	second := NewMetricFactory(NewPromRegistry(reg)).NewProducerErrorsTotal()
	require.Same(t, first, second)

	first.WithLabelValues("queues").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.WithLabelValues("queues")))

	g := f.NewLoadedModules()
	g.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.NewLoadedModules()))
	f.NewProducerDurationSeconds().WithLabelValues("queues").Observe(0.01)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMustRegisterConflictPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPromRegistry(reg)
	mustRegister(r, prometheus.NewGauge(prometheus.GaugeOpts{Name: "x", Help: "a"}))

	assert.Panics(t, func() {
		// 同名不同类型/帮助信息
		mustRegister(r, prometheus.NewCounter(prometheus.CounterOpts{Name: "x", Help: "b"}))
	})
}
