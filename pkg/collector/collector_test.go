package collector

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbox-metrics/pkg/config"
	"github.com/netbox-metrics/pkg/loader"
	"github.com/netbox-metrics/pkg/metrics"
	"github.com/netbox-metrics/pkg/registers"
)

var errBoom = errors.New("boom")

func static(name string, v float64) metrics.Producer {
	return metrics.Static(metrics.NewSample(name, name+" help", v))
}

func failing(samples ...metrics.Sample) metrics.Producer {
	return func(context.Context) iter.Seq2[metrics.Sample, error] {
		return func(yield func(metrics.Sample, error) bool) {
			for _, s := range samples {
				if !yield(s, nil) {
					return
				}
			}
			yield(metrics.Sample{}, errBoom)
		}
	}
}

// stepClock 每次调用前进 step
func stepClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func settings(cfg *config.AppMetricsConfig) SettingsFunc {
	return func() *config.AppMetricsConfig { return cfg }
}

func names(samples []metrics.Sample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.Name
	}
	return out
}

func TestCollectOnlyTiming(t *testing.T) {
	c := New(settings(&config.AppMetricsConfig{}), registers.NewRegistry(), Sources{},
		WithClock(stepClock(1234567*time.Nanosecond)))

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, ProcessingMetric, samples[0].Name)
	assert.Equal(t, "Time in ms to generate the app metrics endpoint", samples[0].Help)
	assert.Empty(t, samples[0].Labels)
	assert.Equal(t, 1.23457, samples[0].Value)
}

func TestCollectNilSettings(t *testing.T) {
	c := New(func() *config.AppMetricsConfig { return nil }, registers.NewRegistry(), Sources{})
	samples, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{ProcessingMetric}, names(samples))
}

func TestCollectOrder(t *testing.T) {
	reg := registers.NewRegistry()
	require.NoError(t, reg.RegisterNamed("custom", static("custom_metric", 1)))

	catalog := registers.NewCatalog()
	require.NoError(t, catalog.Add("first", static("extra_first", 1)))
	require.NoError(t, catalog.Add("second", static("extra_second", 1)))

	var gotModels config.Models
	cfg := &config.AppMetricsConfig{
		Queues:  true,
		Reports: true,
		Models:  config.Models{"dcim": {"Site": true}},
		Extras:  []string{"second", "first"},
	}
	c := New(settings(cfg), reg, Sources{
		Queues:  static("netbox_queue_stats", 1),
		Reports: static("netbox_report_stats", 1),
		Models: func(m config.Models) metrics.Producer {
			gotModels = m
			return static("netbox_model_count", 1)
		},
		Extras: catalog,
	})

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"netbox_queue_stats",
		"netbox_report_stats",
		"netbox_model_count",
		"extra_second",
		"extra_first",
		"custom_metric",
		ProcessingMetric,
	}, names(samples))
	assert.Equal(t, cfg.Models, gotModels)
}

func TestCollectModelsPresence(t *testing.T) {
	var calls int
	src := Sources{Models: func(config.Models) metrics.Producer {
		calls++
		return metrics.Static()
	}}

	_, err := New(settings(&config.AppMetricsConfig{}), registers.NewRegistry(), src).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "absent models section disables model counting")

	_, err = New(settings(&config.AppMetricsConfig{Models: config.Models{}}), registers.NewRegistry(), src).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "empty models section still enables model counting")
}

func TestCollectFailsWholeScrape(t *testing.T) {
	reg := registers.NewRegistry()
	require.NoError(t, reg.RegisterNamed("after", static("after", 1)))
	c := New(settings(&config.AppMetricsConfig{Queues: true, Reports: true}), reg, Sources{
		Queues:  failing(metrics.NewSample("partial", "", 1)),
		Reports: static("netbox_report_stats", 1),
	})

	samples, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "queues")
	assert.Nil(t, samples)
}

func TestCollectStageUnavailable(t *testing.T) {
	cases := map[string]*config.AppMetricsConfig{
		"queues":  {Queues: true},
		"reports": {Reports: true},
		"models":  {Models: config.Models{}},
		"extras":  {Extras: []string{"build_info"}},
		"loader":  {MetricsFolder: "/nonexistent"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(settings(cfg), registers.NewRegistry(), Sources{}).Collect(context.Background())
			assert.ErrorIs(t, err, ErrStageUnavailable)
		})
	}
}

func TestCollectUnknownExtra(t *testing.T) {
	c := New(settings(&config.AppMetricsConfig{Extras: []string{"nope"}}), registers.NewRegistry(),
		Sources{Extras: registers.NewCatalog()})
	_, err := c.Collect(context.Background())
	assert.ErrorIs(t, err, registers.ErrUnknownProducer)
}

func TestCollectIsolateFailures(t *testing.T) {
	reg := registers.NewRegistry()
	require.NoError(t, reg.RegisterNamed("broken", failing()))
	require.NoError(t, reg.RegisterNamed("ok", static("ok_metric", 1)))
	catalog := registers.NewCatalog()
	require.NoError(t, catalog.Add("good", static("extra_good", 1)))
	require.NoError(t, catalog.Add("bad", failing(metrics.NewSample("dropped", "", 1))))

	promReg := prometheus.NewRegistry()
	cfg := &config.AppMetricsConfig{
		Queues:          true,
		Extras:          []string{"bad", "good"},
		MetricsFolder:   filepath.Join(t.TempDir(), "missing"),
		IsolateFailures: true,
	}
	c := New(settings(cfg), reg, Sources{
		Queues: static("netbox_queue_stats", 1),
		Extras: catalog,
		Loader: loader.NewLoader(reg),
	}, WithMetricFactory(metrics.NewMetricFactory(metrics.NewPromRegistry(promReg))))

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"netbox_queue_stats",
		FailedMetric,
		"extra_good",
		FailedMetric,
		"ok_metric",
		ProcessingMetric,
	}, names(samples))
	assert.Equal(t, metrics.Labels("producer", "bad"), samples[1].Labels)
	assert.Equal(t, metrics.Labels("producer", "broken"), samples[3].Labels)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("loader")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("bad")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("broken")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("queues")))
}

func TestCollectDynamicFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom_metric.yaml"), []byte(`
metrics:
  - name: dynamic_load_test
    help: Dynamic metric sample
    value: 10
`), 0o644))

	reg := registers.NewRegistry()
	opener := loader.ManifestOpener{}
	l := loader.NewLoader(reg, loader.WithOpener(".yaml", opener))
	c := New(settings(&config.AppMetricsConfig{MetricsFolder: dir}), reg, Sources{Loader: l})

	for cycle := 0; cycle < 2; cycle++ {
		samples, err := c.Collect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"dynamic_load_test", ProcessingMetric}, names(samples), "cycle %d", cycle)
		assert.Equal(t, 10.0, samples[0].Value)
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "zz_broken.yaml"), []byte("metrics: ["), 0o644))
	for cycle := 0; cycle < 2; cycle++ {
		_, err := c.Collect(context.Background())
		require.Error(t, err)
	}
}

func TestSettingsReadPerCycle(t *testing.T) {
	reg := registers.NewRegistry()
	require.NoError(t, reg.RegisterNamed("custom", static("custom_metric", 1)))
	s := config.NewSettings(config.AppMetricsConfig{Queues: true, Reports: true})
	c := New(s.Get, reg, Sources{
		Queues:  static("netbox_queue_stats", 1),
		Reports: static("netbox_report_stats", 1),
	})

	collect := func() []string {
		samples, err := c.Collect(context.Background())
		require.NoError(t, err)
		return names(samples)
	}

	assert.Equal(t, []string{"netbox_queue_stats", "netbox_report_stats", "custom_metric", ProcessingMetric}, collect())

	// 关闭某个开关只去掉对应的样本
	s.Set(config.AppMetricsConfig{Reports: true})
	assert.Equal(t, []string{"netbox_report_stats", "custom_metric", ProcessingMetric}, collect())

	s.Set(config.AppMetricsConfig{Queues: true})
	assert.Equal(t, []string{"netbox_queue_stats", "custom_metric", ProcessingMetric}, collect())

	s.Set(config.AppMetricsConfig{})
	assert.Equal(t, []string{"custom_metric", ProcessingMetric}, collect())

	s.Set(config.AppMetricsConfig{Queues: true, Reports: true})
	assert.Equal(t, []string{"netbox_queue_stats", "netbox_report_stats", "custom_metric", ProcessingMetric}, collect())
}

func TestIsolateFailuresDuplicateNames(t *testing.T) {
	reg := registers.NewRegistry()
	require.NoError(t, reg.RegisterNamed("custom", failing()))
	require.NoError(t, reg.RegisterNamed("custom", failing()))
	require.NoError(t, reg.RegisterNamed("queues", failing()))

	promReg := prometheus.NewRegistry()
	c := New(settings(&config.AppMetricsConfig{Queues: true, IsolateFailures: true}), reg, Sources{},
		WithMetricFactory(metrics.NewMetricFactory(metrics.NewPromRegistry(promReg))))
	promReg.MustRegister(c.Prometheus())

	families, err := promReg.Gather()
	require.NoError(t, err)

	var failed []string
	for _, f := range families {
		if f.GetName() != FailedMetric {
			continue
		}
		for _, m := range f.GetMetric() {
			failed = append(failed, m.GetLabel()[0].GetValue())
		}
	}
	assert.ElementsMatch(t, []string{"queues", "custom", "custom#2", "queues#2"}, failed)
}

func TestUniqueNames(t *testing.T) {
	list := []stage{{Name: "a"}, {Name: "a"}, {Name: "a#2"}, {Name: "b"}, {Name: "a"}}
	uniqueNames(list)
	got := make([]string, len(list))
	for i, st := range list {
		got[i] = st.Name
	}
	assert.Equal(t, []string{"a", "a#2", "a#2#2", "b", "a#3"}, got)
}

func TestCollectExtras(t *testing.T) {
	entries := []registers.Entry{
		{Name: "a", Producer: static("a", 1)},
		{Name: "b", Producer: failing(metrics.NewSample("b", "", 2))},
		{Name: "c", Producer: static("c", 3)},
	}

	var got []string
	var gotErr error
	for s, err := range CollectExtras(context.Background(), entries) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, s.Name)
	}
	assert.Equal(t, []string{"a", "b"}, got)
	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, errBoom)
	assert.Contains(t, gotErr.Error(), "b")

	samples, err := metrics.Drain(context.Background(), Extras(nil))
	require.NoError(t, err)
	assert.Empty(t, samples)

	// 提前停止迭代
	for range CollectExtras(context.Background(), entries[:1]) {
		break
	}
}

func TestPrometheusAdapter(t *testing.T) {
	reg := registers.NewRegistry()
	require.NoError(t, reg.RegisterNamed("custom", metrics.Static(
		metrics.NewSample("netbox_custom", "custom", 2, metrics.Labels("site", "a")...),
	)))
	cfg := &config.AppMetricsConfig{}
	c := New(settings(cfg), reg, Sources{})

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(c.Prometheus())

	families, err := promReg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		got[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 2.0, got["netbox_custom"])
	assert.Contains(t, got, ProcessingMetric)

	cfg.Queues = true
	_, err = promReg.Gather()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrStageUnavailable.Error())
}
