// Package collector 把所有启用的 producer 聚合成一次抓取的完整样本序列。
package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/netbox-metrics/pkg/config"
	"github.com/netbox-metrics/pkg/loader"
	"github.com/netbox-metrics/pkg/logger"
	"github.com/netbox-metrics/pkg/metrics"
	"github.com/netbox-metrics/pkg/registers"
)

const (
	ProcessingMetric = "netbox_app_metrics_processing_ms"
	processingHelp   = "Time in ms to generate the app metrics endpoint"

	FailedMetric = "netbox_app_metrics_producer_failed"
	failedHelp   = "Producer failed during the last collection (isolate_failures only)"
)

// ErrStageUnavailable 配置启用了某项采集，但对应的后端（Redis/数据库）没有创建
var ErrStageUnavailable = errors.New("stage enabled but backend not configured")

// SettingsFunc 每个采集周期读取一次当前配置
type SettingsFunc func() *config.AppMetricsConfig

// ModelsFunc 按 models 配置构造 producer
type ModelsFunc func(config.Models) metrics.Producer

// Sources 各采集项的后端，未配置的后端留空
type Sources struct {
	Queues  metrics.Producer
	Reports metrics.Producer
	Models  ModelsFunc
	Extras  *registers.Catalog
	Loader  *loader.Loader
}

// stage 一个采集项，Enabled 为 false 时跳过
type stage struct {
	Enabled bool
	Name    string
	NewFunc func() (metrics.Producer, error)
}

type AppCollector struct {
	settings SettingsFunc
	registry *registers.Registry
	src      Sources

	duration    *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
	now         func() time.Time
}

type Option func(*AppCollector)

// WithMetricFactory 记录每个 producer 的耗时与错误数
func WithMetricFactory(f *metrics.MetricFactory) Option {
	return func(c *AppCollector) {
		c.duration = f.NewProducerDurationSeconds()
		c.errorsTotal = f.NewProducerErrorsTotal()
	}
}

// WithClock 替换计时用的时钟
func WithClock(now func() time.Time) Option {
	return func(c *AppCollector) { c.now = now }
}

func New(settings SettingsFunc, registry *registers.Registry, src Sources, opts ...Option) *AppCollector {
	c := &AppCollector{
		settings: settings,
		registry: registry,
		src:      src,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect 执行一次完整采集：动态加载 -> queues -> reports -> models -> extras -> 注册表，
// 最后追加本次耗时（毫秒，保留 5 位小数）。
// 默认任一环节出错即整体失败且不返回样本；isolate_failures 开启时失败的 producer
// 以 netbox_app_metrics_producer_failed 代替，其余照常输出。
func (c *AppCollector) Collect(ctx context.Context) ([]metrics.Sample, error) {
	start := c.now()
	cfg := c.settings()
	if cfg == nil {
		cfg = &config.AppMetricsConfig{}
	}

	if cfg.MetricsFolder != "" {
		if err := c.load(ctx, cfg.MetricsFolder); err != nil {
			if !cfg.IsolateFailures {
				return nil, err
			}
			c.countError("loader")
			logger.Error("dynamic load failed, continuing", zap.Error(err))
		}
	}

	var out []metrics.Sample
	for _, st := range c.stages(cfg) {
		if !st.Enabled {
			continue
		}
		samples, err := c.run(ctx, st)
		if err != nil {
			if !cfg.IsolateFailures {
				return nil, err
			}
			logger.Warn("producer failed, isolated", zap.String("producer", st.Name), zap.Error(err))
			out = append(out, metrics.NewSample(FailedMetric, failedHelp, 1, metrics.Labels("producer", st.Name)...))
			continue
		}
		out = append(out, samples...)
	}

	out = append(out, metrics.NewSample(ProcessingMetric, processingHelp, elapsedMillis(c.now().Sub(start))))
	return out, nil
}

func (c *AppCollector) load(ctx context.Context, dir string) error {
	if c.src.Loader == nil {
		return fmt.Errorf("loader: %w", ErrStageUnavailable)
	}
	return c.src.Loader.Load(ctx, dir)
}

// stages 按固定顺序列出本周期的采集项，注册表快照在动态加载之后获取
func (c *AppCollector) stages(cfg *config.AppMetricsConfig) []stage {
	list := []stage{
		{
			Enabled: cfg.Queues,
			Name:    "queues",
			NewFunc: func() (metrics.Producer, error) {
				if c.src.Queues == nil {
					return nil, fmt.Errorf("%w: redis", ErrStageUnavailable)
				}
				return c.src.Queues, nil
			},
		},
		{
			Enabled: cfg.Reports,
			Name:    "reports",
			NewFunc: func() (metrics.Producer, error) {
				if c.src.Reports == nil {
					return nil, fmt.Errorf("%w: database", ErrStageUnavailable)
				}
				return c.src.Reports, nil
			},
		},
		{
			// 只要配置了 models（即使为空）就启用
			Enabled: cfg.Models != nil,
			Name:    "models",
			NewFunc: func() (metrics.Producer, error) {
				if c.src.Models == nil {
					return nil, fmt.Errorf("%w: database", ErrStageUnavailable)
				}
				return c.src.Models(cfg.Models), nil
			},
		},
	}
	list = append(list, c.extrasStages(cfg)...)
	for _, e := range c.registry.Entries() {
		list = append(list, stage{
			Enabled: true,
			Name:    e.Name,
			NewFunc: func() (metrics.Producer, error) { return e.Producer, nil },
		})
	}
	uniqueNames(list)
	return list
}

// uniqueNames 注册表不保证名称唯一（如 custom.yaml 与 custom.yml），
// 重名的 stage 依次改为 name#2、name#3，保证 producer 标签不重复
func uniqueNames(list []stage) {
	seen := make(map[string]int, len(list))
	for i := range list {
		name := list[i].Name
		seen[name]++
		if n := seen[name]; n > 1 {
			renamed := fmt.Sprintf("%s#%d", name, n)
			for seen[renamed] > 0 {
				n++
				renamed = fmt.Sprintf("%s#%d", name, n)
			}
			seen[renamed]++
			list[i].Name = renamed
		}
	}
}

// extrasStages 默认整体作为一个 producer；隔离模式下逐个执行以便单独替换
func (c *AppCollector) extrasStages(cfg *config.AppMetricsConfig) []stage {
	if len(cfg.Extras) == 0 {
		return nil
	}
	resolve := func(names []string) ([]registers.Entry, error) {
		if c.src.Extras == nil {
			return nil, fmt.Errorf("%w: extras catalog", ErrStageUnavailable)
		}
		return c.src.Extras.Resolve(names)
	}
	if !cfg.IsolateFailures {
		return []stage{{
			Enabled: true,
			Name:    "extras",
			NewFunc: func() (metrics.Producer, error) {
				entries, err := resolve(cfg.Extras)
				if err != nil {
					return nil, err
				}
				return Extras(entries), nil
			},
		}}
	}
	list := make([]stage, 0, len(cfg.Extras))
	for _, name := range cfg.Extras {
		list = append(list, stage{
			Enabled: true,
			Name:    name,
			NewFunc: func() (metrics.Producer, error) {
				entries, err := resolve([]string{name})
				if err != nil {
					return nil, err
				}
				return entries[0].Producer, nil
			},
		})
	}
	return list
}

// run 完整消费一个 producer，出错时丢弃其已产生的样本
func (c *AppCollector) run(ctx context.Context, st stage) ([]metrics.Sample, error) {
	p, err := st.NewFunc()
	if err != nil {
		c.countError(st.Name)
		return nil, fmt.Errorf("%s: %w", st.Name, err)
	}
	start := time.Now()
	samples, err := metrics.Drain(ctx, p)
	if c.duration != nil {
		c.duration.WithLabelValues(st.Name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.countError(st.Name)
		return nil, fmt.Errorf("%s: %w", st.Name, err)
	}
	logger.Debug("producer drained", zap.String("producer", st.Name), zap.Int("samples", len(samples)))
	return samples, nil
}

func (c *AppCollector) countError(name string) {
	if c.errorsTotal != nil {
		c.errorsTotal.WithLabelValues(name).Inc()
	}
}

// elapsedMillis 毫秒，四舍五入到 5 位小数
func elapsedMillis(d time.Duration) float64 {
	ms := float64(d.Nanoseconds()) / 1e6
	return math.Round(ms*1e5) / 1e5
}
