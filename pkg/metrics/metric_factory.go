package metrics

import "github.com/prometheus/client_golang/prometheus"

// MetricFactory 创建采集器自身的监控指标，多次创建同一指标得到同一实例
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// NewProducerDurationSeconds 每个 producer 单次消费耗时
// 标签 producer: queues/reports/models/extras 或注册表中的名称
func (m *MetricFactory) NewProducerDurationSeconds() *prometheus.HistogramVec {
	return mustRegister(m.reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netbox_app_metrics_producer_duration_seconds",
		Help:    "Time spent draining each metric producer",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms ~ 2s
	}, []string{"producer"}))
}

// NewProducerErrorsTotal producer 出错次数（含动态加载失败，producer="loader"）
func (m *MetricFactory) NewProducerErrorsTotal() *prometheus.CounterVec {
	return mustRegister(m.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netbox_app_metrics_producer_errors_total",
		Help: "Total errors raised by metric producers",
	}, []string{"producer"}))
}

// NewLoadedModules 已从 metrics_folder 加载的文件数
func (m *MetricFactory) NewLoadedModules() prometheus.Gauge {
	return mustRegister(m.reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netbox_app_metrics_loaded_modules",
		Help: "Number of producer modules loaded from the metrics folder",
	}))
}
