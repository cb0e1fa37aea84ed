package collector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/netbox-metrics/pkg/logger"
)

var errDesc = prometheus.NewDesc("netbox_app_metrics_error", "Error collecting app metrics", nil, nil)

// promCollector 把 AppCollector 适配为 unchecked prometheus.Collector，
// 采集失败时发送 invalid metric，promhttp（HTTPErrorOnError）据此返回 500
type promCollector struct {
	c *AppCollector
}

// Prometheus 返回可注册到 prometheus.Registry 的 Collector
func (c *AppCollector) Prometheus() prometheus.Collector {
	return promCollector{c: c}
}

// Describe 不声明任何描述符，样本集合每个周期都可能变化
func (promCollector) Describe(chan<- *prometheus.Desc) {}

func (p promCollector) Collect(ch chan<- prometheus.Metric) {
	samples, err := p.c.Collect(context.Background())
	if err != nil {
		logger.Error("collect app metrics failed", zap.Error(err))
		ch <- prometheus.NewInvalidMetric(errDesc, err)
		return
	}
	for _, s := range samples {
		m, err := s.Const()
		if err != nil {
			ch <- prometheus.NewInvalidMetric(errDesc, err)
			continue
		}
		ch <- m
	}
}
