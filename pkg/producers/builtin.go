package producers

import (
	"runtime"

	"github.com/netbox-metrics/pkg/metrics"
	"github.com/netbox-metrics/pkg/registers"
)

// Version 构建时通过 -ldflags "-X github.com/netbox-metrics/pkg/producers.Version=..." 注入
var Version = "dev"

// BuildInfo netbox_app_metrics_build_info{version,goversion} 1
func BuildInfo() metrics.Producer {
	return metrics.Static(metrics.NewSample(
		"netbox_app_metrics_build_info", "Build information of the metrics exporter",
		1,
		metrics.Labels("version", Version, "goversion", runtime.Version())...,
	))
}

// NewBuiltinCatalog extras 可引用的内置 producer
func NewBuiltinCatalog() *registers.Catalog {
	c := registers.NewCatalog()
	// 名称固定且唯一，Add 不会失败
	_ = c.Add("build_info", BuildInfo())
	_ = c.Add("host", HostStats())
	return c
}
