package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Registers 自监控指标的注册入口，测试中可以替换成独立的 *prometheus.Registry
type Registers interface {
	Register(collector prometheus.Collector) error
}

// promRegistry 包裹 *prometheus.Registry：
// 同一指标重复注册时复用已存在的 Collector，其他注册错误直接 panic（属于编程错误）
type promRegistry struct {
	registry *prometheus.Registry
}

// NewPromRegistry 创建 Prometheus 指标注册器
func NewPromRegistry(registry *prometheus.Registry) Registers {
	return &promRegistry{registry: registry}
}

func (p *promRegistry) Register(collector prometheus.Collector) error {
	return p.registry.Register(collector)
}

// mustRegister 注册 c，若已注册过同样的指标则返回已有的那个
func mustRegister[C prometheus.Collector](reg Registers, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}
