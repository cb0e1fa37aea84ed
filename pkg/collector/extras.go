package collector

import (
	"context"
	"fmt"
	"iter"

	"github.com/netbox-metrics/pkg/metrics"
	"github.com/netbox-metrics/pkg/registers"
)

// CollectExtras 按顺序依次消费 entries，拼接成一个序列。
// 遇到第一个错误时产出该错误并停止。
func CollectExtras(ctx context.Context, entries []registers.Entry) iter.Seq2[metrics.Sample, error] {
	return func(yield func(metrics.Sample, error) bool) {
		for _, e := range entries {
			for s, err := range e.Producer(ctx) {
				if err != nil {
					yield(metrics.Sample{}, fmt.Errorf("%s: %w", e.Name, err))
					return
				}
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

// Extras 把 CollectExtras 封装成 Producer
func Extras(entries []registers.Entry) metrics.Producer {
	return func(ctx context.Context) iter.Seq2[metrics.Sample, error] {
		return CollectExtras(ctx, entries)
	}
}
