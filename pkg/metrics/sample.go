package metrics

import (
	"context"
	"iter"

	"github.com/prometheus/client_golang/prometheus"
)

// Label 单个标签（有序标签集中的一项）
type Label struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// Sample 一条指标样本：名称、帮助信息、有序标签集、数值。创建后不再修改。
type Sample struct {
	Name   string
	Help   string
	Labels []Label
	Value  float64
}

// Producer 无参指标生产者，每次调用返回一个新的惰性样本序列。
// 序列中出现非 nil error 时即终止，调用方应停止迭代。
type Producer func(ctx context.Context) iter.Seq2[Sample, error]

// NewSample 创建样本
func NewSample(name, help string, value float64, labels ...Label) Sample {
	return Sample{Name: name, Help: help, Labels: labels, Value: value}
}

// Labels 按 name,value,name,value... 顺序构造标签集（奇数个参数时忽略最后一个）
func Labels(pairs ...string) []Label {
	out := make([]Label, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Label{Name: pairs[i], Value: pairs[i+1]})
	}
	return out
}

// LabelValue 返回指定标签的值
func (s Sample) LabelValue(name string) (string, bool) {
	for _, l := range s.Labels {
		if l.Name == name {
			return l.Value, true
		}
	}
	return "", false
}

// Const 转换成 Prometheus 常量 Gauge，用于暴露
func (s Sample) Const() (prometheus.Metric, error) {
	names := make([]string, len(s.Labels))
	values := make([]string, len(s.Labels))
	for i, l := range s.Labels {
		names[i] = l.Name
		values[i] = l.Value
	}
	desc := prometheus.NewDesc(s.Name, s.Help, names, nil)
	return prometheus.NewConstMetric(desc, prometheus.GaugeValue, s.Value, values...)
}

// Static 返回固定样本的生产者
func Static(samples ...Sample) Producer {
	return func(context.Context) iter.Seq2[Sample, error] {
		return func(yield func(Sample, error) bool) {
			for _, s := range samples {
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

// FromSlice 把一次性返回切片的函数包装成生产者
func FromSlice(fn func(ctx context.Context) ([]Sample, error)) Producer {
	return func(ctx context.Context) iter.Seq2[Sample, error] {
		return func(yield func(Sample, error) bool) {
			samples, err := fn(ctx)
			if err != nil {
				yield(Sample{}, err)
				return
			}
			for _, s := range samples {
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

// Drain 完整消费一个生产者，遇到第一个错误即返回（已产出的样本一并返回）
func Drain(ctx context.Context, p Producer) ([]Sample, error) {
	var out []Sample
	for s, err := range p(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
