// Package registers 提供进程内的指标生产者注册表（按注册顺序调用，只增不减）
// 以及供 extras 配置按名称引用的内置生产者目录。
package registers

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/netbox-metrics/pkg/logger"
	"github.com/netbox-metrics/pkg/metrics"
)

var (
	// ErrInvalidProducer 注册了不可调用的生产者（nil 或类型错误的插件符号）
	ErrInvalidProducer = errors.New("invalid producer")
	// ErrUnknownProducer extras 中引用了目录里不存在的名称
	ErrUnknownProducer = errors.New("unknown producer")
	// ErrDuplicateProducer 目录中名称重复
	ErrDuplicateProducer = errors.New("duplicate producer")
)

// Entry 注册表中的一项
type Entry struct {
	Name     string
	Producer metrics.Producer
}

// Registry 生产者注册表。注册不会删除或重排已有条目，注册顺序即调用顺序。
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewRegistry 创建空注册表（由组合根持有并注入采集器）
func NewRegistry() *Registry {
	return &Registry{entries: make([]Entry, 0)}
}

// Register 追加生产者，名称取函数符号名
func (r *Registry) Register(p metrics.Producer) error {
	return r.RegisterNamed("", p)
}

// RegisterNamed 以指定名称追加生产者，name 为空时取函数符号名
func (r *Registry) RegisterNamed(name string, p metrics.Producer) error {
	return r.RegisterAll(Entry{Name: name, Producer: p})
}

// RegisterAll 原子地追加一组条目：任一条目非法则全部不注册
func (r *Registry) RegisterAll(entries ...Entry) error {
	entries = append([]Entry(nil), entries...)
	for i := range entries {
		if entries[i].Producer == nil {
			return fmt.Errorf("%w: %q is nil", ErrInvalidProducer, entries[i].Name)
		}
		if entries[i].Name == "" {
			entries[i].Name = ProducerName(entries[i].Producer)
		}
	}

	r.mu.Lock()
	r.entries = append(r.entries, entries...)
	total := len(r.entries)
	r.mu.Unlock()

	for _, e := range entries {
		logger.Debug("registered metric producer", zap.String("producer", e.Name), zap.Int("total", total))
	}
	return nil
}

// Use 注册并原样返回 p，用于定义处直接包装：
//
//	var deviceCount = reg.Use(func(ctx context.Context) iter.Seq2[metrics.Sample, error] { ... })
//
// p 非法时 panic。
func (r *Registry) Use(p metrics.Producer) metrics.Producer {
	if err := r.Register(p); err != nil {
		panic(err)
	}
	return p
}

// Entries 返回所有已注册条目（返回副本，避免外部修改）
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	copied := make([]Entry, len(r.entries))
	copy(copied, r.entries)
	return copied
}

// Len 已注册数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ProducerName 返回生产者的函数符号名（去掉包路径）
func ProducerName(p metrics.Producer) string {
	if p == nil {
		return ""
	}
	fn := runtime.FuncForPC(reflect.ValueOf(p).Pointer())
	if fn == nil {
		return "anonymous"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
