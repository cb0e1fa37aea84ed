package registers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/netbox-metrics/pkg/metrics"
)

// Catalog 具名生产者目录，app_metrics.extras 通过名称引用其中的条目
type Catalog struct {
	mu    sync.RWMutex
	named map[string]metrics.Producer
}

// NewCatalog 创建空目录
func NewCatalog() *Catalog {
	return &Catalog{named: make(map[string]metrics.Producer)}
}

// Add 添加具名生产者
func (c *Catalog) Add(name string, p metrics.Producer) error {
	if p == nil {
		return fmt.Errorf("%w: %q is nil", ErrInvalidProducer, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.named[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateProducer, name)
	}
	c.named[name] = p
	return nil
}

// Lookup 按名称查找
func (c *Catalog) Lookup(name string) (metrics.Producer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.named[name]
	return p, ok
}

// Names 已知名称（排序）
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.named))
	for n := range c.named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve 按配置顺序解析名称列表
func (c *Catalog) Resolve(names []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(names))
	for _, n := range names {
		p, ok := c.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProducer, n, c.Names())
		}
		entries = append(entries, Entry{Name: n, Producer: p})
	}
	return entries, nil
}
