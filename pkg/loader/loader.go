// Package loader 从 metrics_folder 目录发现并加载新的 producer 文件。
// 每个文件在进程生命周期内至多加载一次，加载失败的文件不记入已加载集合，下个周期会重试。
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/netbox-metrics/pkg/logger"
	"github.com/netbox-metrics/pkg/registers"
)

// Opener 把一个文件转换成待注册的 producer 列表
type Opener interface {
	Open(ctx context.Context, path string) ([]registers.Entry, error)
}

// OpenerFunc 函数适配 Opener
type OpenerFunc func(ctx context.Context, path string) ([]registers.Entry, error)

func (f OpenerFunc) Open(ctx context.Context, path string) ([]registers.Entry, error) {
	return f(ctx, path)
}

type Option func(*Loader)

// WithOpener 为扩展名（含点，如 ".yaml"）注册 Opener
func WithOpener(ext string, o Opener) Option {
	return func(l *Loader) { l.openers[ext] = o }
}

// WithLoadedGauge 每次加载后更新已加载文件数
func WithLoadedGauge(g prometheus.Gauge) Option {
	return func(l *Loader) { l.gauge = g }
}

type Loader struct {
	mu       sync.Mutex
	registry *registers.Registry
	openers  map[string]Opener
	loaded   map[string]struct{}
	gauge    prometheus.Gauge
}

func NewLoader(registry *registers.Registry, opts ...Option) *Loader {
	l := &Loader{
		registry: registry,
		openers:  make(map[string]Opener),
		loaded:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 扫描 dir（不递归），按文件名顺序加载尚未加载的文件。
// 遇到第一个失败即返回，之前成功的文件保持已加载。
func (l *Loader) Load(ctx context.Context, dir string) error {
	// 整个扫描持锁，并发的首次加载不会重复注册
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read metrics folder %s: %w", dir, err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		opener, ok := l.openers[filepath.Ext(f.Name())]
		if !ok {
			continue
		}
		path := filepath.Join(dir, f.Name())
		if _, done := l.loaded[path]; done {
			continue
		}
		entries, err := opener.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if err := l.registry.RegisterAll(entries...); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		l.loaded[path] = struct{}{}
		logger.Info("loaded producer module", zap.String("file", path), zap.Int("producers", len(entries)))
	}
	if l.gauge != nil {
		l.gauge.Set(float64(len(l.loaded)))
	}
	return nil
}

// Loaded 已加载的文件路径，按字典序
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.loaded))
	for p := range l.loaded {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
