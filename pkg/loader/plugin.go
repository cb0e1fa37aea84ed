package loader

import (
	"context"
	"fmt"
	"plugin"

	"github.com/netbox-metrics/pkg/registers"
)

// PluginSymbol .so 插件必须导出的符号：
//
//	func Producers() []registers.Entry
const PluginSymbol = "Producers"

// PluginOpener 加载 Go 插件（go build -buildmode=plugin）
type PluginOpener struct{}

func (PluginOpener) Open(_ context.Context, path string) ([]registers.Entry, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := p.Lookup(PluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", registers.ErrInvalidProducer, err)
	}
	return entriesFromSymbol(sym)
}

func entriesFromSymbol(sym plugin.Symbol) ([]registers.Entry, error) {
	fn, ok := sym.(func() []registers.Entry)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %T", registers.ErrInvalidProducer, PluginSymbol, sym)
	}
	return fn(), nil
}
