package config

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// Settings 当前生效的 app_metrics 配置，采集器每个周期读取一次
type Settings struct {
	current atomic.Pointer[AppMetricsConfig]
}

// NewSettings 创建 Settings
func NewSettings(cfg AppMetricsConfig) *Settings {
	s := &Settings{}
	s.Set(cfg)
	return s
}

// Get 返回当前配置快照（调用方不得修改）
func (s *Settings) Get() *AppMetricsConfig {
	return s.current.Load()
}

// Set 替换当前配置
func (s *Settings) Set(cfg AppMetricsConfig) {
	s.current.Store(&cfg)
}

// WatchConfigWithCli 加载配置并监听配置文件变化。
// 文件变化后重新解码、校验 app_metrics，成功则替换 Settings；onReload 接收结果（可为 nil）。
// 其余配置段（server/log/redis/database）需要重启生效。
func WatchConfigWithCli(cmd *cobra.Command, onReload func(*AppMetricsConfig, error)) (*Config, *Settings, error) {
	cfg, v, err := loadWithCli(cmd)
	if err != nil {
		return nil, nil, err
	}
	settings := NewSettings(cfg.AppMetrics)

	configFile := v.ConfigFileUsed()
	if configFile == "" {
		return cfg, settings, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v, configFile)
		if err == nil {
			err = next.AppMetrics.Validate()
		}
		if err != nil {
			err = fmt.Errorf("reload %s: %w", configFile, err)
			if onReload != nil {
				onReload(nil, err)
			}
			return
		}
		settings.Set(next.AppMetrics)
		if onReload != nil {
			onReload(settings.Get(), nil)
		}
	})
	v.WatchConfig()
	return cfg, settings, nil
}
