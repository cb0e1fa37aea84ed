package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// readModels 从原始配置文件读取 app_metrics.models（保留大小写）。
// present 表示该键是否出现在文件中（值为 null 也算出现）。
// 仅支持 yaml/json；其他格式返回 present=false，由 viper 解码结果兜底。
func readModels(configFile string) (Models, bool, error) {
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, false, nil
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, false, fmt.Errorf("read config file %s: %w", configFile, err)
	}

	var raw struct {
		AppMetrics map[string]any `yaml:"app_metrics"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("parse config file %s: %w", configFile, err)
	}
	section, ok := raw.AppMetrics["models"]
	if !ok {
		return nil, false, nil
	}

	models := Models{}
	if section == nil {
		return models, true, nil
	}
	apps, ok := section.(map[string]any)
	if !ok {
		return nil, true, fmt.Errorf("app_metrics.models must be a mapping, got %T", section)
	}
	for app, v := range apps {
		kinds := map[string]bool{}
		if v != nil {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, true, fmt.Errorf("app_metrics.models.%s must be a mapping, got %T", app, v)
			}
			for kind, enabled := range m {
				b, ok := enabled.(bool)
				if !ok {
					return nil, true, fmt.Errorf("app_metrics.models.%s.%s must be a boolean, got %T", app, kind, enabled)
				}
				kinds[kind] = b
			}
		}
		models[app] = kinds
	}
	return models, true, nil
}
