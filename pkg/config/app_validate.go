package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// 模型计数会把 app/model 拼接成表名，只允许标识符字符
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier app/model 名称是否可以安全地拼进 SQL
func ValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// Validate 采集开关校验
// metrics_folder 允许暂不存在（目录可以之后再创建），但存在时必须是目录
func (a *AppMetricsConfig) Validate() error {
	if err := valid.Struct(a); err != nil {
		return err
	}
	for app, models := range a.Models {
		if !ValidIdentifier(app) {
			return fmt.Errorf("app_metrics.models: invalid app name %q", app)
		}
		for model := range models {
			if !ValidIdentifier(model) {
				return fmt.Errorf("app_metrics.models.%s: invalid model name %q", app, model)
			}
		}
	}
	for _, name := range a.Extras {
		if strings.TrimSpace(name) != name {
			return fmt.Errorf("app_metrics.extras: %q has surrounding whitespace", name)
		}
	}
	if a.MetricsFolder != "" {
		stat, err := os.Stat(a.MetricsFolder)
		if err == nil && !stat.IsDir() {
			return fmt.Errorf("app_metrics.metrics_folder %s is not a directory", a.MetricsFolder)
		}
	}
	return nil
}

// ModelsEnabled models 配置段是否出现（出现即启用，即使为空）
func (a *AppMetricsConfig) ModelsEnabled() bool {
	return a.Models != nil
}
