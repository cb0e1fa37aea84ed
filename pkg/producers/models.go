package producers

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/netbox-metrics/pkg/config"
	"github.com/netbox-metrics/pkg/metrics"
)

// ModelCounts 按配置统计 NetBox 模型的对象数：netbox_model_count{app,model}。
// 表名为 <app>_<小写 model>，与 Django 默认 db_table 一致。
func ModelCounts(db *sql.DB) func(config.Models) metrics.Producer {
	return func(models config.Models) metrics.Producer {
		return func(ctx context.Context) iter.Seq2[metrics.Sample, error] {
			return func(yield func(metrics.Sample, error) bool) {
				for _, app := range sortedKeys(models) {
					for _, model := range sortedKeys(models[app]) {
						if !models[app][model] {
							continue
						}
						n, err := countModel(ctx, db, app, model)
						if err != nil {
							yield(metrics.Sample{}, err)
							return
						}
						s := metrics.NewSample(
							"netbox_model_count", "Per NetBox model object count",
							float64(n),
							metrics.Labels("app", app, "model", model)...,
						)
						if !yield(s, nil) {
							return
						}
					}
				}
			}
		}
	}
}

func countModel(ctx context.Context, db *sql.DB, app, model string) (int64, error) {
	// 标识符无法参数化，拼接前必须校验
	if !config.ValidIdentifier(app) || !config.ValidIdentifier(model) {
		return 0, fmt.Errorf("invalid model identifier %s.%s", app, model)
	}
	table := app + "_" + strings.ToLower(model)
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s.%s: %w", app, model, err)
	}
	return n, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
