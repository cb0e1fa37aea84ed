package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/netbox-metrics/pkg/metrics"
	"github.com/netbox-metrics/pkg/registers"
)

var valid = validator.New()

// ManifestMetric 声明式 producer 文件中的一条指标
//
//	metrics:
//	  - name: dynamic_load_test
//	    help: Dynamic metric sample
//	    value: 10
//	  - name: netbox_active_devices
//	    query: SELECT COUNT(*) FROM dcim_device WHERE status = 'active'
//	    labels:
//	      - {name: status, value: active}
type ManifestMetric struct {
	Name   string          `mapstructure:"name" validate:"required"`
	Help   string          `mapstructure:"help"`
	Labels []metrics.Label `mapstructure:"labels" validate:"dive"`
	Value  *float64        `mapstructure:"value" validate:"required_without=Query,excluded_with=Query"`
	Query  string          `mapstructure:"query"`
}

type manifest struct {
	Metrics []ManifestMetric `mapstructure:"metrics" validate:"required,dive"`
}

// ManifestOpener 读取 .yaml/.yml 文件，每个文件对应一个以文件名（去扩展名）命名的 producer。
// DB 为空时含 query 的文件会加载失败。
type ManifestOpener struct {
	DB *sql.DB
}

func (o ManifestOpener) Open(_ context.Context, path string) ([]registers.Entry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := valid.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	for _, mm := range m.Metrics {
		// 名称/标签在加载时就校验，避免每次抓取都失败
		if _, err := mm.sample(0).Const(); err != nil {
			return nil, fmt.Errorf("metric %s: %w", mm.Name, err)
		}
		if mm.Query != "" && o.DB == nil {
			return nil, fmt.Errorf("metric %s: query requires a database", mm.Name)
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []registers.Entry{{Name: name, Producer: o.producer(m.Metrics)}}, nil
}

func (mm ManifestMetric) sample(value float64) metrics.Sample {
	return metrics.NewSample(mm.Name, mm.Help, value, mm.Labels...)
}

func (o ManifestOpener) producer(list []ManifestMetric) metrics.Producer {
	return func(ctx context.Context) iter.Seq2[metrics.Sample, error] {
		return func(yield func(metrics.Sample, error) bool) {
			for _, mm := range list {
				var value float64
				if mm.Value != nil {
					value = *mm.Value
				} else if err := o.DB.QueryRowContext(ctx, mm.Query).Scan(&value); err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						err = fmt.Errorf("query returned no rows")
					}
					yield(metrics.Sample{}, fmt.Errorf("metric %s: %w", mm.Name, err))
					return
				}
				if !yield(mm.sample(value), nil) {
					return
				}
			}
		}
	}
}
