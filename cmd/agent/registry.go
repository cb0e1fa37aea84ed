package agent

import (
	"context"
	"database/sql"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/netbox-metrics/pkg/collector"
	"github.com/netbox-metrics/pkg/config"
	"github.com/netbox-metrics/pkg/loader"
	"github.com/netbox-metrics/pkg/logger"
	"github.com/netbox-metrics/pkg/metrics"
	"github.com/netbox-metrics/pkg/producers"
	"github.com/netbox-metrics/pkg/registers"
)

// newPromRegistry 创建 Prometheus 注册器并装配 app 采集器。
// 返回的 cleanup 关闭 Redis/数据库连接。
func newPromRegistry(ctx context.Context, cfg *config.Config, settings *config.Settings) (*prometheus.Registry, func(), error) {
	var closers []func() error
	cleanup := func() {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		if err := errors.Join(errs...); err != nil {
			logger.Warn("close backends failed", zap.Error(err))
		}
	}

	// 仅注册进程指标，不注册Go指标
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(promReg))

	src := collector.Sources{Extras: producers.NewBuiltinCatalog()}

	if cfg.Redis.Addr != "" {
		rdb := producers.NewRedisClient(&cfg.Redis)
		closers = append(closers, rdb.Close)
		// RQ 可能晚于 exporter 启动，此处只告警
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable yet", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		src.Queues = producers.QueueStats(rdb)
	}

	var db *sql.DB
	if cfg.Database.DSN != "" {
		var err error
		db, err = producers.OpenDatabase(&cfg.Database)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		// 与 Redis 一致：数据库暂不可达时只告警，reports/models 在抓取时报错
		if err := producers.PingDatabase(ctx, db, &cfg.Database); err != nil {
			logger.Warn("database not reachable yet", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		}
		src.Reports = producers.ReportStats(db)
		src.Models = producers.ModelCounts(db)
	}

	registry := registers.NewRegistry()
	manifest := loader.ManifestOpener{DB: db}
	src.Loader = loader.NewLoader(registry,
		loader.WithOpener(".yaml", manifest),
		loader.WithOpener(".yml", manifest),
		loader.WithOpener(".so", loader.PluginOpener{}),
		loader.WithLoadedGauge(factory.NewLoadedModules()),
	)

	app := collector.New(settings.Get, registry, src, collector.WithMetricFactory(factory))
	promReg.MustRegister(app.Prometheus())

	logger.Debug("app collector registered",
		zap.Bool("redis", src.Queues != nil),
		zap.Bool("database", db != nil),
		zap.Strings("extras_available", src.Extras.Names()))
	return promReg, cleanup, nil
}
