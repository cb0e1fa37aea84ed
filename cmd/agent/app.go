package agent

import (
	"github.com/spf13/cobra"
)

// app_metrics 的开关（queues/reports/models/extras）只能来自配置文件，
// 否则 flag 默认值会让“未配置即关闭”失效
func initAppFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("app_metrics.metrics_folder", defaultCfg.AppMetrics.MetricsFolder, "动态 producer 目录")
	f.Bool("app_metrics.isolate_failures", defaultCfg.AppMetrics.IsolateFailures, "单个 producer 失败时继续输出其余指标")

	f.String("redis.addr", defaultCfg.Redis.Addr, "RQ Redis 地址 ip:port")
	f.String("redis.password", defaultCfg.Redis.Password, "Redis 密码")
	f.Int("redis.db", defaultCfg.Redis.DB, "Redis DB")

	f.String("database.driver", defaultCfg.Database.Driver, "数据库驱动 [pgx,postgres,sqlite]")
	f.String("database.dsn", defaultCfg.Database.DSN, "NetBox 数据库 DSN")
	f.Int("database.max_open_conns", defaultCfg.Database.MaxOpenConns, "最大连接数")
}
