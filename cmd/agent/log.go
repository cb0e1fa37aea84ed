package agent

import (
	"github.com/spf13/cobra"
)

func initLogFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	d := defaultCfg.Log

	f.String("log.level", d.Level, "日志级别 [debug,info,warn,error]")
	f.String("log.format", d.Format, "stdout 日志格式 [console,json]，文件始终为 json")
	f.String("log.path", d.Path, "日志目录，文件名 netbox-metrics-YYYYmmdd.log")
	f.Int("log.max_size", d.MaxSize, "单个日志文件达到该大小（MB）后轮转")
	f.Int("log.max_backup", d.MaxBackup, "保留的日志文件个数（log.max_age 为 0 时生效）")
	f.Int("log.max_age", d.MaxAge, "日志文件保留天数")
}
