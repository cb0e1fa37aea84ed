package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netbox-metrics/cmd/server"
	"github.com/netbox-metrics/pkg/config"
	"github.com/netbox-metrics/pkg/logger"
	"github.com/netbox-metrics/pkg/producers"
	"github.com/netbox-metrics/pkg/signal"
	"github.com/netbox-metrics/pkg/util"
)

const (
	projectName     = "netbox-metrics"
	shutdownTimeout = 5 * time.Second
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     projectName,
	Short:   "Prometheus exporter for NetBox application metrics (RQ queues, reports, model counts)",
	Version: producers.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, settings, err := config.WatchConfigWithCli(cmd, onReload)
		if err != nil {
			// 统一输出错误到 stderr，不返回给 cobra
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if err := runServer(cmd.Context(), cfg, settings); err != nil {
			fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "配置文件路径")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initLogFlags(rootCmd)
	initAppFlags(rootCmd)
}

func runServer(ctx context.Context, cfg *config.Config, settings *config.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	util.PrintBanner(os.Stdout, projectName, producers.Version, "blue")

	zl, err := logger.InitLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()
	logger.SetDefaultCollector("app")
	logger.Info("configuration loaded",
		zap.String("config", cfgFile),
		zap.String("log_path", cfg.Log.Path),
		zap.String("log_level", cfg.Log.Level))

	registry, cleanup, err := newPromRegistry(ctx, cfg, settings)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := server.NewHTTPServer(&cfg.Server, zl, registry)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("start HTTP server failed: %w", err)
	}

	return signal.WaitForShutdown(ctx, zl, shutdownTimeout, func(ctx context.Context) error {
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown HTTP server failed: %w", err)
		}
		logger.Info("all services shutdown successfully")
		return nil
	})
}

// onReload 配置文件热更新结果，只影响 app_metrics
func onReload(app *config.AppMetricsConfig, err error) {
	if err != nil {
		logger.Error("config reload rejected, keeping previous app_metrics", zap.Error(err))
		return
	}
	logger.Info("app_metrics reloaded",
		zap.Bool("queues", app.Queues),
		zap.Bool("reports", app.Reports),
		zap.Bool("models", app.ModelsEnabled()),
		zap.Strings("extras", app.Extras),
		zap.String("metrics_folder", app.MetricsFolder))
}
