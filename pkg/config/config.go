package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// EnvPrefix 环境变量前缀（NETBOX_METRICS_SERVER_ADDR -> server.addr）
const EnvPrefix = "NETBOX_METRICS"

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server" comment:"HTTP服务配置"`
	Log        ZapLogConfig     `yaml:"log" mapstructure:"log" comment:"日志配置"`
	AppMetrics AppMetricsConfig `yaml:"app_metrics" mapstructure:"app_metrics" comment:"应用指标采集配置"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis" comment:"RQ 队列所在的 Redis"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database" comment:"NetBox 数据库"`
}

// ServerConfig HTTP服务配置（超时统一为time.Duration，支持"30s"解析）
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
	MetricsPath  string        `yaml:"metrics_path" mapstructure:"metrics_path" validate:"required,startswith=/" comment:"指标暴露路径"`
}

// Models 应用名 -> 模型名 -> 是否计数。nil 表示未配置（不启用模型计数），空 map 表示已配置。
type Models map[string]map[string]bool

// AppMetricsConfig 每个采集周期读取一次的采集开关。缺省的开关一律视为关闭。
type AppMetricsConfig struct {
	Queues          bool     `yaml:"queues" mapstructure:"queues" comment:"是否采集 RQ 队列"`
	Reports         bool     `yaml:"reports" mapstructure:"reports" comment:"是否采集报告执行结果"`
	Models          Models   `yaml:"models" mapstructure:"models" comment:"按模型计数，出现即启用"`
	Extras          []string `yaml:"extras" mapstructure:"extras" validate:"dive,required" comment:"按名称引用的内置生产者"`
	MetricsFolder   string   `yaml:"metrics_folder" mapstructure:"metrics_folder" comment:"动态生产者目录"`
	IsolateFailures bool     `yaml:"isolate_failures" mapstructure:"isolate_failures" comment:"单个生产者失败不影响整体"`
}

// RedisConfig RQ 使用的 Redis
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port" comment:"ip:port，为空则不采集队列"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db" validate:"gte=0"`
}

// DatabaseConfig NetBox 数据库（报告和模型计数使用）
type DatabaseConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver" validate:"required,oneof=pgx postgres sqlite" comment:"pgx/postgres/sqlite"`
	DSN          string `yaml:"dsn" mapstructure:"dsn" comment:"为空则不采集报告和模型"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns" validate:"gte=0"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error dpanic panic fatal" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"console"`
	Path      string `yaml:"path" mapstructure:"path" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" validate:"gte=0" comment:"日志文件最大备份数（max_age 为 0 时生效）" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

// DefaultModels 与原插件 default_settings 一致
func DefaultModels() Models {
	return Models{
		"dcim": {"Site": true, "Rack": true, "Device": true},
		"ipam": {"IPAddress": true, "Prefix": true},
	}
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "0.0.0.0:8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MetricsPath:  "/api/plugins/metrics-ext/app-metrics",
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "console",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
		},
		AppMetrics: AppMetricsConfig{
			Queues:  true,
			Reports: true,
			Models:  DefaultModels(),
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Database: DatabaseConfig{
			Driver:       "pgx",
			DSN:          "postgres://netbox@127.0.0.1:5432/netbox?sslmode=disable",
			MaxOpenConns: 4,
		},
	}
}

// LoadConfigWithCli 加载配置（Flags + YAML + ENV），支持 time.Duration
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg, _, err := loadWithCli(cmd)
	return cfg, err
}

func loadWithCli(cmd *cobra.Command) (*Config, *viper.Viper, error) {
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 绑定环境变量 ENV -> Viper
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := decode(v, configFile)
	if err != nil {
		return nil, nil, err
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, v, nil
}

// decode 解码反序列化到结构体。配置文件里出现 app_metrics 时整体替换默认值，
// 与原插件 PLUGINS_CONFIG 覆盖 default_settings 的行为一致。
func decode(v *viper.Viper, configFile string) (*Config, error) {
	cfg := NewDefaultConfig()
	fileHasAppMetrics := v.InConfig("app_metrics")
	if fileHasAppMetrics {
		cfg.AppMetrics = AppMetricsConfig{}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// viper 会把键名转成小写，模型名需要从原始文件读取以保留大小写
	if fileHasAppMetrics {
		models, present, err := readModels(configFile)
		if err != nil {
			return nil, err
		}
		switch {
		case present:
			cfg.AppMetrics.Models = models
		case v.IsSet("app_metrics.models"):
			if cfg.AppMetrics.Models == nil {
				cfg.AppMetrics.Models = Models{}
			}
		default:
			cfg.AppMetrics.Models = nil
		}
	}
	return cfg, nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	// 	1,校验Server服务配置
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	// 	3，校验采集配置
	if err := c.AppMetrics.Validate(); err != nil {
		return err
	}
	// 	4，采集开关依赖的后端
	if c.AppMetrics.Queues && c.Redis.Addr == "" {
		return fmt.Errorf("app_metrics.queues requires redis.addr")
	}
	if (c.AppMetrics.Reports || c.AppMetrics.Models != nil) && c.Database.DSN == "" {
		return fmt.Errorf("app_metrics.reports/models require database.dsn")
	}
	return nil
}
