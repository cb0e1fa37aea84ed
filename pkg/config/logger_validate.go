package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
)

// Validate 日志配置校验：tag 之外再确认级别能被 zap 解析、日志目录可创建
func (l *ZapLogConfig) Validate() error {
	if err := valid.Struct(l); err != nil {
		return fmt.Errorf("日志配置字段非法: %w", err)
	}
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("log.level invalid, got %s: %w", l.Level, err)
	}
	if l.MaxAge == 0 && l.MaxBackup == 0 {
		return fmt.Errorf("log.max_age and log.max_backup cannot both be 0 (logs would never be removed)")
	}
	abs, err := filepath.Abs(l.Path)
	if err != nil {
		return fmt.Errorf("log.path failed to parse the log path, got %s: %w", l.Path, err)
	}
	if err := ensureDir(abs); err != nil {
		return fmt.Errorf("log.path the log directory is not writable, got %s: %w", l.Path, err)
	}
	return nil
}

// ensureDir 目录不存在时创建
func ensureDir(path string) error {
	stat, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(path, 0o755)
	case err != nil:
		return err
	case !stat.IsDir():
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
