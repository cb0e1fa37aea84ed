package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	// 	校验Addr格式(必须是 ":port" 或 "ip:port")
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	// 	用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	if strings.ContainsAny(h.MetricsPath, " \t\r\n") {
		return fmt.Errorf("server.metrics_path %q contains whitespace", h.MetricsPath)
	}
	switch h.MetricsPath {
	case "/", "/health":
		return fmt.Errorf("server.metrics_path %q collides with a built-in endpoint", h.MetricsPath)
	}
	return nil
}
