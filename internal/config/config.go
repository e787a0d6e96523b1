package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	AppName           string
	Version           string
	ListenAddr        string
	Port              string
	DatabasePath      string
	SessionSecret     string
	JWTSecret         string
	JWTExpiration     time.Duration
	GinMode           string
	CORSOrigins       []string
	TrustedProxies    []string
	LogLevel          string
	LogFormat         string
	SuperRootUserName string
	SuperRootPassword string
}

// Load 从环境变量（以及可选的 configs/config.yaml）读取应用配置，并为缺失项提供安全的默认值。
// 配置只在进程启动时构造一次，之后以值的形式传递给各组件。
func Load() (AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "Tech Blog API")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_PATH", "techblog.db")
	v.SetDefault("SESSION_SECRET", "techblog-dev-secret")
	v.SetDefault("JWT_SECRET", "techblog-dev-jwt-secret")
	v.SetDefault("JWT_EXPIRATION_HOURS", 24)
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	port := strings.TrimSpace(v.GetString("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(v.GetString("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	expirationHours := v.GetInt("JWT_EXPIRATION_HOURS")
	if expirationHours <= 0 {
		expirationHours = 24
	}

	return AppConfig{
		AppName:           strings.TrimSpace(v.GetString("APP_NAME")),
		Version:           strings.TrimSpace(v.GetString("APP_VERSION")),
		ListenAddr:        listenAddr,
		Port:              port,
		DatabasePath:      strings.TrimSpace(v.GetString("DATABASE_PATH")),
		SessionSecret:     strings.TrimSpace(v.GetString("SESSION_SECRET")),
		JWTSecret:         strings.TrimSpace(v.GetString("JWT_SECRET")),
		JWTExpiration:     time.Duration(expirationHours) * time.Hour,
		GinMode:           strings.TrimSpace(v.GetString("GIN_MODE")),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
		TrustedProxies:    splitList(v.GetString("TRUSTED_PROXIES")),
		LogLevel:          strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:         strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		SuperRootUserName: strings.TrimSpace(v.GetString("SUPER_ROOT_USER_NAME")),
		SuperRootPassword: strings.TrimSpace(v.GetString("SUPER_ROOT_PASSWORD")),
	}, nil
}

// splitList 将逗号分隔的字符串拆分为去空白后的非空项。
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		items = append(items, trimmed)
	}
	return items
}
