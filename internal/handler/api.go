package handler

import (
	"time"

	"github.com/techblog/internal/config"
	"github.com/techblog/internal/metrics"
	"github.com/techblog/internal/security"
	"github.com/techblog/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	analytics analyticsProvider
	posts     *service.PostService
	auth      *service.AuthService
	tokens    *security.TokenManager
	metrics   *metrics.Metrics
	version   string
	now       func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, cfg config.AppConfig, m *metrics.Metrics) *API {
	registerJSONFieldNames()

	return &API{
		db:        gdb,
		analytics: service.NewAnalyticsService(gdb),
		posts:     service.NewPostService(gdb),
		auth:      service.NewAuthService(gdb),
		tokens:    security.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiration),
		metrics:   m,
		version:   cfg.Version,
		now:       time.Now,
	}
}
