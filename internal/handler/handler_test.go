package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/techblog/internal/config"
	"github.com/techblog/internal/db"
	"github.com/techblog/internal/metrics"
	"github.com/techblog/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type analyticsStub struct {
	recordInput  service.PageViewInput
	recordCalled bool
	recordErr    error
	recordPanic  bool
	device       string

	days          int
	popularLimit  int
	referrerLimit int
	rollupErr     error
}

func (s *analyticsStub) RecordPageView(_ context.Context, input service.PageViewInput, now time.Time) (*db.PageView, error) {
	s.recordCalled = true
	s.recordInput = input
	if s.recordPanic {
		panic("unexpected nil pointer")
	}
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	device := s.device
	return &db.PageView{URLPath: input.URLPath, DeviceType: &device, CreatedAt: now}, nil
}

func (s *analyticsStub) Overview(context.Context, time.Time) (service.Overview, error) {
	return service.Overview{TotalViews: 3}, s.rollupErr
}

func (s *analyticsStub) TrafficSeries(_ context.Context, _ time.Time, days int) ([]service.TrafficPoint, error) {
	s.days = days
	return make([]service.TrafficPoint, days), s.rollupErr
}

func (s *analyticsStub) PopularPosts(_ context.Context, limit int) ([]service.PostPerformance, error) {
	s.popularLimit = limit
	return []service.PostPerformance{}, s.rollupErr
}

func (s *analyticsStub) DeviceStats(context.Context) ([]service.DeviceStat, error) {
	return []service.DeviceStat{{DeviceType: db.DeviceMobile, Count: 1, Percentage: 100}}, s.rollupErr
}

func (s *analyticsStub) ReferrerStats(_ context.Context, limit int) ([]service.ReferrerStat, error) {
	s.referrerLimit = limit
	return []service.ReferrerStat{}, s.rollupErr
}

func (s *analyticsStub) Dashboard(_ context.Context, _ time.Time, days, popularLimit, referrerLimit int) (service.Dashboard, error) {
	s.days = days
	s.popularLimit = popularLimit
	s.referrerLimit = referrerLimit
	return service.Dashboard{}, s.rollupErr
}

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close(gdb)
	})
	return gdb
}

func newTestAPI(t *testing.T) (*API, *gorm.DB) {
	t.Helper()

	gdb := setupHandlerTestDB(t)
	cfg := config.AppConfig{
		Version:       "test",
		JWTSecret:     "test-jwt-secret",
		JWTExpiration: time.Hour,
	}
	api := NewAPI(gdb, cfg, metrics.New())
	api.now = func() time.Time { return fixedNow }
	return api, gdb
}

func newTestEngine(api *API) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(sessions.Sessions("techblog_session", cookie.NewStore([]byte("test-session-secret"))))

	r.GET("/api/health", api.HealthCheck)
	r.POST("/api/auth/login", api.Login)
	r.GET("/api/posts/:slug", api.GetPost)
	r.POST("/api/posts/:slug/like", api.LikePost)
	r.POST("/api/analytics/track", api.TrackPageView)

	auth := r.Group("/api")
	auth.Use(api.AuthRequired())
	auth.POST("/auth/logout", api.Logout)
	auth.GET("/auth/me", api.Me)

	admin := auth.Group("/analytics/admin")
	admin.GET("/overview", api.GetOverview)
	admin.GET("/traffic", api.GetTraffic)
	admin.GET("/popular-posts", api.GetPopularPosts)
	admin.GET("/device-stats", api.GetDeviceStats)
	admin.GET("/referrer-stats", api.GetReferrerStats)
	admin.GET("/dashboard", api.GetDashboard)

	return r
}

func performJSON(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func bearerToken(t *testing.T, api *API, userID uint) map[string]string {
	t.Helper()
	token, err := api.tokens.Generate(userID, "admin")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}
