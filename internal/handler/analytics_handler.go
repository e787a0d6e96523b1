package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/techblog/internal/metrics"
	"github.com/techblog/internal/service"
)

const (
	defaultTrafficDays   = 30
	maxTrafficDays       = 365
	defaultPopularLimit  = 10
	maxPopularLimit      = 50
	defaultReferrerLimit = 10
	maxReferrerLimit     = 20
)

type trackRequest struct {
	PostID    *uint  `json:"post_id"`
	URLPath   string `json:"url_path" binding:"required,max=500"`
	Referrer  string `json:"referrer"`
	SessionID string `json:"session_id"`
}

// TrackPageView 记录一次页面访问。
// 访问统计失败不应影响前台页面，因此无论成功与否都返回 200，由 status 字段区分结果。
func (a *API) TrackPageView(c *gin.Context) {
	ctx := c.Request.Context()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "record page view panicked", slog.Any("panic", r))
			if !c.Writer.Written() {
				a.trackFailed(c)
			}
		}
	}()

	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "page view rejected", slog.String("reason", bindFailureReason(err)))
		a.trackFailed(c)
		return
	}

	view, err := a.analytics.RecordPageView(ctx, service.PageViewInput{
		PostID:    req.PostID,
		URLPath:   req.URLPath,
		Referrer:  req.Referrer,
		UserAgent: c.GetHeader("User-Agent"),
		SessionID: req.SessionID,
		IPAddress: c.ClientIP(),
	}, a.now())
	if err != nil {
		slog.ErrorContext(ctx, "record page view failed",
			slog.String("url_path", req.URLPath),
			slog.Any("error", err),
		)
		a.trackFailed(c)
		return
	}

	device := ""
	if view != nil && view.DeviceType != nil {
		device = *view.DeviceType
	}
	a.metrics.ObserveIngest(metrics.IngestSuccess, device)

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Page view recorded"})
}

func (a *API) trackFailed(c *gin.Context) {
	a.metrics.ObserveIngest(metrics.IngestError, "")
	c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Failed to record page view"})
}

func bindFailureReason(err error) string {
	if detail := validationMessage(err); detail != "" {
		return detail
	}
	return err.Error()
}

// GetOverview 返回全站概览。
func (a *API) GetOverview(c *gin.Context) {
	overview, err := a.analytics.Overview(c.Request.Context(), a.now())
	if err != nil {
		a.rollupFailed(c, "overview", err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// GetTraffic 返回最近 days 天的逐日访问量。
func (a *API) GetTraffic(c *gin.Context) {
	days := clampQueryInt(c, "days", defaultTrafficDays, 1, maxTrafficDays)

	points, err := a.analytics.TrafficSeries(c.Request.Context(), a.now(), days)
	if err != nil {
		a.rollupFailed(c, "traffic", err)
		return
	}
	c.JSON(http.StatusOK, points)
}

// GetPopularPosts 返回按访问量排序的已发布文章。
func (a *API) GetPopularPosts(c *gin.Context) {
	limit := clampQueryInt(c, "limit", defaultPopularLimit, 1, maxPopularLimit)

	posts, err := a.analytics.PopularPosts(c.Request.Context(), limit)
	if err != nil {
		a.rollupFailed(c, "popular posts", err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetDeviceStats 返回设备类型分布。
func (a *API) GetDeviceStats(c *gin.Context) {
	stats, err := a.analytics.DeviceStats(c.Request.Context())
	if err != nil {
		a.rollupFailed(c, "device stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetReferrerStats 返回来源域名排行。
func (a *API) GetReferrerStats(c *gin.Context) {
	limit := clampQueryInt(c, "limit", defaultReferrerLimit, 1, maxReferrerLimit)

	stats, err := a.analytics.ReferrerStats(c.Request.Context(), limit)
	if err != nil {
		a.rollupFailed(c, "referrer stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetDashboard 一次性返回后台分析页所需的全部数据。
func (a *API) GetDashboard(c *gin.Context) {
	days := clampQueryInt(c, "days", defaultTrafficDays, 1, maxTrafficDays)

	dashboard, err := a.analytics.Dashboard(c.Request.Context(), a.now(), days, defaultPopularLimit, defaultReferrerLimit)
	if err != nil {
		a.rollupFailed(c, "dashboard", err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (a *API) rollupFailed(c *gin.Context, name string, err error) {
	c.Error(err)
	slog.ErrorContext(c.Request.Context(), "analytics rollup failed",
		slog.String("rollup", name),
		slog.Any("error", err),
	)
	respondError(c, http.StatusInternalServerError, "Failed to load "+name)
}
