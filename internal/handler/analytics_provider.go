package handler

import (
	"context"
	"time"

	"github.com/techblog/internal/db"
	"github.com/techblog/internal/service"
)

type analyticsProvider interface {
	RecordPageView(ctx context.Context, input service.PageViewInput, now time.Time) (*db.PageView, error)
	Overview(ctx context.Context, now time.Time) (service.Overview, error)
	TrafficSeries(ctx context.Context, now time.Time, days int) ([]service.TrafficPoint, error)
	PopularPosts(ctx context.Context, limit int) ([]service.PostPerformance, error)
	DeviceStats(ctx context.Context) ([]service.DeviceStat, error)
	ReferrerStats(ctx context.Context, limit int) ([]service.ReferrerStat, error)
	Dashboard(ctx context.Context, now time.Time, days, popularLimit, referrerLimit int) (service.Dashboard, error)
}
