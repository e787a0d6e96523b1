package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/techblog/internal/db"
	"gorm.io/gorm"
)

const (
	maxURLPathLength     = 500
	recentActivityWindow = 7 * 24 * time.Hour
)

// ErrInvalidPageView 表示访问记录缺少必要字段或字段超长。
var ErrInvalidPageView = errors.New("invalid page view")

// AnalyticsService 负责记录页面访问并按需计算站点统计。
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService 创建 AnalyticsService。
func NewAnalyticsService(gdb *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: gdb}
}

// PageViewInput 描述一次待记录的页面访问。
// PostID 仅为兼容前端负载而保留，关联文章始终由 URLPath 推导。
type PageViewInput struct {
	PostID    *uint
	URLPath   string
	Referrer  string
	UserAgent string
	SessionID string
	IPAddress string
}

// Overview 汇总全站访问与文章数据。
type Overview struct {
	TotalViews          int64   `json:"total_views"`
	TotalUniqueVisitors int64   `json:"total_unique_visitors"`
	TotalPosts          int64   `json:"total_posts"`
	TotalPublishedPosts int64   `json:"total_published_posts"`
	ViewsToday          int64   `json:"views_today"`
	VisitorsToday       int64   `json:"visitors_today"`
	MostPopularPost     *string `json:"most_popular_post"`
	RecentActivityCount int64   `json:"recent_activity_count"`
}

// TrafficPoint 表示某一天的访问量。
type TrafficPoint struct {
	Date           string `json:"date"`
	Views          int64  `json:"views"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// PostPerformance 描述热门文章的统计信息。
type PostPerformance struct {
	PostID      uint       `json:"post_id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	TotalViews  int64      `json:"total_views"`
	UniqueViews int64      `json:"unique_views"`
	PublishedAt *time.Time `json:"published_at"`
}

// DeviceStat 描述某类设备的访问量及占比。
type DeviceStat struct {
	DeviceType string  `json:"device_type"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ReferrerStat 描述某个来源域名的访问量及占比。
type ReferrerStat struct {
	Referrer   string  `json:"referrer"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Dashboard 聚合后台分析页所需的全部数据。
type Dashboard struct {
	Overview      Overview          `json:"overview"`
	TrafficData   []TrafficPoint    `json:"traffic_data"`
	PopularPosts  []PostPerformance `json:"popular_posts"`
	DeviceStats   []DeviceStat      `json:"device_stats"`
	ReferrerStats []ReferrerStat    `json:"referrer_stats"`
}

// RecordPageView 写入一条访问记录，并重算当天的站点统计。
func (s *AnalyticsService) RecordPageView(ctx context.Context, input PageViewInput, now time.Time) (*db.PageView, error) {
	urlPath := strings.TrimSpace(input.URLPath)
	if urlPath == "" || len(urlPath) > maxURLPathLength {
		return nil, ErrInvalidPageView
	}

	gdb := s.db.WithContext(ctx)

	device := ClassifyDevice(input.UserAgent)
	view := db.PageView{
		URLPath:    urlPath,
		IPAddress:  optionalString(input.IPAddress),
		UserAgent:  optionalString(input.UserAgent),
		Referrer:   optionalString(input.Referrer),
		SessionID:  optionalString(input.SessionID),
		DeviceType: &device,
		CreatedAt:  now.UTC(),
	}

	if slug, ok := ExtractPostSlug(urlPath); ok {
		var post db.Post
		err := gdb.Select("id").Where("slug = ?", slug).First(&post).Error
		switch {
		case err == nil:
			view.PostID = &post.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("lookup post by slug: %w", err)
		}
	}

	if err := gdb.Create(&view).Error; err != nil {
		return nil, fmt.Errorf("insert page view: %w", err)
	}

	if _, err := s.RecomputeDailyStatistic(ctx, now); err != nil {
		return &view, err
	}

	return &view, nil
}

// RecomputeDailyStatistic 基于原始访问记录整体重算 now 所在日期的统计并写回。
// 计数与写回在同一条 INSERT ... SELECT 语句中完成，SQLite 对写语句串行执行，
// 因此并发写入时最后一次重算总能看到此前提交的全部访问。
func (s *AnalyticsService) RecomputeDailyStatistic(ctx context.Context, now time.Time) (*db.SiteStatistic, error) {
	gdb := s.db.WithContext(ctx)
	start, end := dayBounds(now)
	date := now.Format(db.StatDateLayout)
	stamp := now.UTC()

	views := gdb.Model(&db.PageView{}).
		Select("COUNT(*)").
		Where("created_at >= ? AND created_at < ?", start, end)
	visitors := gdb.Model(&db.PageView{}).
		Select("COUNT(DISTINCT ip_address)").
		Where("ip_address IS NOT NULL AND created_at >= ? AND created_at < ?", start, end)
	publishedToday := gdb.Model(&db.Post{}).
		Select("COUNT(*)").
		Where("status = ? AND published_at >= ? AND published_at < ?", db.PostStatusPublished, start, end)
	publishedTotal := gdb.Model(&db.Post{}).
		Select("COUNT(*)").
		Where("status = ?", db.PostStatusPublished)

	// WHERE true 消除 INSERT ... SELECT 与 ON CONFLICT 之间的语法歧义。
	if err := gdb.Exec(`INSERT INTO site_statistics
		(date, total_views, unique_visitors, posts_published, total_posts, created_at, updated_at)
		SELECT ?, (?), (?), (?), (?), ?, ? WHERE true
		ON CONFLICT(date) DO UPDATE SET
			total_views = excluded.total_views,
			unique_visitors = excluded.unique_visitors,
			posts_published = excluded.posts_published,
			total_posts = excluded.total_posts,
			updated_at = excluded.updated_at`,
		date, views, visitors, publishedToday, publishedTotal, stamp, stamp,
	).Error; err != nil {
		return nil, fmt.Errorf("upsert site statistic: %w", err)
	}

	var stat db.SiteStatistic
	if err := gdb.Where("date = ?", date).First(&stat).Error; err != nil {
		return nil, fmt.Errorf("load site statistic: %w", err)
	}
	return &stat, nil
}

// Overview 汇总全站访问量、今日数据与最热门文章。
func (s *AnalyticsService) Overview(ctx context.Context, now time.Time) (Overview, error) {
	gdb := s.db.WithContext(ctx)
	var overview Overview

	if err := gdb.Model(&db.PageView{}).Count(&overview.TotalViews).Error; err != nil {
		return overview, err
	}

	total, err := s.distinctVisitors(gdb, nil, nil)
	if err != nil {
		return overview, err
	}
	overview.TotalUniqueVisitors = total

	if err := gdb.Model(&db.Post{}).Count(&overview.TotalPosts).Error; err != nil {
		return overview, err
	}
	if err := gdb.Model(&db.Post{}).
		Where("status = ?", db.PostStatusPublished).
		Count(&overview.TotalPublishedPosts).Error; err != nil {
		return overview, err
	}

	start, end := dayBounds(now)
	if err := gdb.Model(&db.PageView{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&overview.ViewsToday).Error; err != nil {
		return overview, err
	}
	today, err := s.distinctVisitors(gdb, &start, &end)
	if err != nil {
		return overview, err
	}
	overview.VisitorsToday = today

	var top []struct {
		Title string
	}
	if err := gdb.Table("posts").
		Select("posts.title AS title").
		Joins("JOIN page_views ON page_views.post_id = posts.id").
		Where("posts.deleted_at IS NULL").
		Group("posts.id, posts.title").
		Order("COUNT(page_views.id) DESC").
		Limit(1).
		Scan(&top).Error; err != nil {
		return overview, err
	}
	if len(top) > 0 {
		title := top[0].Title
		overview.MostPopularPost = &title
	}

	if err := gdb.Model(&db.PageView{}).
		Where("created_at >= ?", now.Add(-recentActivityWindow).UTC()).
		Count(&overview.RecentActivityCount).Error; err != nil {
		return overview, err
	}

	return overview, nil
}

// TrafficSeries 返回截至 now 所在日期（含）的最近 days 天访问量，按日期升序。
// 每天单独查询一次 PV 与 UV。
func (s *AnalyticsService) TrafficSeries(ctx context.Context, now time.Time, days int) ([]TrafficPoint, error) {
	if days <= 0 {
		return []TrafficPoint{}, nil
	}

	gdb := s.db.WithContext(ctx)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	points := make([]TrafficPoint, 0, days)

	for offset := days - 1; offset >= 0; offset-- {
		day := today.AddDate(0, 0, -offset)
		start, end := dayBounds(day)

		point := TrafficPoint{Date: day.Format(db.StatDateLayout)}
		if err := gdb.Model(&db.PageView{}).
			Where("created_at >= ? AND created_at < ?", start, end).
			Count(&point.Views).Error; err != nil {
			return nil, err
		}

		visitors, err := s.distinctVisitors(gdb, &start, &end)
		if err != nil {
			return nil, err
		}
		point.UniqueVisitors = visitors

		points = append(points, point)
	}

	return points, nil
}

// PopularPosts 返回按总浏览量降序排列的已发布文章。
func (s *AnalyticsService) PopularPosts(ctx context.Context, limit int) ([]PostPerformance, error) {
	if limit <= 0 {
		return []PostPerformance{}, nil
	}

	var rows []PostPerformance
	if err := s.db.WithContext(ctx).Table("posts").
		Select("posts.id AS post_id, posts.title, posts.slug, posts.published_at, "+
			"COUNT(page_views.id) AS total_views, COUNT(DISTINCT page_views.ip_address) AS unique_views").
		Joins("JOIN page_views ON page_views.post_id = posts.id").
		Where("posts.status = ? AND posts.deleted_at IS NULL", db.PostStatusPublished).
		Group("posts.id, posts.title, posts.slug, posts.published_at").
		Order("total_views DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	if rows == nil {
		rows = []PostPerformance{}
	}
	return rows, nil
}

// DeviceStats 统计各设备类型的访问量及占比。
func (s *AnalyticsService) DeviceStats(ctx context.Context) ([]DeviceStat, error) {
	var rows []struct {
		DeviceType string
		Count      int64
	}
	if err := s.db.WithContext(ctx).Model(&db.PageView{}).
		Select("device_type, COUNT(id) AS count").
		Where("device_type IS NOT NULL").
		Group("device_type").
		Order("count DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	var total int64
	for _, row := range rows {
		total += row.Count
	}

	stats := make([]DeviceStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, DeviceStat{
			DeviceType: row.DeviceType,
			Count:      row.Count,
			Percentage: percentage(row.Count, total),
		})
	}
	return stats, nil
}

// ReferrerStats 按来源域名统计访问量，返回前 limit 个。
// 同一域名的不同来源 URL 会合并计数；占比的分母为所有带来源的访问。
func (s *AnalyticsService) ReferrerStats(ctx context.Context, limit int) ([]ReferrerStat, error) {
	if limit <= 0 {
		return []ReferrerStat{}, nil
	}

	gdb := s.db.WithContext(ctx)

	var rows []struct {
		Referrer string
		Count    int64
	}
	if err := gdb.Model(&db.PageView{}).
		Select("referrer, COUNT(id) AS count").
		Where("referrer IS NOT NULL AND referrer <> ''").
		Group("referrer").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	var total int64
	if err := gdb.Model(&db.PageView{}).
		Where("referrer IS NOT NULL AND referrer <> ''").
		Count(&total).Error; err != nil {
		return nil, err
	}

	merged := make(map[string]int64, len(rows))
	for _, row := range rows {
		merged[CleanReferrer(row.Referrer)] += row.Count
	}

	stats := make([]ReferrerStat, 0, len(merged))
	for domain, count := range merged {
		stats = append(stats, ReferrerStat{
			Referrer:   domain,
			Count:      count,
			Percentage: percentage(count, total),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Referrer < stats[j].Referrer
	})

	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// Dashboard 组合概览、趋势、热门文章、设备与来源统计。
func (s *AnalyticsService) Dashboard(ctx context.Context, now time.Time, days, popularLimit, referrerLimit int) (Dashboard, error) {
	var dashboard Dashboard
	var err error

	if dashboard.Overview, err = s.Overview(ctx, now); err != nil {
		return dashboard, fmt.Errorf("overview: %w", err)
	}
	if dashboard.TrafficData, err = s.TrafficSeries(ctx, now, days); err != nil {
		return dashboard, fmt.Errorf("traffic: %w", err)
	}
	if dashboard.PopularPosts, err = s.PopularPosts(ctx, popularLimit); err != nil {
		return dashboard, fmt.Errorf("popular posts: %w", err)
	}
	if dashboard.DeviceStats, err = s.DeviceStats(ctx); err != nil {
		return dashboard, fmt.Errorf("device stats: %w", err)
	}
	if dashboard.ReferrerStats, err = s.ReferrerStats(ctx, referrerLimit); err != nil {
		return dashboard, fmt.Errorf("referrer stats: %w", err)
	}

	return dashboard, nil
}

// distinctVisitors 统计区间内不同 IP 的数量，start/end 为空时统计全部。
func (s *AnalyticsService) distinctVisitors(gdb *gorm.DB, start, end *time.Time) (int64, error) {
	query := gdb.Model(&db.PageView{}).Where("ip_address IS NOT NULL")
	if start != nil && end != nil {
		query = query.Where("created_at >= ? AND created_at < ?", *start, *end)
	}

	var count int64
	if err := query.Distinct("ip_address").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
