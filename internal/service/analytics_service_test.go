package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techblog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	windowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

func setupAnalyticsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:analytics-%d?mode=memory&cache=shared", time.Now().UnixNano())
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

func createPublishedPost(t *testing.T, gdb *gorm.DB, slug string, publishedAt time.Time) db.Post {
	t.Helper()

	post := db.Post{
		Title:       "Title " + slug,
		Slug:        slug,
		Content:     "# " + slug,
		Status:      db.PostStatusPublished,
		PublishedAt: &publishedAt,
	}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	return post
}

func recordView(t *testing.T, svc *AnalyticsService, input PageViewInput, now time.Time) *db.PageView {
	t.Helper()

	view, err := svc.RecordPageView(context.Background(), input, now)
	if err != nil {
		t.Fatalf("record page view failed: %v", err)
	}
	return view
}

func TestRecordPageViewAttachesPostBySlug(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	post := createPublishedPost(t, gdb, "hello-world", now.AddDate(0, 0, -3))

	matched := recordView(t, svc, PageViewInput{URLPath: "/posts/hello-world", IPAddress: "1.1.1.1", UserAgent: iphoneUA}, now)
	require.NotNil(t, matched.PostID)
	assert.Equal(t, post.ID, *matched.PostID)
	require.NotNil(t, matched.DeviceType)
	assert.Equal(t, "mobile", *matched.DeviceType)

	missing := recordView(t, svc, PageViewInput{URLPath: "/posts/no-such-post", IPAddress: "1.1.1.1"}, now)
	assert.Nil(t, missing.PostID)
	require.NotNil(t, missing.DeviceType)
	assert.Equal(t, "unknown", *missing.DeviceType)

	other := recordView(t, svc, PageViewInput{URLPath: "/about", UserAgent: windowsUA}, now)
	assert.Nil(t, other.PostID)
	assert.Nil(t, other.IPAddress)
	assert.Equal(t, "desktop", *other.DeviceType)
}

func TestRecordPageViewIgnoresPayloadPostID(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	post := createPublishedPost(t, gdb, "real", now)
	bogus := post.ID + 100

	view := recordView(t, svc, PageViewInput{PostID: &bogus, URLPath: "/"}, now)
	assert.Nil(t, view.PostID)
}

func TestRecordPageViewRejectsInvalidPath(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Now()

	_, err := svc.RecordPageView(context.Background(), PageViewInput{URLPath: "  "}, now)
	assert.ErrorIs(t, err, ErrInvalidPageView)

	long := "/" + strings.Repeat("a", 500)
	_, err = svc.RecordPageView(context.Background(), PageViewInput{URLPath: long}, now)
	assert.ErrorIs(t, err, ErrInvalidPageView)

	var count int64
	require.NoError(t, gdb.Model(&db.PageView{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSiteStatisticMatchesDailyViews(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	createPublishedPost(t, gdb, "today", base.Add(-time.Hour))
	createPublishedPost(t, gdb, "older", base.AddDate(0, 0, -10))

	// 前一天的访问不计入当天统计
	recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: "9.9.9.9"}, base.AddDate(0, 0, -1))

	for i := 0; i < 4; i++ {
		ip := "1.1.1.1"
		if i%2 == 1 {
			ip = "2.2.2.2"
		}
		recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: ip}, base.Add(time.Duration(i)*time.Minute))
	}

	var stat db.SiteStatistic
	require.NoError(t, gdb.Where("date = ?", "2024-06-01").First(&stat).Error)
	assert.Equal(t, int64(4), stat.TotalViews)
	assert.Equal(t, int64(2), stat.UniqueVisitors)
	assert.Equal(t, int64(1), stat.PostsPublished)
	assert.Equal(t, int64(2), stat.TotalPosts)

	// 重复重算不会重复计数
	again, err := svc.RecomputeDailyStatistic(context.Background(), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), again.TotalViews)

	var rows int64
	require.NoError(t, gdb.Model(&db.SiteStatistic{}).Where("date = ?", "2024-06-01").Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	require.NoError(t, gdb.Where("date = ?", "2024-06-01").First(&stat).Error)
	assert.Equal(t, int64(4), stat.TotalViews)
}

func TestOverviewScenario(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	popular := createPublishedPost(t, gdb, "popular", now.AddDate(0, 0, -2))
	createPublishedPost(t, gdb, "quiet", now.AddDate(0, 0, -2))
	draft := db.Post{Title: "Draft", Slug: "draft", Content: "draft", Status: db.PostStatusDraft}
	require.NoError(t, gdb.Create(&draft).Error)

	recordView(t, svc, PageViewInput{URLPath: "/posts/popular", IPAddress: "1.1.1.1"}, now.Add(-2*time.Hour))
	recordView(t, svc, PageViewInput{URLPath: "/posts/popular", IPAddress: "1.1.1.1"}, now.Add(-time.Hour))
	recordView(t, svc, PageViewInput{URLPath: "/posts/quiet", IPAddress: "2.2.2.2"}, now.Add(-30*time.Minute))

	overview, err := svc.Overview(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, int64(3), overview.TotalViews)
	assert.Equal(t, int64(2), overview.TotalUniqueVisitors)
	assert.Equal(t, int64(3), overview.TotalPosts)
	assert.Equal(t, int64(2), overview.TotalPublishedPosts)
	assert.Equal(t, int64(3), overview.ViewsToday)
	assert.Equal(t, int64(2), overview.VisitorsToday)
	assert.Equal(t, int64(3), overview.RecentActivityCount)
	require.NotNil(t, overview.MostPopularPost)
	assert.Equal(t, popular.Title, *overview.MostPopularPost)
}

func TestOverviewRecentActivityWindow(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: "1.1.1.1"}, now.Add(-8*24*time.Hour))
	recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: "1.1.1.1"}, now.Add(-6*24*time.Hour))
	recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: "3.3.3.3"}, now.Add(-time.Minute))

	overview, err := svc.Overview(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, int64(3), overview.TotalViews)
	assert.Equal(t, int64(2), overview.RecentActivityCount)
	assert.Equal(t, int64(1), overview.ViewsToday)
	assert.Nil(t, overview.MostPopularPost)
}

func TestTrafficSeriesCoversEveryDay(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC)

	recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: "1.1.1.1"}, now.AddDate(0, 0, -6))
	recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: "1.1.1.1"}, now.AddDate(0, 0, -2))
	recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: "2.2.2.2"}, now.AddDate(0, 0, -2).Add(time.Minute))
	recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: "1.1.1.1"}, now)
	// 超出窗口
	recordView(t, svc, PageViewInput{URLPath: "/", IPAddress: "1.1.1.1"}, now.AddDate(0, 0, -7))

	points, err := svc.TrafficSeries(context.Background(), now, 7)
	require.NoError(t, err)
	require.Len(t, points, 7)

	assert.Equal(t, "2024-07-04", points[0].Date)
	assert.Equal(t, "2024-07-10", points[6].Date)
	for i := 1; i < len(points); i++ {
		prev, _ := time.Parse(db.StatDateLayout, points[i-1].Date)
		cur, _ := time.Parse(db.StatDateLayout, points[i].Date)
		assert.Equal(t, prev.AddDate(0, 0, 1), cur, "dates must be consecutive")
	}

	assert.Equal(t, int64(1), points[0].Views)
	assert.Equal(t, int64(0), points[1].Views)
	assert.Equal(t, int64(2), points[4].Views)
	assert.Equal(t, int64(2), points[4].UniqueVisitors)
	assert.Equal(t, int64(1), points[6].Views)
	assert.Equal(t, int64(1), points[6].UniqueVisitors)
}

func TestTrafficSeriesSingleDay(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC)

	points, err := svc.TrafficSeries(context.Background(), now, 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024-07-10", points[0].Date)
	assert.Zero(t, points[0].Views)
}

func TestPopularPostsOnlyPublishedOrderedByViews(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)

	first := createPublishedPost(t, gdb, "first", now.AddDate(0, 0, -5))
	second := createPublishedPost(t, gdb, "second", now.AddDate(0, 0, -5))
	createPublishedPost(t, gdb, "unseen", now.AddDate(0, 0, -5))
	draft := db.Post{Title: "Draft", Slug: "draft", Content: "draft", Status: db.PostStatusDraft}
	require.NoError(t, gdb.Create(&draft).Error)

	for i, ip := range []string{"1.1.1.1", "1.1.1.1", "2.2.2.2"} {
		recordView(t, svc, PageViewInput{URLPath: "/posts/first", IPAddress: ip}, now.Add(time.Duration(i)*time.Second))
	}
	recordView(t, svc, PageViewInput{URLPath: "/posts/second", IPAddress: "3.3.3.3"}, now)
	for i := 0; i < 5; i++ {
		recordView(t, svc, PageViewInput{URLPath: "/posts/draft", IPAddress: "4.4.4.4"}, now)
	}

	posts, err := svc.PopularPosts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, first.ID, posts[0].PostID)
	assert.Equal(t, "first", posts[0].Slug)
	assert.Equal(t, int64(3), posts[0].TotalViews)
	assert.Equal(t, int64(2), posts[0].UniqueViews)
	assert.Equal(t, second.ID, posts[1].PostID)
	assert.Equal(t, int64(1), posts[1].TotalViews)

	limited, err := svc.PopularPosts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].PostID)
}

func TestDeviceStatsPercentages(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)

	empty, err := svc.DeviceStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, empty)

	recordView(t, svc, PageViewInput{URLPath: "/", UserAgent: iphoneUA}, now)
	recordView(t, svc, PageViewInput{URLPath: "/", UserAgent: iphoneUA}, now)
	recordView(t, svc, PageViewInput{URLPath: "/", UserAgent: windowsUA}, now)

	stats, err := svc.DeviceStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "mobile", stats[0].DeviceType)
	assert.Equal(t, int64(2), stats[0].Count)
	assert.Equal(t, 66.67, stats[0].Percentage)
	assert.Equal(t, "desktop", stats[1].DeviceType)
	assert.Equal(t, 33.33, stats[1].Percentage)

	var sum float64
	for _, s := range stats {
		sum += s.Percentage
	}
	assert.LessOrEqual(t, sum, 100.01)
}

func TestReferrerStatsCleansAndMergesDomains(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)

	referrers := []string{
		"https://www.example.com/page",
		"https://example.com/other",
		"https://www.example.com/page",
		"https://news.ycombinator.com/item?id=1",
		"://bad",
		"",
	}
	for _, ref := range referrers {
		recordView(t, svc, PageViewInput{URLPath: "/", Referrer: ref}, now)
	}
	recordView(t, svc, PageViewInput{URLPath: "/"}, now)

	stats, err := svc.ReferrerStats(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	assert.Equal(t, "example.com", stats[0].Referrer)
	assert.Equal(t, int64(3), stats[0].Count)
	assert.Equal(t, 60.0, stats[0].Percentage)

	domains := map[string]int64{}
	var sum float64
	for _, s := range stats {
		domains[s.Referrer] = s.Count
		sum += s.Percentage
	}
	assert.Equal(t, int64(1), domains["news.ycombinator.com"])
	assert.Equal(t, int64(1), domains["Unknown"])
	assert.NotContains(t, domains, "Direct")
	assert.LessOrEqual(t, sum, 100.01)

	top, err := svc.ReferrerStats(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "example.com", top[0].Referrer)
}

func TestReferrerStatsEmpty(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)

	stats, err := svc.ReferrerStats(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestDashboardComposesRollups(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)

	createPublishedPost(t, gdb, "dash", now.AddDate(0, 0, -1))
	recordView(t, svc, PageViewInput{URLPath: "/posts/dash", IPAddress: "1.1.1.1", UserAgent: windowsUA, Referrer: "https://www.google.com/"}, now)

	dashboard, err := svc.Dashboard(context.Background(), now, 14, 10, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(1), dashboard.Overview.TotalViews)
	assert.Len(t, dashboard.TrafficData, 14)
	require.Len(t, dashboard.PopularPosts, 1)
	assert.Equal(t, "dash", dashboard.PopularPosts[0].Slug)
	require.Len(t, dashboard.DeviceStats, 1)
	assert.Equal(t, 100.0, dashboard.DeviceStats[0].Percentage)
	require.Len(t, dashboard.ReferrerStats, 1)
	assert.Equal(t, "google.com", dashboard.ReferrerStats[0].Referrer)
}

func TestRollupsFailWhenDatabaseClosed(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	require.NoError(t, db.Close(gdb))

	_, err := svc.Overview(context.Background(), time.Now())
	assert.Error(t, err)

	_, err = svc.RecordPageView(context.Background(), PageViewInput{URLPath: "/"}, time.Now())
	assert.Error(t, err)
}

func TestConcurrentRecordPageViewConverges(t *testing.T) {
	gdb, err := db.Open(filepath.Join(t.TempDir(), "concurrent.db"), logger.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	svc := NewAnalyticsService(gdb)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	const writers = 50
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RecordPageView(context.Background(), PageViewInput{
				URLPath:   "/",
				IPAddress: fmt.Sprintf("10.0.0.%d", i%10),
			}, now)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var views int64
	require.NoError(t, gdb.Model(&db.PageView{}).Count(&views).Error)
	assert.EqualValues(t, writers, views)

	var stats []db.SiteStatistic
	require.NoError(t, gdb.Where("date = ?", "2024-06-01").Find(&stats).Error)
	require.Len(t, stats, 1)
	assert.EqualValues(t, writers, stats[0].TotalViews)
	assert.EqualValues(t, 10, stats[0].UniqueVisitors)
}
