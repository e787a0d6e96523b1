package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/techblog/internal/db"
	"github.com/techblog/internal/service"
	"gorm.io/gorm"
)

var demoPosts = []struct {
	title   string
	slug    string
	excerpt string
	content string
}{
	{
		title:   "使用Go语言构建高性能Web服务",
		slug:    "go-web-services",
		excerpt: "探索如何使用Go语言构建高性能的Web服务，包括框架选择和性能优化。",
		content: "## 为什么是 Go\n\nGo语言因其出色的并发性能和简洁的语法，成为构建高性能Web服务的理想选择。\n\n- 框架选择\n- 性能优化\n- 实际案例",
	},
	{
		title:   "SQLite数据库优化实践",
		slug:    "sqlite-tuning",
		excerpt: "分享SQLite数据库的优化实践经验，包括索引优化与查询优化。",
		content: "## 索引\n\nSQLite作为轻量级数据库，在很多场景下都有出色表现。合理的索引能让统计查询保持在毫秒级。",
	},
	{
		title:   "GORM使用技巧与最佳实践",
		slug:    "gorm-tips",
		excerpt: "总结GORM的常用用法和性能优化建议。",
		content: "## Upsert\n\n使用 `clause.OnConflict` 可以在一条语句中完成插入或更新。",
	},
	{
		title:   "Gin框架中间件开发实战",
		slug:    "gin-middleware",
		excerpt: "从链路追踪到访问日志，一步步实现 Gin 中间件。",
		content: "## 中间件链\n\n`c.Next()` 之前的代码在请求进入时执行，之后的代码在响应返回时执行。",
	},
}

var demoUserAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"",
}

var demoReferrers = []string{
	"",
	"https://www.google.com/search?q=golang",
	"https://news.ycombinator.com/",
	"https://twitter.com/someone/status/1",
	"https://www.reddit.com/r/golang/",
}

var demoPaths = []string{"/", "/about", "/posts"}

// seedPosts 写入示例文章，已存在的 slug 会跳过。
func seedPosts(ctx context.Context, gdb *gorm.DB, now time.Time) (int, error) {
	created := 0
	for i, p := range demoPosts {
		var count int64
		if err := gdb.WithContext(ctx).Model(&db.Post{}).Where("slug = ?", p.slug).Count(&count).Error; err != nil {
			return created, fmt.Errorf("check post %s: %w", p.slug, err)
		}
		if count > 0 {
			continue
		}

		publishedAt := now.UTC().AddDate(0, 0, -(i*3 + 1))
		post := db.Post{
			Title:       p.title,
			Slug:        p.slug,
			Excerpt:     p.excerpt,
			Content:     p.content,
			Status:      db.PostStatusPublished,
			PublishedAt: &publishedAt,
		}
		if err := gdb.WithContext(ctx).Create(&post).Error; err != nil {
			return created, fmt.Errorf("create post %s: %w", p.slug, err)
		}
		created++
	}
	return created, nil
}

// seedPageViews 通过 AnalyticsService 写入 perDay*days 条随机访问，使当天之外的统计也有数据。
func seedPageViews(ctx context.Context, svc *service.AnalyticsService, rng *rand.Rand, now time.Time, days, perDay int) (int, error) {
	recorded := 0
	for d := days - 1; d >= 0; d-- {
		day := now.AddDate(0, 0, -d)
		for i := 0; i < perDay; i++ {
			at := day.Add(-time.Duration(rng.IntN(3600)) * time.Second)

			path := demoPaths[rng.IntN(len(demoPaths))]
			if rng.IntN(3) > 0 {
				path = "/posts/" + demoPosts[rng.IntN(len(demoPosts))].slug
			}

			input := service.PageViewInput{
				URLPath:   path,
				Referrer:  demoReferrers[rng.IntN(len(demoReferrers))],
				UserAgent: demoUserAgents[rng.IntN(len(demoUserAgents))],
				SessionID: fmt.Sprintf("demo-%d-%d", d, rng.IntN(perDay+1)),
				IPAddress: fmt.Sprintf("198.51.100.%d", rng.IntN(64)+1),
			}
			if _, err := svc.RecordPageView(ctx, input, at); err != nil {
				return recorded, fmt.Errorf("record demo view: %w", err)
			}
			recorded++
		}
	}
	return recorded, nil
}
