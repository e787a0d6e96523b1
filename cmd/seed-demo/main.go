package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/techblog/internal/config"
	"github.com/techblog/internal/db"
	"github.com/techblog/internal/logger"
	"github.com/techblog/internal/service"
)

// 示例数据生成器
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	days := flag.Int("days", 14, "生成最近多少天的访问记录")
	perDay := flag.Int("per-day", 20, "每天生成的访问记录数")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "随机数种子")
	flag.Parse()

	if err := run(cfg.DatabasePath, *days, *perDay, *seed); err != nil {
		log.Fatal(err)
	}
}

func run(dbPath string, days, perDay int, seed uint64) (err error) {
	gdb, err := db.Open(dbPath, logger.NewGormLogger())
	if err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	defer func() {
		if closeErr := db.Close(gdb); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx := context.Background()
	now := time.Now()

	fmt.Println("开始生成示例数据...")

	if _, err := db.EnsureUser(gdb, "admin", "admin123"); err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}

	posts, err := seedPosts(ctx, gdb, now)
	if err != nil {
		return err
	}
	fmt.Printf("✅ 新建文章 %d 篇\n", posts)

	rng := rand.New(rand.NewPCG(seed, seed>>1))
	views, err := seedPageViews(ctx, service.NewAnalyticsService(gdb), rng, now, days, perDay)
	if err != nil {
		return err
	}
	fmt.Printf("✅ 写入访问记录 %d 条\n", views)

	fmt.Println("示例数据生成完成！")
	fmt.Println("用户: admin (密码: admin123)")
	return nil
}
