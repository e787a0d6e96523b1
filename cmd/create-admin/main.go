package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/techblog/internal/config"
	"github.com/techblog/internal/db"
	"github.com/techblog/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if err := run(os.Args[1:], cfg, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run 解析参数并创建管理员，数据库连接在返回前关闭。
func run(args []string, cfg config.AppConfig, out io.Writer) (err error) {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	username := fs.String("username", firstNonEmpty(cfg.SuperRootUserName, "admin"), "管理员用户名")
	password := fs.String("password", cfg.SuperRootPassword, "管理员密码")
	dbPath := fs.String("db", cfg.DatabasePath, "SQLite 数据库路径")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		return errors.New("必须通过 -password 或 SUPER_ROOT_PASSWORD 提供密码")
	}

	// 初始化数据库
	gdb, err := db.Open(*dbPath, logger.NewGormLogger())
	if err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	defer func() {
		if closeErr := db.Close(gdb); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	created, err := db.EnsureUser(gdb, *username, *password)
	if err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}
	if !created {
		fmt.Fprintf(out, "用户 %s 已存在，无需初始化\n", *username)
		return nil
	}

	fmt.Fprintln(out, "管理员用户创建成功")
	fmt.Fprintln(out, "用户名:", *username)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
