package main

import (
	"flag"
	"fmt"
	"os"

	"mailboard/backend/internal/auth"
	"mailboard/backend/internal/config"
	"mailboard/backend/internal/storage/hybrid"
)

// 运维命令：直连数据库创建用户，跳过 HTTP 注册接口。
func main() {
	username := flag.String("username", "", "用户名")
	password := flag.String("password", "", "密码")
	email := flag.String("email", "", "邮箱（可选）")
	name := flag.String("name", "", "显示名称（可选）")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "用法: create-user -username <name> -password <pass> [-email <addr>] [-name <display>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		fmt.Fprintln(os.Stderr, "未配置数据库 (设置 MAILBOARD_DATABASE_TYPE 与 MAILBOARD_DATABASE_DSN)")
		os.Exit(1)
	}

	store, err := hybrid.NewStore(
		cfg.Database.Type, cfg.Database.DSN,
		cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化存储失败: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	user, err := auth.NewService(store).Register(auth.RegisterInput{
		Username: *username,
		Password: *password,
		Email:    *email,
		Name:     *name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建用户失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("用户已创建: %s (%s)\n", user.Username, user.ID)
}
