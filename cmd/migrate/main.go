package main

import (
	"fmt"
	"os"

	"mailboard/backend/internal/config"
	"mailboard/backend/internal/storage/postgres"
)

// 独立的数据库迁移命令，便于在部署流水线中执行。
// 建表语义与服务启动时的自动迁移相同，重复执行是幂等的。
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		fmt.Fprintln(os.Stderr, "未配置数据库，无需迁移 (设置 MAILBOARD_DATABASE_TYPE 与 MAILBOARD_DATABASE_DSN)")
		os.Exit(1)
	}

	var store *postgres.Store
	switch cfg.Database.Type {
	case "mysql":
		store, err = postgres.NewMySQLStore(cfg.Database.DSN)
	case "postgres", "postgresql":
		store, err = postgres.NewStore(cfg.Database.DSN)
	default:
		fmt.Fprintf(os.Stderr, "不支持的数据库类型: %s\n", cfg.Database.Type)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "连接数据库失败: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("数据库迁移完成")
}
