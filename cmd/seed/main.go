package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/config"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/repository"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	/**********************************************
	 * 创建 repository 并执行数据库迁移
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Duration(cfg.Database.MigrateTimeout)*time.Second)
	defer cancelMigrate()

	if err := repo.RunMigrations(migrateCtx); err != nil {
		logger.Error("无法执行数据库迁移", "error", err)
		return
	}

	/**********************************************
	 * 插入种子数据
	 **********************************************/
	seed.SeedDemoData(cfg, repo)
}
