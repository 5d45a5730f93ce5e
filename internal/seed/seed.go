package seed

import (
	"log/slog"

	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/config"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/repository"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/utils"
)

// SeedDemoData 往数据库里插入随机的用户和笔记，方便本地开发
func SeedDemoData(cfg *config.Config, r *repository.Repository) {
	for i := 0; i < cfg.Seed.UserCount; i++ {
		user, err := utils.GenerateRandomUser(cfg.Seed.UserPassword)
		if err != nil {
			slog.Error("生成随机用户失败", "error", err)
			return
		}

		if err := r.CreateUser(user); err != nil {
			// 随机用户名可能撞上唯一索引，跳过即可
			slog.Warn("插入用户失败", "username", user.Username, "error", err)
			continue
		}

		for j := 0; j < cfg.Seed.NotesPerUser; j++ {
			note := utils.GenerateRandomNote(user.ID)
			if err := r.CreateNote(note); err != nil {
				slog.Warn("插入笔记失败", "title", note.Title, "error", err)
			}
		}
	}

	slog.Info("种子数据插入完成")
}
