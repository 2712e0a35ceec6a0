// Package datasource 维护"当前激活后端"这一份进程级状态。
// 切换动作：校验目标配置 → 打开并播种目标 → 原子换入 → 关旧 → 落盘
// 模式文件。模式文件存在两个存储之外，重启后据此恢复上次的选择。
package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"go-markethub/internal/core/config"
	"go-markethub/internal/domain"
	"go-markethub/internal/notify"
	"go-markethub/internal/repo/localdb"
	"go-markethub/internal/repo/mongodb"
	"go-markethub/pkg/utils"
)

type Selector struct {
	mu      sync.RWMutex
	current domain.DataService
	mode    string

	cfg *config.Config
	log *zap.Logger
	bus *notify.Bus
}

func New(cfg *config.Config, log *zap.Logger, bus *notify.Bus) *Selector {
	return &Selector{cfg: cfg, log: log, bus: bus}
}

// Start 恢复模式文件里的选择（没有则用配置缺省），打开并播种该后端
func (s *Selector) Start(ctx context.Context) error {
	mode := s.cfg.DataSource.Mode
	if persisted := s.readModeFile(); persisted != "" {
		mode = persisted
	}
	if mode == "" {
		mode = domain.KindLocal
	}
	return s.Use(ctx, mode)
}

// Current 返回当前激活后端。启动完成后永不为 nil。
func (s *Selector) Current() domain.DataService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Mode 当前激活的后端类型
func (s *Selector) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Use 切换到目标后端。重复切到当前模式是 no-op。
// 目标打开或播种失败时保持原后端不变，错误原样上抛。
func (s *Selector) Use(ctx context.Context, mode string) error {
	mode = strings.TrimSpace(strings.ToLower(mode))
	if mode != domain.KindLocal && mode != domain.KindRemote {
		return domain.Validationf("unknown data source %q", mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.mode == mode {
		return nil
	}

	next, err := s.open(ctx, mode)
	if err != nil {
		return err
	}
	// 暴露给调用方之前先保证基线数据就位
	if err := next.Seed(ctx); err != nil {
		_ = next.Close(ctx)
		return err
	}

	old := s.current
	s.current = next
	s.mode = mode
	if old != nil {
		if err := old.Close(ctx); err != nil {
			s.log.Warn("closing previous backend", zap.Error(err))
		}
	}
	s.writeModeFile(mode)
	s.log.Info("data source switched", zap.String("mode", mode))

	if old != nil {
		actor := domain.ActorFrom(ctx)
		err := next.AppendActivity(ctx, &domain.ActivityLog{
			ID:          utils.NewID(),
			ActorID:     actor.ID,
			ActorEmail:  actor.Email,
			ActorRole:   actor.Role,
			Action:      domain.ActionDataSource,
			EntityType:  "datasource",
			EntityID:    mode,
			Description: fmt.Sprintf("Data source switched to %s", mode),
		})
		if err != nil {
			s.log.Warn("recording switch activity", zap.Error(err))
		}
	}
	return nil
}

func (s *Selector) open(ctx context.Context, mode string) (domain.DataService, error) {
	admin := s.seedAdmin()
	switch mode {
	case domain.KindRemote:
		if s.cfg.Mongo.URI == "" {
			return nil, fmt.Errorf("%w: remote data source is not configured", domain.ErrStorageUnavailable)
		}
		return mongodb.Open(ctx, s.cfg.Mongo.URI, s.cfg.Mongo.Database, admin, s.log, s.bus)
	default:
		return localdb.Open(s.cfg.Local.Path, admin, s.log, s.bus)
	}
}

func (s *Selector) seedAdmin() domain.SeedAdmin {
	admin := domain.SeedAdmin{Email: s.cfg.Seed.AdminEmail}
	if s.cfg.Seed.AdminPassword != "" {
		admin.PasswordHash = utils.HashPassword(s.cfg.Seed.AdminPassword)
	}
	return admin
}

// Close 关闭当前后端，进程退出用
func (s *Selector) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	err := s.current.Close(ctx)
	s.current = nil
	return err
}

// 模式文件读写都是尽力而为：文件丢了退回配置缺省即可

func (s *Selector) readModeFile() string {
	raw, err := os.ReadFile(s.cfg.DataSource.ModeFile)
	if err != nil {
		return ""
	}
	mode := strings.TrimSpace(string(raw))
	if mode != domain.KindLocal && mode != domain.KindRemote {
		return ""
	}
	return mode
}

func (s *Selector) writeModeFile(mode string) {
	path := s.cfg.DataSource.ModeFile
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.log.Warn("mode file dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, []byte(mode+"\n"), 0o644); err != nil {
		s.log.Warn("persisting data source mode", zap.Error(err))
	}
}
