package datasource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"go-markethub/internal/core/config"
	"go-markethub/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Local:      config.Local{Path: filepath.Join(dir, "markethub.db")},
		DataSource: config.DataSource{Mode: domain.KindLocal, ModeFile: filepath.Join(dir, "datasource.mode")},
		Seed:       config.Seed{AdminEmail: "admin@markethub.local", AdminPassword: "secret"},
	}
}

func TestStartOpensLocalAndSeeds(t *testing.T) {
	cfg := testConfig(t)
	sel := New(cfg, zap.NewNop(), nil)
	ctx := context.Background()
	if err := sel.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sel.Close(ctx)

	ds := sel.Current()
	if ds == nil || ds.Kind() != domain.KindLocal {
		t.Fatalf("current backend = %v, want local", ds)
	}
	admin, err := ds.UserByEmail(ctx, cfg.Seed.AdminEmail)
	if err != nil || admin == nil {
		t.Fatalf("seeded admin = (%v, %v)", admin, err)
	}
}

func TestUseRejectsUnconfiguredRemote(t *testing.T) {
	cfg := testConfig(t) // Mongo.URI 为空
	sel := New(cfg, zap.NewNop(), nil)
	ctx := context.Background()
	if err := sel.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sel.Close(ctx)

	err := sel.Use(ctx, domain.KindRemote)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("switch to unconfigured remote err = %v, want ErrStorageUnavailable", err)
	}
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("err message lost config cause: %v", err)
	}
	// 失败的切换不得动摇当前后端
	if sel.Mode() != domain.KindLocal || sel.Current() == nil {
		t.Fatalf("selector state after failed switch = %s", sel.Mode())
	}
}

func TestUseRejectsUnknownMode(t *testing.T) {
	sel := New(testConfig(t), zap.NewNop(), nil)
	if err := sel.Use(context.Background(), "cloud"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown mode err = %v, want ErrValidation", err)
	}
}

func TestRepeatUseIsNoop(t *testing.T) {
	sel := New(testConfig(t), zap.NewNop(), nil)
	ctx := context.Background()
	if err := sel.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer sel.Close(ctx)

	before := sel.Current()
	if err := sel.Use(ctx, domain.KindLocal); err != nil {
		t.Fatalf("repeat use: %v", err)
	}
	if sel.Current() != before {
		t.Fatal("repeat switch to same mode replaced the backend")
	}
}

func TestModeFilePersisted(t *testing.T) {
	cfg := testConfig(t)
	sel := New(cfg, zap.NewNop(), nil)
	ctx := context.Background()
	if err := sel.Start(ctx); err != nil {
		t.Fatal(err)
	}
	sel.Close(ctx)

	raw, err := os.ReadFile(cfg.DataSource.ModeFile)
	if err != nil {
		t.Fatalf("mode file missing: %v", err)
	}
	if got := strings.TrimSpace(string(raw)); got != domain.KindLocal {
		t.Fatalf("mode file = %q, want %q", got, domain.KindLocal)
	}

	// 重启后按模式文件恢复
	sel2 := New(cfg, zap.NewNop(), nil)
	if err := sel2.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer sel2.Close(ctx)
	if sel2.Mode() != domain.KindLocal {
		t.Fatalf("restored mode = %s", sel2.Mode())
	}
}
