package mongodb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

// envMongoURI 设置后才跑真库用例，空值跳过
const envMongoURI = "MARKETHUB_TEST_MONGO_URI"

func TestPartialSwallowsAggregateFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := &Store{log: zap.New(core)}

	// 无错不记
	s.partial(domain.ColProducts, "p1", nil)
	if logs.Len() != 0 {
		t.Fatalf("nil aggregate error produced %d log entries", logs.Len())
	}

	injected := errors.New("connection reset by peer")
	s.partial(domain.ColProducts, "p1", injected)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Fatalf("level = %s, want warn", entries[0].Level)
	}
	var logged error
	for _, f := range entries[0].Context {
		if f.Key == "error" {
			logged, _ = f.Interface.(error)
		}
	}
	if logged == nil {
		t.Fatal("warn entry carries no error field")
	}
	var pae *domain.PartialAggregateError
	if !errors.As(logged, &pae) {
		t.Fatalf("logged error %T, want PartialAggregateError", logged)
	}
	if pae.Entity != domain.ColProducts || pae.ID != "p1" {
		t.Fatalf("partial error = %+v", pae)
	}
	if !errors.Is(logged, injected) {
		t.Fatal("logged error lost the driver cause")
	}
}

func TestMapErrFolding(t *testing.T) {
	driver := errors.New("server selection timeout")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"not found passes", fmt.Errorf("%w: product x", domain.ErrNotFound), domain.ErrNotFound},
		{"conflict passes", domain.Conflictf("slug taken"), domain.ErrConflict},
		{"validation passes", domain.Validationf("bad rating"), domain.ErrValidation},
		{"stock limit passes", domain.ErrStockLimit, domain.ErrStockLimit},
		{"driver folds", driver, domain.ErrStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErr(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("mapErr(nil) = %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapErr(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if tt.want != domain.ErrStorageUnavailable && errors.Is(got, domain.ErrStorageUnavailable) {
				t.Fatalf("domain error %v got folded into storage unavailable", tt.in)
			}
		})
	}
}

// openTestStore 连真库，库名随机，用例结束即整库删除
func openTestStore(t *testing.T, ctx context.Context) *Store {
	t.Helper()
	uri := os.Getenv(envMongoURI)
	if uri == "" {
		t.Skipf("%s not set, skipping live backend test", envMongoURI)
	}
	s, err := Open(ctx, uri, "markethub_test_"+utils.NewID(), domain.SeedAdmin{
		Email:        "admin@markethub.local",
		PasswordHash: utils.HashPassword("secret"),
	}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestRemoteReviewAggregateAndReconcile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s := openTestStore(t, ctx)

	if err := s.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// 重播播种应为空操作
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("seed replay: %v", err)
	}

	u, err := s.CreateUser(ctx, &domain.User{Email: "carol@example.com", Name: "Carol"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	cat, err := s.CreateCategory(ctx, &domain.Category{Name: "Mugs", Slug: "mugs", Active: true})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	p, err := s.CreateProduct(ctx, &domain.Product{Name: "Mug", Price: 5, Stock: 3, CategoryID: cat.ID})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	for _, rating := range []int{5, 4} {
		if _, err := s.CreateReview(ctx, &domain.Review{ProductID: p.ID, UserID: u.ID, Rating: rating}); err != nil {
			t.Fatalf("create review %d: %v", rating, err)
		}
	}
	got, err := s.ProductByID(ctx, p.ID)
	if err != nil || got == nil {
		t.Fatalf("product reload = (%v, %v)", got, err)
	}
	if got.AverageRating != 4.5 || got.ReviewCount != 2 {
		t.Fatalf("aggregate = (%v, %d), want (4.5, 2)", got.AverageRating, got.ReviewCount)
	}

	// 人为把聚合写歪，模拟主写成功而聚合写丢失的漂移
	if _, err := s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{
		"$set": bson.M{"average_rating": 1.0, "review_count": 99},
	}); err != nil {
		t.Fatalf("inject drift: %v", err)
	}
	if err := s.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	healed, err := s.ProductByID(ctx, p.ID)
	if err != nil || healed == nil {
		t.Fatalf("product after reconcile = (%v, %v)", healed, err)
	}
	if healed.AverageRating != 4.5 || healed.ReviewCount != 2 {
		t.Fatalf("reconciled aggregate = (%v, %d), want (4.5, 2)", healed.AverageRating, healed.ReviewCount)
	}
}
