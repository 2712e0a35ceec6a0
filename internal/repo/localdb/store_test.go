package localdb

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"go-markethub/internal/domain"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "markethub.db"),
		domain.SeedAdmin{Email: "admin@markethub.local", PasswordHash: "x"},
		zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func mustUser(t *testing.T, s *Store, email, name string) *domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), &domain.User{Email: email, Name: name})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func mustCategory(t *testing.T, s *Store, name, slug string) *domain.Category {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), &domain.Category{Name: name, Slug: slug, Active: true})
	if err != nil {
		t.Fatalf("create category %s: %v", slug, err)
	}
	return c
}

func mustProduct(t *testing.T, s *Store, catID, name string, price float64, stock int) *domain.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), &domain.Product{
		Name: name, Price: price, Stock: stock, CategoryID: catID,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func mustJobCategory(t *testing.T, s *Store, name, slug string) *domain.JobCategory {
	t.Helper()
	c, err := s.CreateJobCategory(context.Background(), &domain.JobCategory{Name: name, Slug: slug, Active: true})
	if err != nil {
		t.Fatalf("create job category %s: %v", slug, err)
	}
	return c
}

func TestSeedIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.Seed(ctx); err != nil {
			t.Fatalf("seed run %d: %v", i+1, err)
		}
	}
	cats, err := s.ListCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(cats), len(domain.SeedCategories()); got != want {
		t.Fatalf("categories after double seed = %d, want %d", got, want)
	}
	admin, err := s.UserByEmail(ctx, "admin@markethub.local")
	if err != nil {
		t.Fatal(err)
	}
	if admin == nil || admin.Role != domain.RoleAdmin {
		t.Fatalf("seeded admin missing or wrong role: %+v", admin)
	}
}

func TestFindAbsentReturnsNilNil(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	p, err := s.ProductByID(ctx, "nope")
	if err != nil || p != nil {
		t.Fatalf("ProductByID absent = (%v, %v), want (nil, nil)", p, err)
	}
	u, err := s.UserByEmail(ctx, "ghost@example.com")
	if err != nil || u != nil {
		t.Fatalf("UserByEmail absent = (%v, %v), want (nil, nil)", u, err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	mustUser(t, s, "a@example.com", "A")
	_, err := s.CreateUser(ctx, &domain.User{Email: "A@Example.com", Name: "Dup"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate email err = %v, want ErrConflict", err)
	}
}

func TestProductRatingAggregate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Electronics", "electronics")
	p := mustProduct(t, s, cat.ID, "Headphones", 59.99, 10)
	u := mustUser(t, s, "buyer@example.com", "Buyer")

	r1, err := s.CreateReview(ctx, &domain.Review{ProductID: p.ID, UserID: u.ID, Rating: 5})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateReview(ctx, &domain.Review{ProductID: p.ID, UserID: u.ID, Rating: 3}); err != nil {
		t.Fatal(err)
	}
	got, err := s.ProductByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReviewCount != 2 || math.Abs(got.AverageRating-4.0) > 1e-9 {
		t.Fatalf("after 5,3: avg=%v count=%d, want 4.0/2", got.AverageRating, got.ReviewCount)
	}

	if err := s.DeleteReview(ctx, r1.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.ProductByID(ctx, p.ID)
	if got.ReviewCount != 1 || math.Abs(got.AverageRating-3.0) > 1e-9 {
		t.Fatalf("after delete: avg=%v count=%d, want 3.0/1", got.AverageRating, got.ReviewCount)
	}

	// 全量重算与增量维护结果一致
	rec, err := s.RecomputeProductRating(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ReviewCount != got.ReviewCount || rec.AverageRating != got.AverageRating {
		t.Fatalf("recompute drifted: %v/%d vs %v/%d",
			rec.AverageRating, rec.ReviewCount, got.AverageRating, got.ReviewCount)
	}

	_, err = s.CreateReview(ctx, &domain.Review{ProductID: p.ID, UserID: u.ID, Rating: 6})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("rating 6 err = %v, want ErrValidation", err)
	}
}

func TestCartStockClamp(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Books", "books")
	p := mustProduct(t, s, cat.ID, "Novel", 12.00, 3)
	u := mustUser(t, s, "reader@example.com", "Reader")

	c, err := s.AddCartItem(ctx, u.ID, p.ID, 5)
	if !errors.Is(err, domain.ErrStockLimit) {
		t.Fatalf("over-stock add err = %v, want ErrStockLimit", err)
	}
	if c == nil || c.Item(p.ID) == nil || c.Item(p.ID).Quantity != 3 {
		t.Fatalf("clamped cart = %+v, want quantity 3", c)
	}
	// 钳位值已持久化
	c, err = s.CartByUser(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if it := c.Item(p.ID); it == nil || it.Quantity != 3 {
		t.Fatalf("persisted cart item = %+v, want quantity 3", c.Items)
	}
}

func TestCartFrozenUnitPrice(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Fashion", "fashion")
	p := mustProduct(t, s, cat.ID, "Scarf", 20.00, 10)
	u := mustUser(t, s, "shopper@example.com", "Shopper")

	if _, err := s.AddCartItem(ctx, u.ID, p.ID, 1); err != nil {
		t.Fatal(err)
	}
	p.Price = 35.00
	if err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatal(err)
	}
	c, err := s.CartByUser(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if it := c.Item(p.ID); it == nil || it.UnitPrice != 20.00 {
		t.Fatalf("unit price = %+v, want frozen 20.00", c.Items)
	}
}

func TestCheckoutClearsCartAndMovesStock(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Sports", "sports")
	p := mustProduct(t, s, cat.ID, "Ball", 9.50, 8)
	u := mustUser(t, s, "fan@example.com", "Fan")

	if _, err := s.AddCartItem(ctx, u.ID, p.ID, 2); err != nil {
		t.Fatal(err)
	}
	o, err := s.CreateOrder(ctx, &domain.Order{
		UserID: u.ID,
		Items:  []domain.OrderItem{{ProductID: p.ID, Quantity: 2, UnitPrice: 9.50, Name: p.Name}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != domain.OrderPending || math.Abs(o.Total-19.00) > 1e-9 {
		t.Fatalf("order = %+v, want pending / 19.00", o)
	}
	c, _ := s.CartByUser(ctx, u.ID)
	if len(c.Items) != 0 {
		t.Fatalf("cart not cleared after checkout: %+v", c.Items)
	}
	got, _ := s.ProductByID(ctx, p.ID)
	if got.Stock != 6 || got.Purchases != 2 {
		t.Fatalf("stock/purchases = %d/%d, want 6/2", got.Stock, got.Purchases)
	}
	if err := s.UpdateOrderStatus(ctx, o.ID, "teleported"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bogus status err = %v, want ErrValidation", err)
	}
}

func TestCategoryDeleteBlockedWhileReferenced(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Home", "home")
	p := mustProduct(t, s, cat.ID, "Lamp", 25.00, 4)

	if err := s.DeleteCategory(ctx, cat.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("referenced delete err = %v, want ErrConflict", err)
	}
	if got, _ := s.CategoryByID(ctx, cat.ID); got == nil {
		t.Fatal("category vanished after refused delete")
	}
	if err := s.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("delete after unreferenced: %v", err)
	}
}

func TestProductDeleteReleasesBlobs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Electronics", "electronics")
	p := mustProduct(t, s, cat.ID, "Camera", 199.00, 2)

	for _, id := range []string{"blob-main", "blob-side"} {
		if err := s.PutBlob(ctx, id, []byte("jpeg-bytes")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetPrimaryImage(ctx, p.ID, "blob-main"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddProductImage(ctx, p.ID, "blob-side"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"blob-main", "blob-side"} {
		if _, err := s.GetBlob(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("blob %s after product delete err = %v, want ErrNotFound", id, err)
		}
	}
	// 删除商品是可重入清理的一部分，blob 再删一次不报错
	if err := s.DeleteBlob(ctx, "blob-main"); err != nil {
		t.Fatalf("repeat blob delete: %v", err)
	}
}

func TestWishlistToggleSemantics(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Books", "books")
	p := mustProduct(t, s, cat.ID, "Atlas", 30.00, 5)
	u := mustUser(t, s, "collector@example.com", "Collector")

	changed, err := s.ToggleWishlist(ctx, u.ID, p.ID, true)
	if err != nil || !changed {
		t.Fatalf("first add = (%v, %v), want (true, nil)", changed, err)
	}
	changed, err = s.ToggleWishlist(ctx, u.ID, p.ID, true)
	if err != nil || changed {
		t.Fatalf("repeat add = (%v, %v), want (false, nil)", changed, err)
	}
	list, err := s.WishlistProducts(ctx, u.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("wishlist = %v (err %v), want one product", list, err)
	}

	// 商品删除后悬空项被读取端过滤
	if err := s.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	list, err = s.WishlistProducts(ctx, u.ID)
	if err != nil || len(list) != 0 {
		t.Fatalf("wishlist after product delete = %v (err %v), want empty", list, err)
	}
}

func TestJobLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	jc := mustJobCategory(t, s, "Delivery", "delivery")
	creator := mustUser(t, s, "poster@example.com", "Poster")
	worker := mustUser(t, s, "worker@example.com", "Worker")

	j, err := s.CreateJob(ctx, &domain.Job{
		Title: "Move boxes", CategoryID: jc.ID, CreatedByID: creator.ID, Compensation: 40,
	})
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != domain.JobOpen || j.ExpiresAt.IsZero() {
		t.Fatalf("new job = %+v, want open with expiry", j)
	}

	if _, err := s.AcceptJob(ctx, j.ID, creator.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("self-accept err = %v, want ErrValidation", err)
	}
	j, err = s.AcceptJob(ctx, j.ID, worker.ID)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != domain.JobAccepted || j.AcceptedByID != worker.ID || j.AcceptedAt == nil {
		t.Fatalf("accepted job = %+v", j)
	}
	if _, err := s.AcceptJob(ctx, j.ID, worker.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("double accept err = %v, want ErrConflict", err)
	}
	if err := s.DeleteJob(ctx, j.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("delete accepted job err = %v, want ErrConflict", err)
	}

	j, err = s.CompleteJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != domain.JobCompleted {
		t.Fatalf("status = %s, want completed", j.Status)
	}
	w, _ := s.UserByID(ctx, worker.ID)
	if w.Stats.JobsCompleted != 1 {
		t.Fatalf("worker stats = %+v, want one completed job", w.Stats)
	}
	if !containsBadge(w.Stats.Badges, domain.BadgeFirstJobDone) {
		t.Fatalf("badges = %v, want %s", w.Stats.Badges, domain.BadgeFirstJobDone)
	}
}

func TestJobReviewOncePerSide(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	jc := mustJobCategory(t, s, "Repairs", "repairs")
	creator := mustUser(t, s, "owner@example.com", "Owner")
	worker := mustUser(t, s, "fixer@example.com", "Fixer")

	j, err := s.CreateJob(ctx, &domain.Job{Title: "Fix faucet", CategoryID: jc.ID, CreatedByID: creator.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateJobReview(ctx, &domain.JobReview{JobID: j.ID, ReviewerID: creator.ID, Rating: 5}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("review before completion err = %v, want ErrConflict", err)
	}
	if _, err := s.AcceptJob(ctx, j.ID, worker.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CompleteJob(ctx, j.ID); err != nil {
		t.Fatal(err)
	}

	r, err := s.CreateJobReview(ctx, &domain.JobReview{JobID: j.ID, ReviewerID: creator.ID, Rating: 5})
	if err != nil {
		t.Fatal(err)
	}
	if r.RevieweeID != worker.ID {
		t.Fatalf("reviewee = %s, want worker %s", r.RevieweeID, worker.ID)
	}
	if _, err := s.CreateJobReview(ctx, &domain.JobReview{JobID: j.ID, ReviewerID: creator.ID, Rating: 4}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second review same side err = %v, want ErrConflict", err)
	}
	if _, err := s.CreateJobReview(ctx, &domain.JobReview{JobID: j.ID, ReviewerID: worker.ID, Rating: 4}); err != nil {
		t.Fatalf("other side review: %v", err)
	}

	got, _ := s.JobByID(ctx, j.ID)
	if !got.CreatorReviewed || !got.AcceptorReviewed {
		t.Fatalf("reviewed flags = %+v", got)
	}
	w, _ := s.UserByID(ctx, worker.ID)
	if w.Stats.JobReviewCount != 1 || w.Stats.AverageJobRating != 5.0 {
		t.Fatalf("worker stats = %+v, want 1 review avg 5.0", w.Stats)
	}
	if !containsBadge(w.Stats.Badges, domain.BadgeTopRated) {
		t.Fatalf("badges = %v, want %s", w.Stats.Badges, domain.BadgeTopRated)
	}
}

func TestChatPartyOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	jc := mustJobCategory(t, s, "Tutoring", "tutoring")
	creator := mustUser(t, s, "student@example.com", "Student")
	worker := mustUser(t, s, "tutor@example.com", "Tutor")
	stranger := mustUser(t, s, "lurker@example.com", "Lurker")

	j, _ := s.CreateJob(ctx, &domain.Job{Title: "Math lessons", CategoryID: jc.ID, CreatedByID: creator.ID})
	if _, err := s.AcceptJob(ctx, j.ID, worker.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.SendChatMessage(ctx, &domain.ChatMessage{JobID: j.ID, SenderID: stranger.ID, Text: "hi"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("stranger send err = %v, want ErrValidation", err)
	}
	if _, err := s.SendChatMessage(ctx, &domain.ChatMessage{JobID: j.ID, SenderID: worker.ID, Text: "When do we start?"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ChatMessages(ctx, j.ID, stranger.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("stranger read err = %v, want ErrValidation", err)
	}
	ms, err := s.ChatMessages(ctx, j.ID, creator.ID)
	if err != nil || len(ms) != 1 {
		t.Fatalf("party read = %v (err %v), want one message", ms, err)
	}

	// 完成后聊天只读
	if _, err := s.CompleteJob(ctx, j.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SendChatMessage(ctx, &domain.ChatMessage{JobID: j.ID, SenderID: worker.ID, Text: "late"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("send after completion err = %v, want ErrConflict", err)
	}
	if ms, err := s.ChatMessages(ctx, j.ID, worker.ID); err != nil || len(ms) != 1 {
		t.Fatalf("read after completion = %v (err %v)", ms, err)
	}
}

func TestExpireJobsSweep(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	jc := mustJobCategory(t, s, "Cleaning", "cleaning")
	u := mustUser(t, s, "host@example.com", "Host")

	old, err := s.CreateJob(ctx, &domain.Job{
		Title: "Spring cleaning", CategoryID: jc.ID, CreatedByID: u.ID,
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := s.CreateJob(ctx, &domain.Job{Title: "Window wash", CategoryID: jc.ID, CreatedByID: u.ID})
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.ExpireJobs(ctx, time.Now().UTC())
	if err != nil || n != 1 {
		t.Fatalf("expire sweep = (%d, %v), want (1, nil)", n, err)
	}
	if j, _ := s.JobByID(ctx, old.ID); j.Status != domain.JobExpired {
		t.Fatalf("old job status = %s, want expired", j.Status)
	}
	if j, _ := s.JobByID(ctx, fresh.ID); j.Status != domain.JobOpen {
		t.Fatalf("fresh job status = %s, want open", j.Status)
	}
	// 再扫一遍没有新增
	if n, _ := s.ExpireJobs(ctx, time.Now().UTC()); n != 0 {
		t.Fatalf("second sweep = %d, want 0", n)
	}
}

func TestActivityLogNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := domain.WithActor(context.Background(), domain.Actor{ID: "tester", Role: domain.RoleAdmin})
	cat := mustCategory(t, s, "Electronics", "electronics")
	p := mustProduct(t, s, cat.ID, "Charger", 15.00, 3)
	p.Price = 18.00
	if err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatal(err)
	}

	logs, err := s.ListActivity(ctx, domain.ActivityFilter{EntityType: domain.ColProducts})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) < 2 {
		t.Fatalf("got %d product logs, want at least 2", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].CreatedAt.After(logs[i-1].CreatedAt) {
			t.Fatalf("logs not newest-first at %d: %v before %v", i, logs[i-1].CreatedAt, logs[i].CreatedAt)
		}
	}
	if logs[0].Action != domain.ActionProductUpdate {
		t.Fatalf("latest action = %s, want product.update", logs[0].Action)
	}

	got, err := s.ListActivity(ctx, domain.ActivityFilter{EntityType: domain.ColProducts, Limit: 1})
	if err != nil || len(got) != 1 {
		t.Fatalf("limited list = %v (err %v), want single entry", got, err)
	}
}

func TestListInsertionOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Books", "books")
	var want []string
	for _, name := range []string{"First", "Second", "Third"} {
		p := mustProduct(t, s, cat.ID, name, 10, 1)
		want = append(want, p.ID)
		time.Sleep(2 * time.Millisecond) // 创建时间毫秒级，保证可区分
	}
	got, err := s.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d products, want 3", len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d = %s, want %s", i, got[i].ID, want[i])
		}
	}
}

func containsBadge(badges []string, b string) bool {
	for _, v := range badges {
		if v == b {
			return true
		}
	}
	return false
}
