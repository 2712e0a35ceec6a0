package localdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"go-markethub/internal/derive"
	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

// ---- categories ----

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Slug) == "" {
		return nil, domain.Validationf("category name and slug required")
	}
	err := s.update(func(tx *bolt.Tx) error {
		if dup, e := findCategoryBySlug(tx, c.Slug); e != nil {
			return e
		} else if dup != nil {
			return domain.Conflictf("slug %s taken", c.Slug)
		}
		t := now()
		c.ID = utils.NewID()
		c.CreatedAt, c.UpdatedAt = t, t
		if e := putJSON(tx, domain.ColCategories, c.ID, c); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionCategoryCreate, domain.ColCategories, c.ID,
			derive.DescribeCreate("category", c.Name))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) CategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	var out *domain.Category
	err := s.view(func(tx *bolt.Tx) error {
		v, e := getJSON[domain.Category](tx, domain.ColCategories, id)
		out = v
		return e
	})
	return out, err
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	var out *domain.Category
	err := s.view(func(tx *bolt.Tx) error {
		v, e := findCategoryBySlug(tx, slug)
		out = v
		return e
	})
	return out, err
}

func findCategoryBySlug(tx *bolt.Tx, slug string) (*domain.Category, error) {
	cats, err := allJSON[domain.Category](tx, domain.ColCategories)
	if err != nil {
		return nil, err
	}
	for i := range cats {
		if cats[i].Slug == slug {
			return &cats[i], nil
		}
	}
	return nil, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := s.view(func(tx *bolt.Tx) error {
		cs, e := allJSON[domain.Category](tx, domain.ColCategories)
		out = cs
		return e
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(c domain.Category) time.Time { return c.CreatedAt }, func(c domain.Category) string { return c.ID })
	return out, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	return s.update(func(tx *bolt.Tx) error {
		old, e := getJSON[domain.Category](tx, domain.ColCategories, c.ID)
		if e != nil {
			return e
		}
		if old == nil {
			return fmt.Errorf("%w: category %s", domain.ErrNotFound, c.ID)
		}
		if old.Slug != c.Slug {
			if dup, e2 := findCategoryBySlug(tx, c.Slug); e2 != nil {
				return e2
			} else if dup != nil && dup.ID != c.ID {
				return domain.Conflictf("slug %s taken", c.Slug)
			}
		}
		c.CreatedAt = old.CreatedAt
		c.UpdatedAt = now()
		if e := putJSON(tx, domain.ColCategories, c.ID, c); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionCategoryUpdate, domain.ColCategories, c.ID, "Category updated")
	})
}

// DeleteCategory 仍被商品引用时拒绝，两边均不变更
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		c, e := getJSON[domain.Category](tx, domain.ColCategories, id)
		if e != nil {
			return e
		}
		if c == nil {
			return fmt.Errorf("%w: category %s", domain.ErrNotFound, id)
		}
		products, e := allJSON[domain.Product](tx, domain.ColProducts)
		if e != nil {
			return e
		}
		for _, p := range products {
			if p.CategoryID == id {
				return domain.Conflictf("category %s still referenced by product %s", id, p.ID)
			}
		}
		if e := delKey(tx, domain.ColCategories, id); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionCategoryDelete, domain.ColCategories, id,
			derive.DescribeDelete("category", c.Name))
	})
}

// ---- job categories ----

func (s *Store) CreateJobCategory(ctx context.Context, c *domain.JobCategory) (*domain.JobCategory, error) {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Slug) == "" {
		return nil, domain.Validationf("job category name and slug required")
	}
	err := s.update(func(tx *bolt.Tx) error {
		if dup, e := findJobCategoryBySlug(tx, c.Slug); e != nil {
			return e
		} else if dup != nil {
			return domain.Conflictf("slug %s taken", c.Slug)
		}
		t := now()
		c.ID = utils.NewID()
		c.CreatedAt, c.UpdatedAt = t, t
		if e := putJSON(tx, domain.ColJobCategories, c.ID, c); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionCategoryCreate, domain.ColJobCategories, c.ID,
			derive.DescribeCreate("job category", c.Name))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) JobCategoryByID(ctx context.Context, id string) (*domain.JobCategory, error) {
	var out *domain.JobCategory
	err := s.view(func(tx *bolt.Tx) error {
		v, e := getJSON[domain.JobCategory](tx, domain.ColJobCategories, id)
		out = v
		return e
	})
	return out, err
}

func (s *Store) JobCategoryBySlug(ctx context.Context, slug string) (*domain.JobCategory, error) {
	var out *domain.JobCategory
	err := s.view(func(tx *bolt.Tx) error {
		v, e := findJobCategoryBySlug(tx, slug)
		out = v
		return e
	})
	return out, err
}

func findJobCategoryBySlug(tx *bolt.Tx, slug string) (*domain.JobCategory, error) {
	cats, err := allJSON[domain.JobCategory](tx, domain.ColJobCategories)
	if err != nil {
		return nil, err
	}
	for i := range cats {
		if cats[i].Slug == slug {
			return &cats[i], nil
		}
	}
	return nil, nil
}

func (s *Store) ListJobCategories(ctx context.Context) ([]domain.JobCategory, error) {
	var out []domain.JobCategory
	err := s.view(func(tx *bolt.Tx) error {
		cs, e := allJSON[domain.JobCategory](tx, domain.ColJobCategories)
		out = cs
		return e
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(c domain.JobCategory) time.Time { return c.CreatedAt }, func(c domain.JobCategory) string { return c.ID })
	return out, nil
}

func (s *Store) UpdateJobCategory(ctx context.Context, c *domain.JobCategory) error {
	return s.update(func(tx *bolt.Tx) error {
		old, e := getJSON[domain.JobCategory](tx, domain.ColJobCategories, c.ID)
		if e != nil {
			return e
		}
		if old == nil {
			return fmt.Errorf("%w: job category %s", domain.ErrNotFound, c.ID)
		}
		if old.Slug != c.Slug {
			if dup, e2 := findJobCategoryBySlug(tx, c.Slug); e2 != nil {
				return e2
			} else if dup != nil && dup.ID != c.ID {
				return domain.Conflictf("slug %s taken", c.Slug)
			}
		}
		c.CreatedAt = old.CreatedAt
		c.UpdatedAt = now()
		if e := putJSON(tx, domain.ColJobCategories, c.ID, c); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionCategoryUpdate, domain.ColJobCategories, c.ID, "Job category updated")
	})
}

// DeleteJobCategory 任何状态的工单引用期间均拒绝删除
func (s *Store) DeleteJobCategory(ctx context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		c, e := getJSON[domain.JobCategory](tx, domain.ColJobCategories, id)
		if e != nil {
			return e
		}
		if c == nil {
			return fmt.Errorf("%w: job category %s", domain.ErrNotFound, id)
		}
		jobs, e := allJSON[domain.Job](tx, domain.ColJobs)
		if e != nil {
			return e
		}
		for _, j := range jobs {
			if j.CategoryID == id {
				return domain.Conflictf("job category %s still referenced by job %s", id, j.ID)
			}
		}
		if e := delKey(tx, domain.ColJobCategories, id); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionCategoryDelete, domain.ColJobCategories, id,
			derive.DescribeDelete("job category", c.Name))
	})
}

// ---- products ----

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, domain.Validationf("product name required")
	}
	if p.Price < 0 || p.Stock < 0 {
		return nil, domain.Validationf("price and stock must be non-negative")
	}
	err := s.update(func(tx *bolt.Tx) error {
		if p.CategoryID != "" {
			cat, e := getJSON[domain.Category](tx, domain.ColCategories, p.CategoryID)
			if e != nil {
				return e
			}
			if cat == nil {
				return fmt.Errorf("%w: category %s", domain.ErrNotFound, p.CategoryID)
			}
		}
		t := now()
		p.ID = utils.NewID()
		p.CreatedAt, p.UpdatedAt = t, t
		p.Views, p.Purchases, p.ReviewCount = 0, 0, 0
		p.AverageRating = 0
		if e := putJSON(tx, domain.ColProducts, p.ID, p); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionProductCreate, domain.ColProducts, p.ID,
			derive.DescribeCreate("product", p.Name))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var out *domain.Product
	err := s.view(func(tx *bolt.Tx) error {
		v, e := getJSON[domain.Product](tx, domain.ColProducts, id)
		out = v
		return e
	})
	return out, err
}

func (s *Store) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	var out []domain.Product
	err := s.view(func(tx *bolt.Tx) error {
		ps, e := allJSON[domain.Product](tx, domain.ColProducts)
		if e != nil {
			return e
		}
		needle := strings.ToLower(strings.TrimSpace(f.Search))
		for _, p := range ps {
			if f.CategoryID != "" && p.CategoryID != f.CategoryID {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) &&
				!strings.Contains(strings.ToLower(p.Description), needle) {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(p domain.Product) time.Time { return p.CreatedAt }, func(p domain.Product) string { return p.ID })
	return out, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if p.Price < 0 || p.Stock < 0 {
		return domain.Validationf("price and stock must be non-negative")
	}
	return s.update(func(tx *bolt.Tx) error {
		old, e := getJSON[domain.Product](tx, domain.ColProducts, p.ID)
		if e != nil {
			return e
		}
		if old == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, p.ID)
		}
		if p.CategoryID != "" && p.CategoryID != old.CategoryID {
			cat, e2 := getJSON[domain.Category](tx, domain.ColCategories, p.CategoryID)
			if e2 != nil {
				return e2
			}
			if cat == nil {
				return fmt.Errorf("%w: category %s", domain.ErrNotFound, p.CategoryID)
			}
		}
		// 派生计数与图片集不走通用更新
		p.Views, p.Purchases = old.Views, old.Purchases
		p.AverageRating, p.ReviewCount = old.AverageRating, old.ReviewCount
		p.PrimaryImageID, p.ImageIDs = old.PrimaryImageID, old.ImageIDs
		p.CreatedAt = old.CreatedAt
		p.UpdatedAt = now()
		if e := putJSON(tx, domain.ColProducts, p.ID, p); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionProductUpdate, domain.ColProducts, p.ID,
			derive.DescribeProductChange(old, p))
	})
}

// DeleteProduct 先释放全部图片 blob（按 id 幂等），再删除商品本体，
// 同时清掉专属从属数据（评论、购物车条目）。收藏里的悬垂引用由
// 读取端过滤。
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, id)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
		}
		for _, blobID := range p.AllImageIDs() {
			if e := tx.Bucket([]byte(domain.ColBlobs)).Delete([]byte(blobID)); e != nil {
				return e
			}
		}
		reviews, e := allJSON[domain.Review](tx, domain.ColReviews)
		if e != nil {
			return e
		}
		for _, r := range reviews {
			if r.ProductID == id {
				if e := delKey(tx, domain.ColReviews, r.ID); e != nil {
					return e
				}
			}
		}
		carts, e := allJSON[domain.Cart](tx, domain.ColCarts)
		if e != nil {
			return e
		}
		for _, c := range carts {
			if dropCartProduct(&c, id) {
				c.UpdatedAt = now()
				if e := putJSON(tx, domain.ColCarts, c.UserID, c); e != nil {
					return e
				}
			}
		}
		if e := delKey(tx, domain.ColProducts, id); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionProductDelete, domain.ColProducts, id,
			derive.DescribeDelete("product", p.Name))
	})
}

func dropCartProduct(c *domain.Cart, productID string) bool {
	changed := false
	filter := func(items []domain.CartItem) []domain.CartItem {
		out := items[:0]
		for _, it := range items {
			if it.ProductID == productID {
				changed = true
				continue
			}
			out = append(out, it)
		}
		return out
	}
	c.Items = filter(c.Items)
	c.SavedForLater = filter(c.SavedForLater)
	return changed
}

// ---- product images ----

// SetPrimaryImage 替换主图：旧 blob 若未被附图集引用则释放
func (s *Store) SetPrimaryImage(ctx context.Context, productID, blobID string) error {
	return s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, productID)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		old := p.PrimaryImageID
		p.PrimaryImageID = blobID
		if old != "" && old != blobID && !contains(p.ImageIDs, old) {
			if e := tx.Bucket([]byte(domain.ColBlobs)).Delete([]byte(old)); e != nil {
				return e
			}
		}
		p.UpdatedAt = now()
		return putJSON(tx, domain.ColProducts, productID, p)
	})
}

// AddProductImage 附图集合语义：重复加入为 no-op
func (s *Store) AddProductImage(ctx context.Context, productID, blobID string) error {
	if blobID == "" {
		return domain.Validationf("blob id required")
	}
	return s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, productID)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		if contains(p.ImageIDs, blobID) {
			return nil
		}
		p.ImageIDs = append(p.ImageIDs, blobID)
		p.UpdatedAt = now()
		return putJSON(tx, domain.ColProducts, productID, p)
	})
}

// RemoveProductImage 移出集合并释放 blob；blob 已被带外删除时幂等
func (s *Store) RemoveProductImage(ctx context.Context, productID, blobID string) error {
	return s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, productID)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		out := p.ImageIDs[:0]
		for _, id := range p.ImageIDs {
			if id != blobID {
				out = append(out, id)
			}
		}
		p.ImageIDs = out
		if p.PrimaryImageID != blobID {
			if e := tx.Bucket([]byte(domain.ColBlobs)).Delete([]byte(blobID)); e != nil {
				return e
			}
		}
		p.UpdatedAt = now()
		return putJSON(tx, domain.ColProducts, productID, p)
	})
}

func (s *Store) RecordProductView(ctx context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, id)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
		}
		p.Views++
		return putJSON(tx, domain.ColProducts, id, p)
	})
}

func (s *Store) RecomputeProductRating(ctx context.Context, id string) (*domain.Product, error) {
	var out *domain.Product
	err := s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, id)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
		}
		reviews, e := allJSON[domain.Review](tx, domain.ColReviews)
		if e != nil {
			return e
		}
		var ratings []int
		for _, r := range reviews {
			if r.ProductID == id {
				ratings = append(ratings, r.Rating)
			}
		}
		p.AverageRating, p.ReviewCount = derive.RatingOf(ratings)
		p.UpdatedAt = now()
		out = p
		return putJSON(tx, domain.ColProducts, id, p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
