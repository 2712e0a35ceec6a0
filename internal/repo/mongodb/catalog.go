package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-markethub/internal/derive"
	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

// ---- categories ----

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Slug) == "" {
		return nil, domain.Validationf("category name and slug required")
	}
	if dup, err := s.CategoryBySlug(ctx, c.Slug); err != nil {
		return nil, err
	} else if dup != nil {
		return nil, domain.Conflictf("slug %s taken", c.Slug)
	}
	t := now()
	c.ID = utils.NewID()
	c.CreatedAt, c.UpdatedAt = t, t
	if _, err := s.col(domain.ColCategories).InsertOne(ctx, c); err != nil {
		return nil, mapErr(err)
	}
	s.activity(ctx, domain.ActionCategoryCreate, domain.ColCategories, c.ID,
		derive.DescribeCreate("category", c.Name))
	return c, nil
}

func (s *Store) CategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	return findOne[domain.Category](ctx, s.col(domain.ColCategories), bson.M{"_id": id})
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return findOne[domain.Category](ctx, s.col(domain.ColCategories), bson.M{"slug": slug})
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return findAll[domain.Category](ctx, s.col(domain.ColCategories), bson.M{},
		options.Find().SetSort(createdAsc))
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	old, err := s.CategoryByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("%w: category %s", domain.ErrNotFound, c.ID)
	}
	if old.Slug != c.Slug {
		if dup, err := s.CategoryBySlug(ctx, c.Slug); err != nil {
			return err
		} else if dup != nil && dup.ID != c.ID {
			return domain.Conflictf("slug %s taken", c.Slug)
		}
	}
	_, err = s.col(domain.ColCategories).UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{
		"$set": bson.M{
			"name": c.Name, "slug": c.Slug, "description": c.Description,
			"ordering": c.Ordering, "active": c.Active, "updated_at": now(),
		},
	})
	if err != nil {
		return mapErr(err)
	}
	s.activity(ctx, domain.ActionCategoryUpdate, domain.ColCategories, c.ID, "Category updated")
	return nil
}

// DeleteCategory 仍被商品引用时拒绝
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	c, err := s.CategoryByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: category %s", domain.ErrNotFound, id)
	}
	n, err := s.col(domain.ColProducts).CountDocuments(ctx, bson.M{"category_id": id})
	if err != nil {
		return mapErr(err)
	}
	if n > 0 {
		return domain.Conflictf("category %s still referenced by %d product(s)", id, n)
	}
	if _, err := s.col(domain.ColCategories).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return mapErr(err)
	}
	s.activity(ctx, domain.ActionCategoryDelete, domain.ColCategories, id,
		derive.DescribeDelete("category", c.Name))
	return nil
}

// ---- job categories ----

func (s *Store) CreateJobCategory(ctx context.Context, c *domain.JobCategory) (*domain.JobCategory, error) {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Slug) == "" {
		return nil, domain.Validationf("job category name and slug required")
	}
	if dup, err := s.JobCategoryBySlug(ctx, c.Slug); err != nil {
		return nil, err
	} else if dup != nil {
		return nil, domain.Conflictf("slug %s taken", c.Slug)
	}
	t := now()
	c.ID = utils.NewID()
	c.CreatedAt, c.UpdatedAt = t, t
	if _, err := s.col(domain.ColJobCategories).InsertOne(ctx, c); err != nil {
		return nil, mapErr(err)
	}
	s.activity(ctx, domain.ActionCategoryCreate, domain.ColJobCategories, c.ID,
		derive.DescribeCreate("job category", c.Name))
	return c, nil
}

func (s *Store) JobCategoryByID(ctx context.Context, id string) (*domain.JobCategory, error) {
	return findOne[domain.JobCategory](ctx, s.col(domain.ColJobCategories), bson.M{"_id": id})
}

func (s *Store) JobCategoryBySlug(ctx context.Context, slug string) (*domain.JobCategory, error) {
	return findOne[domain.JobCategory](ctx, s.col(domain.ColJobCategories), bson.M{"slug": slug})
}

func (s *Store) ListJobCategories(ctx context.Context) ([]domain.JobCategory, error) {
	return findAll[domain.JobCategory](ctx, s.col(domain.ColJobCategories), bson.M{},
		options.Find().SetSort(createdAsc))
}

func (s *Store) UpdateJobCategory(ctx context.Context, c *domain.JobCategory) error {
	old, err := s.JobCategoryByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("%w: job category %s", domain.ErrNotFound, c.ID)
	}
	if old.Slug != c.Slug {
		if dup, err := s.JobCategoryBySlug(ctx, c.Slug); err != nil {
			return err
		} else if dup != nil && dup.ID != c.ID {
			return domain.Conflictf("slug %s taken", c.Slug)
		}
	}
	_, err = s.col(domain.ColJobCategories).UpdateOne(ctx, bson.M{"_id": c.ID}, bson.M{
		"$set": bson.M{
			"name": c.Name, "slug": c.Slug, "description": c.Description,
			"ordering": c.Ordering, "active": c.Active, "updated_at": now(),
		},
	})
	if err != nil {
		return mapErr(err)
	}
	s.activity(ctx, domain.ActionCategoryUpdate, domain.ColJobCategories, c.ID, "Job category updated")
	return nil
}

// DeleteJobCategory 任何状态的工单引用期间均拒绝删除
func (s *Store) DeleteJobCategory(ctx context.Context, id string) error {
	c, err := s.JobCategoryByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: job category %s", domain.ErrNotFound, id)
	}
	n, err := s.col(domain.ColJobs).CountDocuments(ctx, bson.M{"category_id": id})
	if err != nil {
		return mapErr(err)
	}
	if n > 0 {
		return domain.Conflictf("job category %s still referenced by %d job(s)", id, n)
	}
	if _, err := s.col(domain.ColJobCategories).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return mapErr(err)
	}
	s.activity(ctx, domain.ActionCategoryDelete, domain.ColJobCategories, id,
		derive.DescribeDelete("job category", c.Name))
	return nil
}

// ---- products ----

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, domain.Validationf("product name required")
	}
	if p.Price < 0 || p.Stock < 0 {
		return nil, domain.Validationf("price and stock must be non-negative")
	}
	if p.CategoryID != "" {
		cat, err := s.CategoryByID(ctx, p.CategoryID)
		if err != nil {
			return nil, err
		}
		if cat == nil {
			return nil, fmt.Errorf("%w: category %s", domain.ErrNotFound, p.CategoryID)
		}
	}
	t := now()
	p.ID = utils.NewID()
	p.CreatedAt, p.UpdatedAt = t, t
	p.Views, p.Purchases, p.ReviewCount = 0, 0, 0
	p.AverageRating = 0
	if _, err := s.col(domain.ColProducts).InsertOne(ctx, p); err != nil {
		return nil, mapErr(err)
	}
	s.activity(ctx, domain.ActionProductCreate, domain.ColProducts, p.ID,
		derive.DescribeCreate("product", p.Name))
	return p, nil
}

func (s *Store) ProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return findOne[domain.Product](ctx, s.col(domain.ColProducts), bson.M{"_id": id})
}

func (s *Store) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	filter := bson.M{}
	if f.CategoryID != "" {
		filter["category_id"] = f.CategoryID
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		filter["$or"] = []bson.M{{"name": re}, {"description": re}}
	}
	return findAll[domain.Product](ctx, s.col(domain.ColProducts), filter,
		options.Find().SetSort(createdAsc))
}

func (s *Store) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if p.Price < 0 || p.Stock < 0 {
		return domain.Validationf("price and stock must be non-negative")
	}
	old, err := s.ProductByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, p.ID)
	}
	if p.CategoryID != "" && p.CategoryID != old.CategoryID {
		cat, err := s.CategoryByID(ctx, p.CategoryID)
		if err != nil {
			return err
		}
		if cat == nil {
			return fmt.Errorf("%w: category %s", domain.ErrNotFound, p.CategoryID)
		}
	}
	// 派生计数与图片集不走通用更新
	_, err = s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{
		"$set": bson.M{
			"name": p.Name, "description": p.Description,
			"price": p.Price, "stock": p.Stock,
			"category_id": p.CategoryID, "updated_at": now(),
		},
	})
	if err != nil {
		return mapErr(err)
	}
	p.Views, p.Purchases = old.Views, old.Purchases
	p.AverageRating, p.ReviewCount = old.AverageRating, old.ReviewCount
	p.PrimaryImageID, p.ImageIDs = old.PrimaryImageID, old.ImageIDs
	s.activity(ctx, domain.ActionProductUpdate, domain.ColProducts, p.ID,
		derive.DescribeProductChange(old, p))
	return nil
}

// DeleteProduct 主删商品，随后尽力清理图片 blob、评论与购物车条目
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.ProductByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	if _, err := s.col(domain.ColProducts).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return mapErr(err)
	}
	for _, blobID := range p.AllImageIDs() {
		_, err := s.col(domain.ColBlobs).DeleteOne(ctx, bson.M{"_id": blobID})
		s.partial(domain.ColBlobs, blobID, err)
	}
	_, err = s.col(domain.ColReviews).DeleteMany(ctx, bson.M{"product_id": id})
	s.partial(domain.ColReviews, id, err)
	_, err = s.col(domain.ColCarts).UpdateMany(ctx, bson.M{}, bson.M{
		"$pull": bson.M{
			"items":           bson.M{"product_id": id},
			"saved_for_later": bson.M{"product_id": id},
		},
	})
	s.partial(domain.ColCarts, id, err)
	s.activity(ctx, domain.ActionProductDelete, domain.ColProducts, id,
		derive.DescribeDelete("product", p.Name))
	return nil
}

// ---- product images ----

func (s *Store) SetPrimaryImage(ctx context.Context, productID, blobID string) error {
	p, err := s.ProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	_, err = s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": productID}, bson.M{
		"$set": bson.M{"primary_image_id": blobID, "updated_at": now()},
	})
	if err != nil {
		return mapErr(err)
	}
	old := p.PrimaryImageID
	if old != "" && old != blobID && !containsStr(p.ImageIDs, old) {
		_, err := s.col(domain.ColBlobs).DeleteOne(ctx, bson.M{"_id": old})
		s.partial(domain.ColBlobs, old, err)
	}
	return nil
}

// AddProductImage 附图集合语义，$addToSet 天然幂等
func (s *Store) AddProductImage(ctx context.Context, productID, blobID string) error {
	if blobID == "" {
		return domain.Validationf("blob id required")
	}
	res, err := s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": productID}, bson.M{
		"$addToSet": bson.M{"image_ids": blobID},
		"$set":      bson.M{"updated_at": now()},
	})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	return nil
}

func (s *Store) RemoveProductImage(ctx context.Context, productID, blobID string) error {
	p, err := s.ProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	_, err = s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": productID}, bson.M{
		"$pull": bson.M{"image_ids": blobID},
		"$set":  bson.M{"updated_at": now()},
	})
	if err != nil {
		return mapErr(err)
	}
	if p.PrimaryImageID != blobID {
		_, err := s.col(domain.ColBlobs).DeleteOne(ctx, bson.M{"_id": blobID})
		s.partial(domain.ColBlobs, blobID, err)
	}
	return nil
}

func (s *Store) RecordProductView(ctx context.Context, id string) error {
	res, err := s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"views": 1},
	})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return nil
}

func (s *Store) RecomputeProductRating(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.ProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	reviews, err := findAll[domain.Review](ctx, s.col(domain.ColReviews), bson.M{"product_id": id})
	if err != nil {
		return nil, err
	}
	ratings := make([]int, 0, len(reviews))
	for _, r := range reviews {
		ratings = append(ratings, r.Rating)
	}
	avg, count := derive.RatingOf(ratings)
	_, err = s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"average_rating": avg, "review_count": count, "updated_at": now()},
	})
	if err != nil {
		return nil, mapErr(err)
	}
	p.AverageRating, p.ReviewCount = avg, count
	return p, nil
}

func containsStr(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
