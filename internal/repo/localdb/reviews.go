package localdb

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"go-markethub/internal/derive"
	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

// CreateReview 主写评论 + 同事务按增量公式更新商品评分聚合
func (s *Store) CreateReview(ctx context.Context, r *domain.Review) (*domain.Review, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return nil, domain.Validationf("rating must be in [1,5]")
	}
	err := s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, r.ProductID)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, r.ProductID)
		}
		u, e := getJSON[domain.User](tx, domain.ColUsers, r.UserID)
		if e != nil {
			return e
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, r.UserID)
		}
		if r.UserName == "" {
			r.UserName = u.Name
		}
		r.ID = utils.NewID()
		r.CreatedAt = now()
		if e := putJSON(tx, domain.ColReviews, r.ID, r); e != nil {
			return e
		}
		p.AverageRating, p.ReviewCount = derive.ApplyReview(p.AverageRating, p.ReviewCount, r.Rating)
		p.UpdatedAt = now()
		if e := putJSON(tx, domain.ColProducts, p.ID, p); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionReviewCreate, domain.ColReviews, r.ID,
			fmt.Sprintf("Review %d/5 on product %q", r.Rating, p.Name))
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ReviewsByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	var out []domain.Review
	err := s.view(func(tx *bolt.Tx) error {
		rs, e := allJSON[domain.Review](tx, domain.ColReviews)
		if e != nil {
			return e
		}
		for _, r := range rs {
			if r.ProductID == productID {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(r domain.Review) time.Time { return r.CreatedAt }, func(r domain.Review) string { return r.ID })
	return out, nil
}

// DeleteReview 管理员删评：逆向公式回退聚合，归零时均值复位
func (s *Store) DeleteReview(ctx context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		r, e := getJSON[domain.Review](tx, domain.ColReviews, id)
		if e != nil {
			return e
		}
		if r == nil {
			return fmt.Errorf("%w: review %s", domain.ErrNotFound, id)
		}
		if e := delKey(tx, domain.ColReviews, id); e != nil {
			return e
		}
		p, e := getJSON[domain.Product](tx, domain.ColProducts, r.ProductID)
		if e != nil {
			return e
		}
		if p != nil {
			p.AverageRating, p.ReviewCount = derive.RemoveReview(p.AverageRating, p.ReviewCount, r.Rating)
			p.UpdatedAt = now()
			if e := putJSON(tx, domain.ColProducts, p.ID, p); e != nil {
				return e
			}
		}
		return activity(tx, ctx, domain.ActionReviewDelete, domain.ColReviews, id,
			derive.DescribeDelete("review", id))
	})
}
