package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-markethub/internal/derive"
	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

// CreateReview 主写评论，随后尽力按增量公式更新商品评分聚合
func (s *Store) CreateReview(ctx context.Context, r *domain.Review) (*domain.Review, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return nil, domain.Validationf("rating must be in [1,5]")
	}
	p, err := s.ProductByID(ctx, r.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, r.ProductID)
	}
	u, err := s.UserByID(ctx, r.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, r.UserID)
	}
	if r.UserName == "" {
		r.UserName = u.Name
	}
	r.ID = utils.NewID()
	r.CreatedAt = now()
	if _, err := s.col(domain.ColReviews).InsertOne(ctx, r); err != nil {
		return nil, mapErr(err)
	}
	avg, count := derive.ApplyReview(p.AverageRating, p.ReviewCount, r.Rating)
	_, err = s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{
		"$set": bson.M{"average_rating": avg, "review_count": count, "updated_at": now()},
	})
	s.partial(domain.ColProducts, p.ID, err)
	s.activity(ctx, domain.ActionReviewCreate, domain.ColReviews, r.ID,
		fmt.Sprintf("Review %d/5 on product %q", r.Rating, p.Name))
	return r, nil
}

func (s *Store) ReviewsByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	return findAll[domain.Review](ctx, s.col(domain.ColReviews), bson.M{"product_id": productID},
		options.Find().SetSort(createdAsc))
}

// DeleteReview 逆向公式回退聚合，归零时均值复位
func (s *Store) DeleteReview(ctx context.Context, id string) error {
	r, err := findOne[domain.Review](ctx, s.col(domain.ColReviews), bson.M{"_id": id})
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: review %s", domain.ErrNotFound, id)
	}
	if _, err := s.col(domain.ColReviews).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return mapErr(err)
	}
	p, err := s.ProductByID(ctx, r.ProductID)
	if err == nil && p != nil {
		avg, count := derive.RemoveReview(p.AverageRating, p.ReviewCount, r.Rating)
		_, uerr := s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{
			"$set": bson.M{"average_rating": avg, "review_count": count, "updated_at": now()},
		})
		s.partial(domain.ColProducts, p.ID, uerr)
	} else {
		s.partial(domain.ColProducts, r.ProductID, err)
	}
	s.activity(ctx, domain.ActionReviewDelete, domain.ColReviews, id,
		derive.DescribeDelete("review", id))
	return nil
}
