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

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	if strings.TrimSpace(u.Email) == "" {
		return nil, domain.Validationf("email required")
	}
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	// 查后插是尽力而为的唯一性检查，与本地后端观测行为一致
	if dup, err := s.userByEmail(ctx, u.Email); err != nil {
		return nil, err
	} else if dup != nil {
		return nil, domain.Conflictf("email %s already registered", u.Email)
	}
	t := now()
	u.ID = utils.NewID()
	u.CreatedAt, u.UpdatedAt = t, t
	u.Stats = domain.UserStats{Badges: derive.Badges(domain.UserStats{})}
	if _, err := s.col(domain.ColUsers).InsertOne(ctx, u); err != nil {
		return nil, mapErr(err)
	}
	s.activity(ctx, domain.ActionUserCreate, domain.ColUsers, u.ID,
		derive.DescribeCreate("user", u.Email))
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	return findOne[domain.User](ctx, s.col(domain.ColUsers), bson.M{"_id": id})
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.userByEmail(ctx, email)
}

func (s *Store) userByEmail(ctx context.Context, email string) (*domain.User, error) {
	return findOne[domain.User](ctx, s.col(domain.ColUsers), bson.M{
		"email":      bson.M{"$regex": "^" + regexp.QuoteMeta(email) + "$", "$options": "i"},
		"deleted_at": bson.M{"$exists": false},
	})
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	return findAll[domain.User](ctx, s.col(domain.ColUsers), bson.M{},
		options.Find().SetSort(createdAsc))
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	old, err := s.UserByID(ctx, u.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, u.ID)
	}
	if !strings.EqualFold(old.Email, u.Email) {
		if dup, err := s.userByEmail(ctx, u.Email); err != nil {
			return err
		} else if dup != nil && dup.ID != u.ID {
			return domain.Conflictf("email %s already registered", u.Email)
		}
	}
	_, err = s.col(domain.ColUsers).UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{
		"$set": bson.M{
			"email":      u.Email,
			"name":       u.Name,
			"role":       u.Role,
			"theme":      u.Theme,
			"addresses":  u.Addresses,
			"updated_at": now(),
		},
	})
	if err != nil {
		return mapErr(err)
	}
	u.Stats, u.CreatedAt = old.Stats, old.CreatedAt
	u.LastLoginAt, u.DeletedAt = old.LastLoginAt, old.DeletedAt
	s.activity(ctx, domain.ActionUserUpdate, domain.ColUsers, u.ID,
		derive.DescribeUserChange(old, u))
	return nil
}

// DeleteUser 被订单引用时软失效，否则物理删除并清理专属从属数据
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	u, err := s.UserByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	n, err := s.col(domain.ColOrders).CountDocuments(ctx, bson.M{"user_id": id})
	if err != nil {
		return mapErr(err)
	}
	if n > 0 {
		t := now()
		_, err = s.col(domain.ColUsers).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
			"$set": bson.M{"deleted_at": t, "updated_at": t},
		})
		if err != nil {
			return mapErr(err)
		}
	} else {
		if _, err := s.col(domain.ColUsers).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			return mapErr(err)
		}
		for _, col := range []string{domain.ColCarts, domain.ColWishlists, domain.ColSavedJobs} {
			_, err := s.col(col).DeleteOne(ctx, bson.M{"_id": id})
			s.partial(col, id, err)
		}
	}
	s.activity(ctx, domain.ActionUserDelete, domain.ColUsers, id,
		derive.DescribeDelete("user", u.Email))
	return nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string) error {
	t := now()
	res, err := s.col(domain.ColUsers).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"last_login_at": t, "updated_at": t},
	})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return nil
}

func (s *Store) RecomputeUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	stats, err := s.recomputeUserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
