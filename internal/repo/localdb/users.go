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

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	if strings.TrimSpace(u.Email) == "" {
		return nil, domain.Validationf("email required")
	}
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	err := s.update(func(tx *bolt.Tx) error {
		if dup, e := findUserByEmail(tx, u.Email); e != nil {
			return e
		} else if dup != nil {
			return domain.Conflictf("email %s already registered", u.Email)
		}
		t := now()
		u.ID = utils.NewID()
		u.CreatedAt, u.UpdatedAt = t, t
		u.Stats = domain.UserStats{Badges: derive.Badges(domain.UserStats{})}
		if e := putJSON(tx, domain.ColUsers, u.ID, u); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionUserCreate, domain.ColUsers, u.ID,
			derive.DescribeCreate("user", u.Email))
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := s.view(func(tx *bolt.Tx) error {
		v, e := getJSON[domain.User](tx, domain.ColUsers, id)
		out = v
		return e
	})
	return out, err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := s.view(func(tx *bolt.Tx) error {
		v, e := findUserByEmail(tx, email)
		out = v
		return e
	})
	return out, err
}

func findUserByEmail(tx *bolt.Tx, email string) (*domain.User, error) {
	users, err := allJSON[domain.User](tx, domain.ColUsers)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) && !users[i].Deleted() {
			return &users[i], nil
		}
	}
	return nil, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	err := s.view(func(tx *bolt.Tx) error {
		us, e := allJSON[domain.User](tx, domain.ColUsers)
		if e != nil {
			return e
		}
		out = us
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(u domain.User) time.Time { return u.CreatedAt }, func(u domain.User) string { return u.ID })
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	return s.update(func(tx *bolt.Tx) error {
		old, e := getJSON[domain.User](tx, domain.ColUsers, u.ID)
		if e != nil {
			return e
		}
		if old == nil {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, u.ID)
		}
		if !strings.EqualFold(old.Email, u.Email) {
			if dup, e2 := findUserByEmail(tx, u.Email); e2 != nil {
				return e2
			} else if dup != nil && dup.ID != u.ID {
				return domain.Conflictf("email %s already registered", u.Email)
			}
		}
		// 派生字段与账期字段不接受调用方覆盖
		u.Stats = old.Stats
		u.CreatedAt = old.CreatedAt
		u.LastLoginAt = old.LastLoginAt
		u.DeletedAt = old.DeletedAt
		u.UpdatedAt = now()
		if e := putJSON(tx, domain.ColUsers, u.ID, u); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionUserUpdate, domain.ColUsers, u.ID,
			derive.DescribeUserChange(old, u))
	})
}

// DeleteUser 被订单引用时软失效，否则物理删除
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		u, e := getJSON[domain.User](tx, domain.ColUsers, id)
		if e != nil {
			return e
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
		}
		orders, e := allJSON[domain.Order](tx, domain.ColOrders)
		if e != nil {
			return e
		}
		referenced := false
		for _, o := range orders {
			if o.UserID == id {
				referenced = true
				break
			}
		}
		if referenced {
			t := now()
			u.DeletedAt = &t
			u.UpdatedAt = t
			if e := putJSON(tx, domain.ColUsers, id, u); e != nil {
				return e
			}
		} else {
			if e := delKey(tx, domain.ColUsers, id); e != nil {
				return e
			}
			// 专属从属数据一并清理
			if e := delKey(tx, domain.ColCarts, id); e != nil {
				return e
			}
			if e := delKey(tx, domain.ColWishlists, id); e != nil {
				return e
			}
			if e := delKey(tx, domain.ColSavedJobs, id); e != nil {
				return e
			}
		}
		return activity(tx, ctx, domain.ActionUserDelete, domain.ColUsers, id,
			derive.DescribeDelete("user", u.Email))
	})
}

func (s *Store) TouchLastLogin(ctx context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		u, e := getJSON[domain.User](tx, domain.ColUsers, id)
		if e != nil {
			return e
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
		}
		t := now()
		u.LastLoginAt = &t
		u.UpdatedAt = t
		return putJSON(tx, domain.ColUsers, id, u)
	})
}

// RecomputeUserStats 聚合自愈入口：从 jobs/jobReviews 源数据重算
func (s *Store) RecomputeUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	var out domain.UserStats
	err := s.update(func(tx *bolt.Tx) error {
		stats, e := recomputeUserStatsTx(tx, userID)
		if e != nil {
			return e
		}
		out = stats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func recomputeUserStatsTx(tx *bolt.Tx, userID string) (domain.UserStats, error) {
	u, err := getJSON[domain.User](tx, domain.ColUsers, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	if u == nil {
		return domain.UserStats{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	jobs, err := allJSON[domain.Job](tx, domain.ColJobs)
	if err != nil {
		return domain.UserStats{}, err
	}
	reviews, err := allJSON[domain.JobReview](tx, domain.ColJobReviews)
	if err != nil {
		return domain.UserStats{}, err
	}
	stats := derive.UserStats(userID, jobs, reviews)
	u.Stats = stats
	u.UpdatedAt = now()
	return stats, putJSON(tx, domain.ColUsers, userID, u)
}
