// Package localdb 在嵌入式 bbolt 键值库上实现数据服务契约。
// 每个公开方法在单个 db.Update 事务内完成 读取→变更→派生→持久化，
// 对同进程调用者等效原子；跨进程打开同一文件由 bbolt 文件锁串行化，
// 并发标签页场景按 last-writer-wins 处理（文档化的接受范围）。
package localdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"go-markethub/internal/derive"
	"go-markethub/internal/domain"
	"go-markethub/internal/notify"
	"go-markethub/pkg/utils"
)

var buckets = []string{
	domain.ColUsers, domain.ColProducts, domain.ColCategories,
	domain.ColCarts, domain.ColOrders, domain.ColReviews,
	domain.ColJobs, domain.ColJobCategories, domain.ColJobReviews,
	domain.ColChatMessages, domain.ColNotifications,
	domain.ColWishlists, domain.ColSavedJobs,
	domain.ColActivityLogs, domain.ColSettings, domain.ColBlobs,
}

type Store struct {
	db    *bolt.DB
	log   *zap.Logger
	bus   *notify.Bus
	admin domain.SeedAdmin
}

func Open(path string, admin domain.SeedAdmin, log *zap.Logger, bus *notify.Bus) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStorageUnavailable, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, e := tx.CreateBucketIfNotExists([]byte(name)); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: init buckets: %v", domain.ErrStorageUnavailable, err)
	}
	return &Store{db: db, log: log, bus: bus, admin: admin}, nil
}

func (s *Store) Kind() string { return domain.KindLocal }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

func (s *Store) Close(ctx context.Context) error { return s.db.Close() }

// ---- 事务与编解码辅助 ----

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// update 包一层错误归一：领域错误原样透出，其余折叠为存储不可用
func (s *Store) update(fn func(tx *bolt.Tx) error) error {
	return mapErr(s.db.Update(fn))
}

func (s *Store) view(fn func(tx *bolt.Tx) error) error {
	return mapErr(s.db.View(fn))
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrNotFound, domain.ErrConflict, domain.ErrValidation,
		domain.ErrStockLimit, domain.ErrStorageUnavailable,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

func putJSON(tx *bolt.Tx, col, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(col)).Put([]byte(id), raw)
}

func getJSON[T any](tx *bolt.Tx, col, id string) (*T, error) {
	raw := tx.Bucket([]byte(col)).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func delKey(tx *bolt.Tx, col, id string) error {
	return tx.Bucket([]byte(col)).Delete([]byte(id))
}

func allJSON[T any](tx *bolt.Tx, col string) ([]T, error) {
	out := []T{}
	err := tx.Bucket([]byte(col)).ForEach(func(_, raw []byte) error {
		var v T
		if e := json.Unmarshal(raw, &v); e != nil {
			return e
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// byCreated bbolt 按键序迭代而键是随机 id，插入序 == 创建时间升序
// （毫秒精度，id 兜底保证稳定）
func byCreated[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := created(items[i]), created(items[j])
		if ti.Equal(tj) {
			return id(items[i]) < id(items[j])
		}
		return ti.Before(tj)
	})
}

func (s *Store) publish(evs []derive.Event) {
	for _, ev := range evs {
		s.bus.Publish(ev)
	}
}

// activity 在同一事务内追加一条只增日志
func activity(tx *bolt.Tx, ctx context.Context, action, entityType, entityID, desc string) error {
	actor := domain.ActorFrom(ctx)
	e := domain.ActivityLog{
		ID:          utils.NewID(),
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
		ActorRole:   actor.Role,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: desc,
		CreatedAt:   now(),
	}
	return putJSON(tx, domain.ColActivityLogs, e.ID, e)
}

// ---- blob store ----

func (s *Store) PutBlob(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return domain.Validationf("blob id required")
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(domain.ColBlobs)).Put([]byte(id), data)
	})
}

func (s *Store) GetBlob(ctx context.Context, id string) ([]byte, error) {
	var out []byte
	err := s.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(domain.ColBlobs)).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("%w: blob %s", domain.ErrNotFound, id)
		}
		out = append([]byte(nil), raw...)
		return nil
	})
	return out, err
}

// DeleteBlob 按 id 幂等：重复删除不报错
func (s *Store) DeleteBlob(ctx context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(domain.ColBlobs)).Delete([]byte(id))
	})
}

// ---- settings ----

func (s *Store) Setting(ctx context.Context, key string) (*domain.Setting, error) {
	var out *domain.Setting
	err := s.view(func(tx *bolt.Tx) error {
		v, e := getJSON[domain.Setting](tx, domain.ColSettings, key)
		out = v
		return e
	})
	return out, err
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	return s.update(func(tx *bolt.Tx) error {
		return putJSON(tx, domain.ColSettings, key, domain.Setting{
			Key: key, Value: value, UpdatedAt: now(),
		})
	})
}

// ---- seeding ----

// Seed 空库一次性播种。标记最后写入：中途崩溃可安全重播。
func (s *Store) Seed(ctx context.Context) error {
	return s.update(func(tx *bolt.Tx) error {
		done, err := getJSON[domain.Setting](tx, domain.ColSettings, domain.SettingSeedDone)
		if err != nil {
			return err
		}
		if done != nil {
			return nil
		}
		t := now()
		for _, c := range domain.SeedCategories() {
			c.ID = utils.NewID()
			c.CreatedAt, c.UpdatedAt = t, t
			if e := putJSON(tx, domain.ColCategories, c.ID, c); e != nil {
				return e
			}
		}
		for _, c := range domain.SeedJobCategories() {
			c.ID = utils.NewID()
			c.CreatedAt, c.UpdatedAt = t, t
			if e := putJSON(tx, domain.ColJobCategories, c.ID, c); e != nil {
				return e
			}
		}
		if s.admin.Email != "" {
			admin := domain.User{
				ID:           utils.NewID(),
				Email:        s.admin.Email,
				Name:         "Administrator",
				PasswordHash: s.admin.PasswordHash,
				Role:         domain.RoleAdmin,
				Stats:        domain.UserStats{Badges: []string{}},
				CreatedAt:    t,
				UpdatedAt:    t,
			}
			if e := putJSON(tx, domain.ColUsers, admin.ID, admin); e != nil {
				return e
			}
		}
		for k, v := range domain.SeedSettings() {
			if e := putJSON(tx, domain.ColSettings, k, domain.Setting{Key: k, Value: v, UpdatedAt: t}); e != nil {
				return e
			}
		}
		s.log.Info("local backend seeded")
		return putJSON(tx, domain.ColSettings, domain.SettingSeedDone, domain.Setting{
			Key: domain.SettingSeedDone, Value: "done", UpdatedAt: t,
		})
	})
}

// ---- reconcile（聚合自愈）----

// Reconcile 以源数据为准全量重算商品评分与用户统计，
// 修复任何一次增量更新缺失造成的漂移。
func (s *Store) Reconcile(ctx context.Context) error {
	return s.update(func(tx *bolt.Tx) error {
		reviews, err := allJSON[domain.Review](tx, domain.ColReviews)
		if err != nil {
			return err
		}
		byProduct := map[string][]int{}
		for _, r := range reviews {
			byProduct[r.ProductID] = append(byProduct[r.ProductID], r.Rating)
		}
		products, err := allJSON[domain.Product](tx, domain.ColProducts)
		if err != nil {
			return err
		}
		for _, p := range products {
			avg, count := derive.RatingOf(byProduct[p.ID])
			if p.AverageRating != avg || p.ReviewCount != count {
				p.AverageRating, p.ReviewCount = avg, count
				p.UpdatedAt = now()
				if e := putJSON(tx, domain.ColProducts, p.ID, p); e != nil {
					return e
				}
			}
		}

		jobs, err := allJSON[domain.Job](tx, domain.ColJobs)
		if err != nil {
			return err
		}
		jobReviews, err := allJSON[domain.JobReview](tx, domain.ColJobReviews)
		if err != nil {
			return err
		}
		users, err := allJSON[domain.User](tx, domain.ColUsers)
		if err != nil {
			return err
		}
		for _, u := range users {
			stats := derive.UserStats(u.ID, jobs, jobReviews)
			u.Stats = stats
			if e := putJSON(tx, domain.ColUsers, u.ID, u); e != nil {
				return e
			}
		}
		return nil
	})
}
