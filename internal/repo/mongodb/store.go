// Package mongodb 在远端文档库上实现与 localdb 相同的数据服务契约。
// 无多文档事务：主实体先写，依赖聚合随后尽力写；聚合写失败只记
// PartialAggregateError 日志，操作仍算成功，等 Reconcile 自愈。
// 驱动原始错误折叠为 ErrStorageUnavailable，不重试。
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"go-markethub/internal/derive"
	"go-markethub/internal/domain"
	"go-markethub/internal/notify"
	"go-markethub/pkg/utils"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
	bus    *notify.Bus
	admin  domain.SeedAdmin
}

func Open(ctx context.Context, uri, database string, admin domain.SeedAdmin, log *zap.Logger, bus *notify.Bus) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", domain.ErrStorageUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: ping: %v", domain.ErrStorageUnavailable, err)
	}
	return &Store{
		client: client,
		db:     client.Database(database),
		log:    log,
		bus:    bus,
		admin:  admin,
	}, nil
}

func (s *Store) Kind() string { return domain.KindRemote }

func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.client.Ping(ctx, nil))
}

func (s *Store) Close(ctx context.Context) error {
	return mapErr(s.client.Disconnect(ctx))
}

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// createdAsc 插入序 == created_at 升序，_id 兜底，与本地后端一致
var createdAsc = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

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

// findOne 查无返回 (nil, nil)
func findOne[T any](ctx context.Context, c *mongo.Collection, filter bson.M) (*T, error) {
	var v T
	err := c.FindOne(ctx, filter).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cur, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer cur.Close(ctx)
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (s *Store) publish(evs []derive.Event) {
	for _, ev := range evs {
		s.bus.Publish(ev)
	}
}

// partial 聚合写失败的统一去处：记日志，不上抛
func (s *Store) partial(entity, id string, err error) {
	if err == nil {
		return
	}
	pae := &domain.PartialAggregateError{Entity: entity, ID: id, Err: err}
	s.log.Warn("aggregate write failed, reconcile will repair", zap.Error(pae))
}

// activity 审计追加同样是依赖写，失败只记日志
func (s *Store) activity(ctx context.Context, action, entityType, entityID, desc string) {
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
	_, err := s.col(domain.ColActivityLogs).InsertOne(ctx, e)
	s.partial(domain.ColActivityLogs, e.ID, err)
}

// ---- blob store ----

type blobDoc struct {
	ID   string `bson:"_id"`
	Data []byte `bson:"data"`
}

func (s *Store) PutBlob(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return domain.Validationf("blob id required")
	}
	_, err := s.col(domain.ColBlobs).ReplaceOne(ctx,
		bson.M{"_id": id}, blobDoc{ID: id, Data: data},
		options.Replace().SetUpsert(true))
	return mapErr(err)
}

func (s *Store) GetBlob(ctx context.Context, id string) ([]byte, error) {
	doc, err := findOne[blobDoc](ctx, s.col(domain.ColBlobs), bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, id)
	}
	return doc.Data, nil
}

func (s *Store) DeleteBlob(ctx context.Context, id string) error {
	_, err := s.col(domain.ColBlobs).DeleteOne(ctx, bson.M{"_id": id})
	return mapErr(err)
}

// ---- settings ----

type settingDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (s *Store) Setting(ctx context.Context, key string) (*domain.Setting, error) {
	doc, err := findOne[settingDoc](ctx, s.col(domain.ColSettings), bson.M{"_id": key})
	if err != nil || doc == nil {
		return nil, err
	}
	return &domain.Setting{Key: doc.Key, Value: doc.Value, UpdatedAt: doc.UpdatedAt}, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.col(domain.ColSettings).ReplaceOne(ctx,
		bson.M{"_id": key}, settingDoc{Key: key, Value: value, UpdatedAt: now()},
		options.Replace().SetUpsert(true))
	return mapErr(err)
}

// ---- seeding ----

// Seed 与本地后端同一份基线；标记文档最后写入，半途失败可重播
func (s *Store) Seed(ctx context.Context) error {
	done, err := s.Setting(ctx, domain.SettingSeedDone)
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
		if _, err := s.col(domain.ColCategories).InsertOne(ctx, c); err != nil {
			return mapErr(err)
		}
	}
	for _, c := range domain.SeedJobCategories() {
		c.ID = utils.NewID()
		c.CreatedAt, c.UpdatedAt = t, t
		if _, err := s.col(domain.ColJobCategories).InsertOne(ctx, c); err != nil {
			return mapErr(err)
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
		if _, err := s.col(domain.ColUsers).InsertOne(ctx, admin); err != nil {
			return mapErr(err)
		}
	}
	for k, v := range domain.SeedSettings() {
		if err := s.PutSetting(ctx, k, v); err != nil {
			return err
		}
	}
	s.log.Info("remote backend seeded")
	return s.PutSetting(ctx, domain.SettingSeedDone, "done")
}

// ---- reconcile（聚合自愈）----

// Reconcile 全量重算商品评分与用户统计，修补半途失败留下的漂移
func (s *Store) Reconcile(ctx context.Context) error {
	reviews, err := findAll[domain.Review](ctx, s.col(domain.ColReviews), bson.M{})
	if err != nil {
		return err
	}
	byProduct := map[string][]int{}
	for _, r := range reviews {
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r.Rating)
	}
	products, err := findAll[domain.Product](ctx, s.col(domain.ColProducts), bson.M{})
	if err != nil {
		return err
	}
	for _, p := range products {
		avg, count := derive.RatingOf(byProduct[p.ID])
		if p.AverageRating == avg && p.ReviewCount == count {
			continue
		}
		_, err := s.col(domain.ColProducts).UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{
			"$set": bson.M{"average_rating": avg, "review_count": count, "updated_at": now()},
		})
		if err != nil {
			return mapErr(err)
		}
	}

	jobs, err := findAll[domain.Job](ctx, s.col(domain.ColJobs), bson.M{})
	if err != nil {
		return err
	}
	jobReviews, err := findAll[domain.JobReview](ctx, s.col(domain.ColJobReviews), bson.M{})
	if err != nil {
		return err
	}
	users, err := findAll[domain.User](ctx, s.col(domain.ColUsers), bson.M{})
	if err != nil {
		return err
	}
	for _, u := range users {
		stats := derive.UserStats(u.ID, jobs, jobReviews)
		_, err := s.col(domain.ColUsers).UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{
			"$set": bson.M{"stats": stats},
		})
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

// recomputeUserStats 单用户聚合重写，聚合链路共用
func (s *Store) recomputeUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	jobs, err := findAll[domain.Job](ctx, s.col(domain.ColJobs), bson.M{
		"$or": []bson.M{{"created_by_id": userID}, {"accepted_by_id": userID}},
	})
	if err != nil {
		return domain.UserStats{}, err
	}
	reviews, err := findAll[domain.JobReview](ctx, s.col(domain.ColJobReviews), bson.M{"reviewee_id": userID})
	if err != nil {
		return domain.UserStats{}, err
	}
	stats := derive.UserStats(userID, jobs, reviews)
	_, err = s.col(domain.ColUsers).UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"stats": stats, "updated_at": now()},
	})
	return stats, mapErr(err)
}
