package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

// 收藏按用户聚合成单文档，_id 即 userID，与本地后端同构

type wishlistDoc struct {
	UserID string                `bson:"_id"`
	Items  []domain.WishlistItem `bson:"items"`
}

type savedJobsDoc struct {
	UserID string                `bson:"_id"`
	Items  []domain.SavedJobItem `bson:"items"`
}

// ToggleWishlist 施加期望状态 on；重复施加同一状态是 no-op
func (s *Store) ToggleWishlist(ctx context.Context, userID, productID string, on bool) (bool, error) {
	p, err := s.ProductByID(ctx, productID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	doc, err := findOne[wishlistDoc](ctx, s.col(domain.ColWishlists), bson.M{"_id": userID})
	if err != nil {
		return false, err
	}
	var list []domain.WishlistItem
	if doc != nil {
		list = doc.Items
	}
	idx := -1
	for i, it := range list {
		if it.ProductID == productID {
			idx = i
			break
		}
	}
	switch {
	case on && idx < 0:
		list = append(list, domain.WishlistItem{UserID: userID, ProductID: productID, AddedAt: now()})
	case !on && idx >= 0:
		list = append(list[:idx], list[idx+1:]...)
	default:
		return false, nil
	}
	_, err = s.col(domain.ColWishlists).ReplaceOne(ctx,
		bson.M{"_id": userID}, wishlistDoc{UserID: userID, Items: list},
		options.Replace().SetUpsert(true))
	if err != nil {
		return false, mapErr(err)
	}
	verb := "added to"
	if !on {
		verb = "removed from"
	}
	s.activity(ctx, domain.ActionWishlistToggle, domain.ColProducts, productID,
		fmt.Sprintf("Product %q %s wishlist", p.Name, verb))
	return true, nil
}

// WishlistProducts 连接商品集合，悬空项读取时过滤，按加入时间倒序
func (s *Store) WishlistProducts(ctx context.Context, userID string) ([]domain.Product, error) {
	doc, err := findOne[wishlistDoc](ctx, s.col(domain.ColWishlists), bson.M{"_id": userID})
	if err != nil {
		return nil, err
	}
	out := []domain.Product{}
	if doc == nil {
		return out, nil
	}
	for i := len(doc.Items) - 1; i >= 0; i-- {
		p, err := s.ProductByID(ctx, doc.Items[i].ProductID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) ToggleSavedJob(ctx context.Context, userID, jobID string, on bool) (bool, error) {
	j, err := s.JobByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if j == nil {
		return false, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	doc, err := findOne[savedJobsDoc](ctx, s.col(domain.ColSavedJobs), bson.M{"_id": userID})
	if err != nil {
		return false, err
	}
	var list []domain.SavedJobItem
	if doc != nil {
		list = doc.Items
	}
	idx := -1
	for i, it := range list {
		if it.JobID == jobID {
			idx = i
			break
		}
	}
	switch {
	case on && idx < 0:
		list = append(list, domain.SavedJobItem{UserID: userID, JobID: jobID, AddedAt: now()})
	case !on && idx >= 0:
		list = append(list[:idx], list[idx+1:]...)
	default:
		return false, nil
	}
	_, err = s.col(domain.ColSavedJobs).ReplaceOne(ctx,
		bson.M{"_id": userID}, savedJobsDoc{UserID: userID, Items: list},
		options.Replace().SetUpsert(true))
	if err != nil {
		return false, mapErr(err)
	}
	verb := "saved"
	if !on {
		verb = "unsaved"
	}
	s.activity(ctx, domain.ActionSavedJobToggle, domain.ColJobs, jobID,
		fmt.Sprintf("Job %q %s", j.Title, verb))
	return true, nil
}

func (s *Store) SavedJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	doc, err := findOne[savedJobsDoc](ctx, s.col(domain.ColSavedJobs), bson.M{"_id": userID})
	if err != nil {
		return nil, err
	}
	out := []domain.Job{}
	if doc == nil {
		return out, nil
	}
	for i := len(doc.Items) - 1; i >= 0; i-- {
		j, err := s.JobByID(ctx, doc.Items[i].JobID)
		if err != nil {
			return nil, err
		}
		if j != nil {
			out = append(out, *j)
		}
	}
	return out, nil
}

// ---- notifications ----

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if n.UserID == "" {
		return nil, domain.Validationf("notification needs a recipient")
	}
	n.ID = utils.NewID()
	n.Read = false
	n.CreatedAt = now()
	if _, err := s.col(domain.ColNotifications).InsertOne(ctx, n); err != nil {
		return nil, mapErr(err)
	}
	return n, nil
}

// NotificationsByUser 新在前
func (s *Store) NotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return findAll[domain.Notification](ctx, s.col(domain.ColNotifications), bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.col(domain.ColNotifications).UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.col(domain.ColNotifications).UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	return mapErr(err)
}

// ---- activity logs ----

func (s *Store) AppendActivity(ctx context.Context, e *domain.ActivityLog) error {
	if e.ID == "" {
		e.ID = utils.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	_, err := s.col(domain.ColActivityLogs).InsertOne(ctx, e)
	return mapErr(err)
}

// ListActivity 新在前，Limit 截断在排序后生效
func (s *Store) ListActivity(ctx context.Context, f domain.ActivityFilter) ([]domain.ActivityLog, error) {
	filter := bson.M{}
	if f.ActorID != "" {
		filter["actor_id"] = f.ActorID
	}
	if f.EntityType != "" {
		filter["entity_type"] = f.EntityType
	}
	if f.EntityID != "" {
		filter["entity_id"] = f.EntityID
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts = opts.SetLimit(int64(f.Limit))
	}
	return findAll[domain.ActivityLog](ctx, s.col(domain.ColActivityLogs), filter, opts)
}
