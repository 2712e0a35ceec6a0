package localdb

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

// 收藏按用户聚合成单文档存储，键即 userID

func membership[T any](items []T, match func(T) bool) int {
	for i, it := range items {
		if match(it) {
			return i
		}
	}
	return -1
}

// ToggleWishlist 施加期望状态 on；重复施加同一状态是 no-op
func (s *Store) ToggleWishlist(ctx context.Context, userID, productID string, on bool) (bool, error) {
	var changed bool
	err := s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, productID)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		items, e := getJSON[[]domain.WishlistItem](tx, domain.ColWishlists, userID)
		if e != nil {
			return e
		}
		var list []domain.WishlistItem
		if items != nil {
			list = *items
		}
		idx := membership(list, func(it domain.WishlistItem) bool { return it.ProductID == productID })
		switch {
		case on && idx < 0:
			list = append(list, domain.WishlistItem{UserID: userID, ProductID: productID, AddedAt: now()})
			changed = true
		case !on && idx >= 0:
			list = append(list[:idx], list[idx+1:]...)
			changed = true
		default:
			return nil
		}
		if e := putJSON(tx, domain.ColWishlists, userID, list); e != nil {
			return e
		}
		verb := "added to"
		if !on {
			verb = "removed from"
		}
		return activity(tx, ctx, domain.ActionWishlistToggle, domain.ColProducts, productID,
			fmt.Sprintf("Product %q %s wishlist", p.Name, verb))
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// WishlistProducts 连接商品集合；指向已删商品的悬空项读取时过滤。
// 按加入时间倒序返回。
func (s *Store) WishlistProducts(ctx context.Context, userID string) ([]domain.Product, error) {
	out := []domain.Product{}
	err := s.view(func(tx *bolt.Tx) error {
		items, e := getJSON[[]domain.WishlistItem](tx, domain.ColWishlists, userID)
		if e != nil || items == nil {
			return e
		}
		list := *items
		for i := len(list) - 1; i >= 0; i-- {
			p, e2 := getJSON[domain.Product](tx, domain.ColProducts, list[i].ProductID)
			if e2 != nil {
				return e2
			}
			if p != nil {
				out = append(out, *p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ToggleSavedJob(ctx context.Context, userID, jobID string, on bool) (bool, error) {
	var changed bool
	err := s.update(func(tx *bolt.Tx) error {
		j, e := getJSON[domain.Job](tx, domain.ColJobs, jobID)
		if e != nil {
			return e
		}
		if j == nil {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		items, e := getJSON[[]domain.SavedJobItem](tx, domain.ColSavedJobs, userID)
		if e != nil {
			return e
		}
		var list []domain.SavedJobItem
		if items != nil {
			list = *items
		}
		idx := membership(list, func(it domain.SavedJobItem) bool { return it.JobID == jobID })
		switch {
		case on && idx < 0:
			list = append(list, domain.SavedJobItem{UserID: userID, JobID: jobID, AddedAt: now()})
			changed = true
		case !on && idx >= 0:
			list = append(list[:idx], list[idx+1:]...)
			changed = true
		default:
			return nil
		}
		if e := putJSON(tx, domain.ColSavedJobs, userID, list); e != nil {
			return e
		}
		verb := "saved"
		if !on {
			verb = "unsaved"
		}
		return activity(tx, ctx, domain.ActionSavedJobToggle, domain.ColJobs, jobID,
			fmt.Sprintf("Job %q %s", j.Title, verb))
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (s *Store) SavedJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	out := []domain.Job{}
	err := s.view(func(tx *bolt.Tx) error {
		items, e := getJSON[[]domain.SavedJobItem](tx, domain.ColSavedJobs, userID)
		if e != nil || items == nil {
			return e
		}
		list := *items
		for i := len(list) - 1; i >= 0; i-- {
			j, e2 := getJSON[domain.Job](tx, domain.ColJobs, list[i].JobID)
			if e2 != nil {
				return e2
			}
			if j != nil {
				out = append(out, *j)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---- notifications ----

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if n.UserID == "" {
		return nil, domain.Validationf("notification needs a recipient")
	}
	err := s.update(func(tx *bolt.Tx) error {
		n.ID = utils.NewID()
		n.Read = false
		n.CreatedAt = now()
		return putJSON(tx, domain.ColNotifications, n.ID, n)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// NotificationsByUser 新在前
func (s *Store) NotificationsByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := s.view(func(tx *bolt.Tx) error {
		ns, e := allJSON[domain.Notification](tx, domain.ColNotifications)
		if e != nil {
			return e
		}
		for _, n := range ns {
			if n.UserID == userID {
				out = append(out, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(n domain.Notification) time.Time { return n.CreatedAt }, func(n domain.Notification) string { return n.ID })
	reverse(out)
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		n, e := getJSON[domain.Notification](tx, domain.ColNotifications, id)
		if e != nil {
			return e
		}
		if n == nil || n.UserID != userID {
			return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
		}
		if n.Read {
			return nil
		}
		n.Read = true
		return putJSON(tx, domain.ColNotifications, id, n)
	})
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return s.update(func(tx *bolt.Tx) error {
		ns, e := allJSON[domain.Notification](tx, domain.ColNotifications)
		if e != nil {
			return e
		}
		for _, n := range ns {
			if n.UserID != userID || n.Read {
				continue
			}
			n.Read = true
			if e := putJSON(tx, domain.ColNotifications, n.ID, n); e != nil {
				return e
			}
		}
		return nil
	})
}

// ---- activity logs ----

func (s *Store) AppendActivity(ctx context.Context, e *domain.ActivityLog) error {
	return s.update(func(tx *bolt.Tx) error {
		if e.ID == "" {
			e.ID = utils.NewID()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now()
		}
		return putJSON(tx, domain.ColActivityLogs, e.ID, e)
	})
}

// ListActivity 新在前，Limit 截断在排序后生效
func (s *Store) ListActivity(ctx context.Context, f domain.ActivityFilter) ([]domain.ActivityLog, error) {
	var out []domain.ActivityLog
	err := s.view(func(tx *bolt.Tx) error {
		logs, e := allJSON[domain.ActivityLog](tx, domain.ColActivityLogs)
		if e != nil {
			return e
		}
		for _, l := range logs {
			if f.ActorID != "" && l.ActorID != f.ActorID {
				continue
			}
			if f.EntityType != "" && l.EntityType != f.EntityType {
				continue
			}
			if f.EntityID != "" && l.EntityID != f.EntityID {
				continue
			}
			if f.Action != "" && l.Action != f.Action {
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(l domain.ActivityLog) time.Time { return l.CreatedAt }, func(l domain.ActivityLog) string { return l.ID })
	reverse(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
