package localdb

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

// CreateOrder 持久化结账产物并清空来源购物车（结账计算本身由
// 调用方完成）。商品库存扣减与销量累加作为依赖聚合随主写同事务落盘。
func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	if len(o.Items) == 0 {
		return nil, domain.Validationf("order needs at least one item")
	}
	err := s.update(func(tx *bolt.Tx) error {
		u, e := getJSON[domain.User](tx, domain.ColUsers, o.UserID)
		if e != nil {
			return e
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, o.UserID)
		}
		for _, it := range o.Items {
			p, e2 := getJSON[domain.Product](tx, domain.ColProducts, it.ProductID)
			if e2 != nil {
				return e2
			}
			if p == nil {
				return fmt.Errorf("%w: product %s", domain.ErrNotFound, it.ProductID)
			}
		}
		t := now()
		o.ID = utils.NewID()
		o.CreatedAt, o.UpdatedAt = t, t
		if o.Status == "" {
			o.Status = domain.OrderPending
		}
		if o.Total == 0 {
			for _, it := range o.Items {
				o.Total += it.UnitPrice * float64(it.Quantity)
			}
		}
		if e := putJSON(tx, domain.ColOrders, o.ID, o); e != nil {
			return e
		}
		// 聚合侧：库存与销量
		for _, it := range o.Items {
			p, _ := getJSON[domain.Product](tx, domain.ColProducts, it.ProductID)
			if p == nil {
				continue
			}
			p.Purchases += it.Quantity
			p.Stock -= it.Quantity
			if p.Stock < 0 {
				p.Stock = 0
			}
			p.UpdatedAt = t
			if e := putJSON(tx, domain.ColProducts, p.ID, p); e != nil {
				return e
			}
		}
		if e := delKey(tx, domain.ColCarts, o.UserID); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionOrderCreate, domain.ColOrders, o.ID,
			fmt.Sprintf("Order placed, %d item(s), total $%.2f", len(o.Items), o.Total))
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) OrderByID(ctx context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	err := s.view(func(tx *bolt.Tx) error {
		v, e := getJSON[domain.Order](tx, domain.ColOrders, id)
		out = v
		return e
	})
	return out, err
}

func (s *Store) OrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	err := s.view(func(tx *bolt.Tx) error {
		os, e := allJSON[domain.Order](tx, domain.ColOrders)
		if e != nil {
			return e
		}
		for _, o := range os {
			if o.UserID == userID {
				out = append(out, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(o domain.Order) time.Time { return o.CreatedAt }, func(o domain.Order) string { return o.ID })
	return out, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	err := s.view(func(tx *bolt.Tx) error {
		os, e := allJSON[domain.Order](tx, domain.ColOrders)
		out = os
		return e
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(o domain.Order) time.Time { return o.CreatedAt }, func(o domain.Order) string { return o.ID })
	return out, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id, status string) error {
	if !domain.ValidOrderStatus(status) {
		return domain.Validationf("unknown order status %q", status)
	}
	return s.update(func(tx *bolt.Tx) error {
		o, e := getJSON[domain.Order](tx, domain.ColOrders, id)
		if e != nil {
			return e
		}
		if o == nil {
			return fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
		}
		oldStatus := o.Status
		o.Status = status
		o.UpdatedAt = now()
		if e := putJSON(tx, domain.ColOrders, id, o); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionOrderStatus, domain.ColOrders, id,
			fmt.Sprintf("Status changed from %s to %s", oldStatus, status))
	})
}
