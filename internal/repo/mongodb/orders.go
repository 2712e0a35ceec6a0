package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

// CreateOrder 主写订单文档，随后尽力扣库存/加销量并清空购物车。
// 聚合侧任何一步失败不回滚订单，交给 Reconcile 补不齐的部分
// （库存按 $inc 施加，漂移范围有限）。
func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	if len(o.Items) == 0 {
		return nil, domain.Validationf("order needs at least one item")
	}
	u, err := s.UserByID(ctx, o.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, o.UserID)
	}
	for _, it := range o.Items {
		p, err := s.ProductByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, it.ProductID)
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
	if _, err := s.col(domain.ColOrders).InsertOne(ctx, o); err != nil {
		return nil, mapErr(err)
	}
	for _, it := range o.Items {
		_, err := s.col(domain.ColProducts).UpdateOne(ctx,
			bson.M{"_id": it.ProductID},
			bson.M{
				"$inc": bson.M{"stock": -it.Quantity, "purchases": it.Quantity},
				"$set": bson.M{"updated_at": t},
			})
		s.partial(domain.ColProducts, it.ProductID, err)
		// 负库存钳回零
		_, err = s.col(domain.ColProducts).UpdateOne(ctx,
			bson.M{"_id": it.ProductID, "stock": bson.M{"$lt": 0}},
			bson.M{"$set": bson.M{"stock": 0}})
		s.partial(domain.ColProducts, it.ProductID, err)
	}
	_, err = s.col(domain.ColCarts).DeleteOne(ctx, bson.M{"_id": o.UserID})
	s.partial(domain.ColCarts, o.UserID, err)
	s.activity(ctx, domain.ActionOrderCreate, domain.ColOrders, o.ID,
		fmt.Sprintf("Order placed, %d item(s), total $%.2f", len(o.Items), o.Total))
	return o, nil
}

func (s *Store) OrderByID(ctx context.Context, id string) (*domain.Order, error) {
	return findOne[domain.Order](ctx, s.col(domain.ColOrders), bson.M{"_id": id})
}

func (s *Store) OrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return findAll[domain.Order](ctx, s.col(domain.ColOrders), bson.M{"user_id": userID},
		options.Find().SetSort(createdAsc))
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return findAll[domain.Order](ctx, s.col(domain.ColOrders), bson.M{},
		options.Find().SetSort(createdAsc))
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id, status string) error {
	if !domain.ValidOrderStatus(status) {
		return domain.Validationf("unknown order status %q", status)
	}
	o, err := s.OrderByID(ctx, id)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	_, err = s.col(domain.ColOrders).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updated_at": now()},
	})
	if err != nil {
		return mapErr(err)
	}
	s.activity(ctx, domain.ActionOrderStatus, domain.ColOrders, id,
		fmt.Sprintf("Status changed from %s to %s", o.Status, status))
	return nil
}
