package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-markethub/internal/domain"
)

func (s *Store) saveCart(ctx context.Context, c *domain.Cart) error {
	c.UpdatedAt = now()
	_, err := s.col(domain.ColCarts).ReplaceOne(ctx,
		bson.M{"_id": c.UserID}, c, options.Replace().SetUpsert(true))
	return mapErr(err)
}

func (s *Store) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	c, err := findOne[domain.Cart](ctx, s.col(domain.ColCarts), bson.M{"_id": userID})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
	}
	return c, nil
}

// CartByUser 无购物车视为空车，不报错
func (s *Store) CartByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.loadCart(ctx, userID)
}

// AddCartItem 单价首次加入时冻结；数量按当前库存钳位，
// 被钳位时购物车按钳位值落盘并返回 ErrStockLimit。
func (s *Store) AddCartItem(ctx context.Context, userID, productID string, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, domain.Validationf("quantity must be at least 1")
	}
	p, err := s.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	c, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	want := qty
	it := c.Item(productID)
	if it != nil {
		want = it.Quantity + qty
	}
	have := want
	limited := false
	if have > p.Stock {
		have = p.Stock
		limited = true
	}
	if have < 1 {
		return c, domain.ErrStockLimit
	}
	if it != nil {
		it.Quantity = have
	} else {
		c.Items = append(c.Items, domain.CartItem{
			ProductID: productID,
			Quantity:  have,
			UnitPrice: p.Price,
			Name:      p.Name,
			ImageID:   p.PrimaryImageID,
			AddedAt:   now(),
		})
	}
	if err := s.saveCart(ctx, c); err != nil {
		return nil, err
	}
	if limited {
		return c, domain.ErrStockLimit
	}
	return c, nil
}

func (s *Store) SetCartItemQty(ctx context.Context, userID, productID string, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, domain.Validationf("quantity must be at least 1")
	}
	p, err := s.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	c, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	it := c.Item(productID)
	if it == nil {
		return nil, fmt.Errorf("%w: cart item %s", domain.ErrNotFound, productID)
	}
	have := qty
	limited := false
	if have > p.Stock {
		have = p.Stock
		limited = true
	}
	if have < 1 {
		return c, domain.ErrStockLimit
	}
	it.Quantity = have
	if err := s.saveCart(ctx, c); err != nil {
		return nil, err
	}
	if limited {
		return c, domain.ErrStockLimit
	}
	return c, nil
}

func (s *Store) RemoveCartItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	c, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			items = append(items, it)
		}
	}
	c.Items = items
	if err := s.saveCart(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) SaveForLater(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	c, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, it := range c.Items {
		if it.ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: cart item %s", domain.ErrNotFound, productID)
	}
	it := c.Items[idx]
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.SavedForLater = append(c.SavedForLater, it)
	if err := s.saveCart(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// MoveToCart 从稍后再买挪回，数量重新按当前库存钳位
func (s *Store) MoveToCart(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	c, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, it := range c.SavedForLater {
		if it.ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: saved item %s", domain.ErrNotFound, productID)
	}
	it := c.SavedForLater[idx]
	c.SavedForLater = append(c.SavedForLater[:idx], c.SavedForLater[idx+1:]...)

	p, err := s.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	limited := false
	if p != nil && it.Quantity > p.Stock {
		it.Quantity = p.Stock
		limited = true
	}
	if p != nil && it.Quantity >= 1 {
		c.Items = append(c.Items, it)
	}
	if err := s.saveCart(ctx, c); err != nil {
		return nil, err
	}
	if limited {
		return c, domain.ErrStockLimit
	}
	return c, nil
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	_, err := s.col(domain.ColCarts).DeleteOne(ctx, bson.M{"_id": userID})
	return mapErr(err)
}
