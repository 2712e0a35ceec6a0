package localdb

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"go-markethub/internal/domain"
)

func emptyCart(userID string) *domain.Cart {
	return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}
}

func loadCart(tx *bolt.Tx, userID string) (*domain.Cart, error) {
	c, err := getJSON[domain.Cart](tx, domain.ColCarts, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return emptyCart(userID), nil
	}
	return c, nil
}

// CartByUser 无购物车视为空车，不报错
func (s *Store) CartByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	var out *domain.Cart
	err := s.view(func(tx *bolt.Tx) error {
		c, e := loadCart(tx, userID)
		out = c
		return e
	})
	return out, err
}

// AddCartItem 单价在首次加入时冻结；数量按当前库存钳位，
// 被钳位时购物车仍按钳位值落盘并返回 ErrStockLimit。
func (s *Store) AddCartItem(ctx context.Context, userID, productID string, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, domain.Validationf("quantity must be at least 1")
	}
	var out *domain.Cart
	var limited bool
	err := s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, productID)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		c, e := loadCart(tx, userID)
		if e != nil {
			return e
		}
		want := qty
		it := c.Item(productID)
		if it != nil {
			want = it.Quantity + qty
		}
		have := want
		if have > p.Stock {
			have = p.Stock
			limited = true
		}
		if have < 1 {
			// 库存为零：不落新条目，直接报限
			out = c
			return nil
		}
		if it != nil {
			it.Quantity = have
		} else {
			c.Items = append(c.Items, domain.CartItem{
				ProductID: productID,
				Quantity:  have,
				UnitPrice: p.Price, // 冻结
				Name:      p.Name,
				ImageID:   p.PrimaryImageID,
				AddedAt:   now(),
			})
		}
		c.UpdatedAt = now()
		out = c
		return putJSON(tx, domain.ColCarts, userID, c)
	})
	if err != nil {
		return nil, err
	}
	if limited {
		return out, domain.ErrStockLimit
	}
	return out, nil
}

func (s *Store) SetCartItemQty(ctx context.Context, userID, productID string, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, domain.Validationf("quantity must be at least 1")
	}
	var out *domain.Cart
	var limited bool
	err := s.update(func(tx *bolt.Tx) error {
		p, e := getJSON[domain.Product](tx, domain.ColProducts, productID)
		if e != nil {
			return e
		}
		if p == nil {
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		c, e := loadCart(tx, userID)
		if e != nil {
			return e
		}
		it := c.Item(productID)
		if it == nil {
			return fmt.Errorf("%w: cart item %s", domain.ErrNotFound, productID)
		}
		have := qty
		if have > p.Stock {
			have = p.Stock
			limited = true
		}
		if have < 1 {
			out = c
			return nil
		}
		it.Quantity = have
		c.UpdatedAt = now()
		out = c
		return putJSON(tx, domain.ColCarts, userID, c)
	})
	if err != nil {
		return nil, err
	}
	if limited {
		return out, domain.ErrStockLimit
	}
	return out, nil
}

func (s *Store) RemoveCartItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	var out *domain.Cart
	err := s.update(func(tx *bolt.Tx) error {
		c, e := loadCart(tx, userID)
		if e != nil {
			return e
		}
		items := c.Items[:0]
		for _, it := range c.Items {
			if it.ProductID != productID {
				items = append(items, it)
			}
		}
		c.Items = items
		c.UpdatedAt = now()
		out = c
		return putJSON(tx, domain.ColCarts, userID, c)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveForLater 条目移入稍后再买，冻结价随条目保留
func (s *Store) SaveForLater(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	var out *domain.Cart
	err := s.update(func(tx *bolt.Tx) error {
		c, e := loadCart(tx, userID)
		if e != nil {
			return e
		}
		idx := -1
		for i, it := range c.Items {
			if it.ProductID == productID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: cart item %s", domain.ErrNotFound, productID)
		}
		it := c.Items[idx]
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		c.SavedForLater = append(c.SavedForLater, it)
		c.UpdatedAt = now()
		out = c
		return putJSON(tx, domain.ColCarts, userID, c)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MoveToCart 从稍后再买挪回，数量重新按当前库存钳位
func (s *Store) MoveToCart(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	var out *domain.Cart
	var limited bool
	err := s.update(func(tx *bolt.Tx) error {
		c, e := loadCart(tx, userID)
		if e != nil {
			return e
		}
		idx := -1
		for i, it := range c.SavedForLater {
			if it.ProductID == productID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: saved item %s", domain.ErrNotFound, productID)
		}
		it := c.SavedForLater[idx]
		c.SavedForLater = append(c.SavedForLater[:idx], c.SavedForLater[idx+1:]...)

		p, e := getJSON[domain.Product](tx, domain.ColProducts, productID)
		if e != nil {
			return e
		}
		if p != nil && it.Quantity > p.Stock {
			it.Quantity = p.Stock
			limited = true
		}
		if p != nil && it.Quantity >= 1 {
			c.Items = append(c.Items, it)
		}
		c.UpdatedAt = now()
		out = c
		return putJSON(tx, domain.ColCarts, userID, c)
	})
	if err != nil {
		return nil, err
	}
	if limited {
		return out, domain.ErrStockLimit
	}
	return out, nil
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	return s.update(func(tx *bolt.Tx) error {
		return delKey(tx, domain.ColCarts, userID)
	})
}
