package domain

import "time"

// CartItem 的 UnitPrice 在加购时冻结，后续不随商品价格变动
type CartItem struct {
	ProductID string    `json:"productId" bson:"product_id"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	UnitPrice float64   `json:"unitPrice" bson:"unit_price"`
	Name      string    `json:"name" bson:"name"`
	ImageID   string    `json:"imageId,omitempty" bson:"image_id,omitempty"`
	AddedAt   time.Time `json:"addedAt" bson:"added_at"`
}

// Cart 以用户 id 为主键，一人一车
type Cart struct {
	UserID        string     `json:"userId" bson:"_id"`
	Items         []CartItem `json:"items" bson:"items"`
	SavedForLater []CartItem `json:"savedForLater,omitempty" bson:"saved_for_later,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updated_at"`
}

func (c *Cart) Item(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) Total() float64 {
	var t float64
	for _, it := range c.Items {
		t += it.UnitPrice * float64(it.Quantity)
	}
	return t
}
