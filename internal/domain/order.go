package domain

import "time"

const (
	OrderPending    = "Pending"
	OrderProcessing = "Processing"
	OrderShipped    = "Shipped"
	OrderDelivered  = "Delivered"
	OrderCancelled  = "Cancelled"
	OrderCompleted  = "Completed"
)

// OrderStatuses 合法状态全集，UpdateOrderStatus 校验用
var OrderStatuses = []string{
	OrderPending, OrderProcessing, OrderShipped,
	OrderDelivered, OrderCancelled, OrderCompleted,
}

type OrderItem struct {
	ProductID string  `json:"productId" bson:"product_id"`
	Name      string  `json:"name" bson:"name"`
	ImageID   string  `json:"imageId,omitempty" bson:"image_id,omitempty"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	UnitPrice float64 `json:"unitPrice" bson:"unit_price"` // 下单价冻结
}

type Order struct {
	ID              string      `json:"id" bson:"_id"`
	UserID          string      `json:"userId" bson:"user_id"`
	Items           []OrderItem `json:"items" bson:"items"`
	Total           float64     `json:"total" bson:"total"`
	Status          string      `json:"status" bson:"status"`
	ShippingAddress Address     `json:"shippingAddress" bson:"shipping_address"`
	CreatedAt       time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" bson:"updated_at"`
}

func ValidOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}
