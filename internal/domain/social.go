package domain

import "time"

// WishlistItem 成员资格是集合语义，重复添加幂等
type WishlistItem struct {
	UserID    string    `json:"userId" bson:"user_id"`
	ProductID string    `json:"productId" bson:"product_id"`
	AddedAt   time.Time `json:"addedAt" bson:"added_at"`
}

type SavedJobItem struct {
	UserID  string    `json:"userId" bson:"user_id"`
	JobID   string    `json:"jobId" bson:"job_id"`
	AddedAt time.Time `json:"addedAt" bson:"added_at"`
}

type Notification struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"user_id"`
	Message   string    `json:"message" bson:"message"`
	Link      string    `json:"link,omitempty" bson:"link,omitempty"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}
