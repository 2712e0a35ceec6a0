package domain

import "time"

type Review struct {
	ID        string    `json:"id" bson:"_id"`
	ProductID string    `json:"productId" bson:"product_id"`
	UserID    string    `json:"userId" bson:"user_id"`
	UserName  string    `json:"userName" bson:"user_name"`
	Rating    int       `json:"rating" bson:"rating"` // [1,5]
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}
