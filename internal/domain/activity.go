package domain

import (
	"context"
	"time"
)

// 动作类型枚举，一次特权/记账动作恰好产生一条日志
const (
	ActionUserCreate     = "user.create"
	ActionUserUpdate     = "user.update"
	ActionUserDelete     = "user.delete"
	ActionUserLogin      = "user.login"
	ActionProductCreate  = "product.create"
	ActionProductUpdate  = "product.update"
	ActionProductDelete  = "product.delete"
	ActionCategoryCreate = "category.create"
	ActionCategoryUpdate = "category.update"
	ActionCategoryDelete = "category.delete"
	ActionOrderCreate    = "order.create"
	ActionOrderStatus    = "order.status"
	ActionReviewCreate   = "review.create"
	ActionReviewDelete   = "review.delete"
	ActionJobCreate      = "job.create"
	ActionJobUpdate      = "job.update"
	ActionJobDelete      = "job.delete"
	ActionJobAccept      = "job.accept"
	ActionJobComplete    = "job.complete"
	ActionJobExpire      = "job.expire"
	ActionJobReview      = "job.review"
	ActionWishlistToggle = "wishlist.toggle"
	ActionSavedJobToggle = "savedjob.toggle"
	ActionChatSend       = "chat.send"
	ActionDataSource     = "datasource.switch"
)

// ActivityLog 只追加，从不修改或删除
type ActivityLog struct {
	ID          string    `json:"id" bson:"_id"`
	ActorID     string    `json:"actorId" bson:"actor_id"`
	ActorEmail  string    `json:"actorEmail,omitempty" bson:"actor_email,omitempty"`
	ActorRole   string    `json:"actorRole,omitempty" bson:"actor_role,omitempty"`
	Action      string    `json:"action" bson:"action"`
	EntityType  string    `json:"entityType" bson:"entity_type"`
	EntityID    string    `json:"entityId" bson:"entity_id"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

type ActivityFilter struct {
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	Limit      int
}

// Actor 随 context 下传，后端据此落活动日志；缺省记为 system
type Actor struct {
	ID    string
	Email string
	Role  string
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Actor{ID: "system", Role: "system"}
}
