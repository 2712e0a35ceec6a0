package domain

import "time"

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// 徽章：永远由统计值重新推导，不作为独立事实存储
const (
	BadgeFirstJobDone  = "first-job-done"
	BadgeCommunityStar = "community-star"
	BadgeTopRated      = "top-rated"
)

type Address struct {
	RecipientName string `json:"recipientName,omitempty" bson:"recipient_name,omitempty"`
	AddressLine1  string `json:"addressLine1" bson:"address_line1"`
	AddressLine2  string `json:"addressLine2,omitempty" bson:"address_line2,omitempty"`
	City          string `json:"city" bson:"city"`
	State         string `json:"state" bson:"state"`
	PostalCode    string `json:"postalCode" bson:"postal_code"`
	PhoneNumber   string `json:"phoneNumber,omitempty" bson:"phone_number,omitempty"`
}

// UserStats 为派生缓存，可随时从 jobs/jobReviews 源数据重算
type UserStats struct {
	JobsCreated      int      `json:"jobsCreatedCount" bson:"jobs_created_count"`
	JobsCompleted    int      `json:"jobsCompletedCount" bson:"jobs_completed_count"`
	JobReviewCount   int      `json:"jobReviewCount" bson:"job_review_count"`
	AverageJobRating float64  `json:"averageJobRating" bson:"average_job_rating"`
	Badges           []string `json:"badges" bson:"badges"`
}

type User struct {
	ID           string     `json:"id" bson:"_id"`
	Email        string     `json:"email" bson:"email"`
	Name         string     `json:"name" bson:"name"`
	PasswordHash string     `json:"-" bson:"password_hash"`
	Role         string     `json:"role" bson:"role"` // "admin" / "customer"
	Theme        string     `json:"theme,omitempty" bson:"theme,omitempty"`
	Addresses    []Address  `json:"addresses,omitempty" bson:"addresses,omitempty"`
	Stats        UserStats  `json:"stats" bson:"stats"`
	CreatedAt    time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updated_at"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty" bson:"last_login_at,omitempty"`
	DeletedAt    *time.Time `json:"-" bson:"deleted_at,omitempty"`
}

// Deleted 软失效：被订单引用的用户不可硬删
func (u *User) Deleted() bool { return u.DeletedAt != nil }
