package domain

import "time"

const (
	JobOpen      = "open"
	JobAccepted  = "accepted"
	JobCompleted = "completed"
	JobExpired   = "expired"
)

type Job struct {
	ID               string     `json:"id" bson:"_id"`
	Title            string     `json:"title" bson:"title"`
	Description      string     `json:"description,omitempty" bson:"description,omitempty"`
	CategoryID       string     `json:"categoryId" bson:"category_id"`
	Status           string     `json:"status" bson:"status"`
	CreatedByID      string     `json:"createdById" bson:"created_by_id"`
	CreatedByName    string     `json:"createdByName" bson:"created_by_name"`
	AcceptedByID     string     `json:"acceptedById,omitempty" bson:"accepted_by_id,omitempty"`
	AcceptedByName   string     `json:"acceptedByName,omitempty" bson:"accepted_by_name,omitempty"`
	Compensation     float64    `json:"compensation" bson:"compensation"`
	Location         string     `json:"location,omitempty" bson:"location,omitempty"`
	Urgent           bool       `json:"urgent" bson:"urgent"`
	Verified         bool       `json:"verified" bson:"verified"`
	CreatorReviewed  bool       `json:"creatorReviewed" bson:"creator_reviewed"`
	AcceptorReviewed bool       `json:"acceptorReviewed" bson:"acceptor_reviewed"`
	CreatedAt        time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" bson:"updated_at"`
	ExpiresAt        time.Time  `json:"expiresAt" bson:"expires_at"`
	AcceptedAt       *time.Time `json:"acceptedAt,omitempty" bson:"accepted_at,omitempty"`
}

// Terminal 完成/过期后不再参与撮合，聊天保持可读
func (j *Job) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobExpired
}

// Party 仅创建者与接单者可读写工单聊天
func (j *Job) Party(userID string) bool {
	return userID != "" && (userID == j.CreatedByID || userID == j.AcceptedByID)
}

type JobReview struct {
	ID           string    `json:"id" bson:"_id"`
	JobID        string    `json:"jobId" bson:"job_id"`
	ReviewerID   string    `json:"reviewerId" bson:"reviewer_id"`
	ReviewerName string    `json:"reviewerName" bson:"reviewer_name"`
	RevieweeID   string    `json:"revieweeId" bson:"reviewee_id"`
	RevieweeName string    `json:"revieweeName" bson:"reviewee_name"`
	Rating       int       `json:"rating" bson:"rating"`
	Comment      string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

type ChatMessage struct {
	ID         string    `json:"id" bson:"_id"`
	JobID      string    `json:"jobId" bson:"job_id"`
	SenderID   string    `json:"senderId" bson:"sender_id"`
	SenderName string    `json:"senderName" bson:"sender_name"`
	Text       string    `json:"text" bson:"text"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}
