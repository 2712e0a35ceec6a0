package derive

import (
	"reflect"
	"testing"

	"go-markethub/internal/domain"
)

func TestBadges(t *testing.T) {
	tests := []struct {
		name string
		s    domain.UserStats
		want []string
	}{
		{"no activity", domain.UserStats{}, []string{}},
		{"one completed", domain.UserStats{JobsCompleted: 1}, []string{domain.BadgeFirstJobDone}},
		{"four completed still no star", domain.UserStats{JobsCompleted: 4}, []string{domain.BadgeFirstJobDone}},
		{"five completed adds star", domain.UserStats{JobsCompleted: 5},
			[]string{domain.BadgeFirstJobDone, domain.BadgeCommunityStar}},
		{"top rated needs a review", domain.UserStats{AverageJobRating: 5.0}, []string{}},
		{"top rated at 4.5", domain.UserStats{JobReviewCount: 2, AverageJobRating: 4.5},
			[]string{domain.BadgeTopRated}},
		{"below threshold", domain.UserStats{JobReviewCount: 2, AverageJobRating: 4.4}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Badges(tt.s)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Badges(%+v) = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}

func TestUserStats(t *testing.T) {
	jobs := []domain.Job{
		{ID: "j1", CreatedByID: "u1", AcceptedByID: "u2", Status: domain.JobCompleted},
		{ID: "j2", CreatedByID: "u1", Status: domain.JobOpen},
		{ID: "j3", CreatedByID: "u3", AcceptedByID: "u1", Status: domain.JobCompleted},
		{ID: "j4", CreatedByID: "u2", Status: domain.JobExpired},
	}
	reviews := []domain.JobReview{
		{JobID: "j1", ReviewerID: "u2", RevieweeID: "u1", Rating: 5},
		{JobID: "j3", ReviewerID: "u3", RevieweeID: "u1", Rating: 4},
		{JobID: "j1", ReviewerID: "u1", RevieweeID: "u2", Rating: 5},
	}

	s := UserStats("u1", jobs, reviews)
	if s.JobsCreated != 2 {
		t.Errorf("JobsCreated = %d, want 2", s.JobsCreated)
	}
	if s.JobsCompleted != 2 {
		t.Errorf("JobsCompleted = %d, want 2", s.JobsCompleted)
	}
	if s.JobReviewCount != 2 {
		t.Errorf("JobReviewCount = %d, want 2", s.JobReviewCount)
	}
	if s.AverageJobRating != 4.5 {
		t.Errorf("AverageJobRating = %v, want 4.5", s.AverageJobRating)
	}
	want := []string{domain.BadgeFirstJobDone, domain.BadgeTopRated}
	if !reflect.DeepEqual(s.Badges, want) {
		t.Errorf("Badges = %v, want %v", s.Badges, want)
	}

	// 与该用户无关的行不计入
	s3 := UserStats("u3", jobs, reviews)
	if s3.JobsCreated != 1 || s3.JobsCompleted != 1 || s3.JobReviewCount != 0 {
		t.Errorf("u3 stats = %+v", s3)
	}
}

func TestNotificationTemplates(t *testing.T) {
	n, ok := Notification(Event{
		Action: domain.ActionJobAccept, ActorID: "u2", ActorName: "Bob",
		TargetID: "u1", EntityType: "job", EntityID: "j1", EntityName: "Fix sink",
	})
	if !ok {
		t.Fatal("expected a notification for job accept")
	}
	if n.UserID != "u1" || n.Link != "/jobs/j1" {
		t.Fatalf("bad notification: %+v", n)
	}

	// 自己触发的动作不给自己发通知
	if _, ok := Notification(Event{Action: domain.ActionJobAccept, ActorID: "u1", TargetID: "u1"}); ok {
		t.Fatal("self-directed event should not notify")
	}
	// 未知动作不扇出
	if _, ok := Notification(Event{Action: "noop", TargetID: "u1"}); ok {
		t.Fatal("unknown action should not notify")
	}
	// 商品评论不扇出，商品没有可通知的卖家
	if _, ok := Notification(Event{
		Action: domain.ActionReviewCreate, ActorID: "u2", ActorName: "Bob",
		TargetID: "u1", EntityType: "product", EntityID: "p1", EntityName: "Mug",
	}); ok {
		t.Fatal("product review should not notify")
	}
}
