package derive

import (
	"go-markethub/internal/domain"
)

// UserStats 从工单与工单评价源数据全量重算一名用户的统计值。
// jobs 与 reviews 传全量集合即可，函数自行筛选与该用户相关的行。
func UserStats(userID string, jobs []domain.Job, reviews []domain.JobReview) domain.UserStats {
	var s domain.UserStats
	for _, j := range jobs {
		if j.CreatedByID == userID {
			s.JobsCreated++
		}
		if j.Status == domain.JobCompleted && (j.CreatedByID == userID || j.AcceptedByID == userID) {
			s.JobsCompleted++
		}
	}
	var sum int
	for _, r := range reviews {
		if r.RevieweeID == userID {
			s.JobReviewCount++
			sum += r.Rating
		}
	}
	if s.JobReviewCount > 0 {
		s.AverageJobRating = Round1(float64(sum) / float64(s.JobReviewCount))
	}
	s.Badges = Badges(s)
	return s
}

// Badges 徽章集合是统计值的纯函数，永不独立存储
func Badges(s domain.UserStats) []string {
	out := []string{}
	if s.JobsCompleted >= 1 {
		out = append(out, domain.BadgeFirstJobDone)
	}
	if s.JobsCompleted >= 5 {
		out = append(out, domain.BadgeCommunityStar)
	}
	if s.JobReviewCount >= 1 && s.AverageJobRating >= 4.5 {
		out = append(out, domain.BadgeTopRated)
	}
	return out
}
