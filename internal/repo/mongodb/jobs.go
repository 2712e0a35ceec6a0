package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-markethub/internal/derive"
	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

const defaultJobTTL = 30 * 24 * time.Hour

func (s *Store) CreateJob(ctx context.Context, j *domain.Job) (*domain.Job, error) {
	if strings.TrimSpace(j.Title) == "" {
		return nil, domain.Validationf("job title required")
	}
	c, err := s.JobCategoryByID(ctx, j.CategoryID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: job category %s", domain.ErrNotFound, j.CategoryID)
	}
	u, err := s.UserByID(ctx, j.CreatedByID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, j.CreatedByID)
	}
	t := now()
	j.ID = utils.NewID()
	j.Status = domain.JobOpen
	j.CreatedByName = u.Name
	j.AcceptedByID, j.AcceptedByName = "", ""
	j.CreatorReviewed, j.AcceptorReviewed = false, false
	j.CreatedAt, j.UpdatedAt = t, t
	if j.ExpiresAt.IsZero() {
		j.ExpiresAt = t.Add(defaultJobTTL)
	}
	if _, err := s.col(domain.ColJobs).InsertOne(ctx, j); err != nil {
		return nil, mapErr(err)
	}
	_, serr := s.recomputeUserStats(ctx, j.CreatedByID)
	s.partial(domain.ColUsers, j.CreatedByID, serr)
	s.activity(ctx, domain.ActionJobCreate, domain.ColJobs, j.ID,
		derive.DescribeCreate("job", j.Title))
	return j, nil
}

func (s *Store) JobByID(ctx context.Context, id string) (*domain.Job, error) {
	return findOne[domain.Job](ctx, s.col(domain.ColJobs), bson.M{"_id": id})
}

func (s *Store) ListJobs(ctx context.Context, f domain.JobFilter) ([]domain.Job, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.CategoryID != "" {
		filter["category_id"] = f.CategoryID
	}
	if f.CreatedBy != "" {
		filter["created_by_id"] = f.CreatedBy
	}
	if f.AcceptedBy != "" {
		filter["accepted_by_id"] = f.AcceptedBy
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
		filter["$or"] = []bson.M{{"title": re}, {"description": re}}
	}
	return findAll[domain.Job](ctx, s.col(domain.ColJobs), filter,
		options.Find().SetSort(createdAsc))
}

// UpdateJob 只允许开放态编辑业务字段，状态迁移走专用操作
func (s *Store) UpdateJob(ctx context.Context, j *domain.Job) error {
	old, err := s.JobByID(ctx, j.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, j.ID)
	}
	if old.Status != domain.JobOpen {
		return domain.Conflictf("job %s is %s, only open jobs can be edited", j.ID, old.Status)
	}
	if j.CategoryID != old.CategoryID {
		c, err := s.JobCategoryByID(ctx, j.CategoryID)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: job category %s", domain.ErrNotFound, j.CategoryID)
		}
	}
	_, err = s.col(domain.ColJobs).UpdateOne(ctx, bson.M{"_id": j.ID}, bson.M{
		"$set": bson.M{
			"title": j.Title, "description": j.Description,
			"category_id": j.CategoryID, "compensation": j.Compensation,
			"location": j.Location, "urgent": j.Urgent, "verified": j.Verified,
			"expires_at": j.ExpiresAt, "updated_at": now(),
		},
	})
	if err != nil {
		return mapErr(err)
	}
	j.Status = old.Status
	j.CreatedByID, j.CreatedByName = old.CreatedByID, old.CreatedByName
	s.activity(ctx, domain.ActionJobUpdate, domain.ColJobs, j.ID,
		derive.DescribeJobChange(old, j))
	return nil
}

// DeleteJob 仅开放态可删
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	j, err := s.JobByID(ctx, id)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	if j.Status != domain.JobOpen {
		return domain.Conflictf("job %s is %s and cannot be deleted", id, j.Status)
	}
	if _, err := s.col(domain.ColJobs).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return mapErr(err)
	}
	_, serr := s.recomputeUserStats(ctx, j.CreatedByID)
	s.partial(domain.ColUsers, j.CreatedByID, serr)
	s.activity(ctx, domain.ActionJobDelete, domain.ColJobs, id,
		derive.DescribeDelete("job", j.Title))
	return nil
}

// AcceptJob 状态前置条件放进过滤器，开放态检查与改写原子完成
func (s *Store) AcceptJob(ctx context.Context, jobID, acceptorID string) (*domain.Job, error) {
	j, err := s.JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	if j.Status != domain.JobOpen {
		return nil, domain.Conflictf("job %s is %s, not open", jobID, j.Status)
	}
	if acceptorID == j.CreatedByID {
		return nil, domain.Validationf("cannot accept your own job")
	}
	u, err := s.UserByID(ctx, acceptorID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, acceptorID)
	}
	t := now()
	res, err := s.col(domain.ColJobs).UpdateOne(ctx,
		bson.M{"_id": jobID, "status": domain.JobOpen},
		bson.M{"$set": bson.M{
			"status":           domain.JobAccepted,
			"accepted_by_id":   u.ID,
			"accepted_by_name": u.Name,
			"accepted_at":      t,
			"updated_at":       t,
		}})
	if err != nil {
		return nil, mapErr(err)
	}
	if res.ModifiedCount == 0 {
		return nil, domain.Conflictf("job %s is no longer open", jobID)
	}
	j.Status = domain.JobAccepted
	j.AcceptedByID, j.AcceptedByName = u.ID, u.Name
	j.AcceptedAt, j.UpdatedAt = &t, t
	s.activity(ctx, domain.ActionJobAccept, domain.ColJobs, jobID,
		fmt.Sprintf("Job %q accepted by %s", j.Title, u.Name))
	s.publish([]derive.Event{{
		Action:     domain.ActionJobAccept,
		ActorID:    u.ID,
		ActorName:  u.Name,
		TargetID:   j.CreatedByID,
		EntityType: domain.ColJobs,
		EntityID:   j.ID,
		EntityName: j.Title,
	}})
	return j, nil
}

func (s *Store) CompleteJob(ctx context.Context, jobID string) (*domain.Job, error) {
	j, err := s.JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	if j.Status != domain.JobAccepted {
		return nil, domain.Conflictf("job %s is %s, only accepted jobs can complete", jobID, j.Status)
	}
	t := now()
	res, err := s.col(domain.ColJobs).UpdateOne(ctx,
		bson.M{"_id": jobID, "status": domain.JobAccepted},
		bson.M{"$set": bson.M{"status": domain.JobCompleted, "updated_at": t}})
	if err != nil {
		return nil, mapErr(err)
	}
	if res.ModifiedCount == 0 {
		return nil, domain.Conflictf("job %s is no longer accepted", jobID)
	}
	j.Status = domain.JobCompleted
	j.UpdatedAt = t
	for _, uid := range []string{j.CreatedByID, j.AcceptedByID} {
		_, serr := s.recomputeUserStats(ctx, uid)
		s.partial(domain.ColUsers, uid, serr)
	}
	s.activity(ctx, domain.ActionJobComplete, domain.ColJobs, jobID,
		fmt.Sprintf("Job %q completed", j.Title))
	actor := domain.ActorFrom(ctx)
	var evs []derive.Event
	for _, uid := range []string{j.CreatedByID, j.AcceptedByID} {
		if uid == actor.ID {
			continue
		}
		evs = append(evs, derive.Event{
			Action:     domain.ActionJobComplete,
			ActorID:    actor.ID,
			TargetID:   uid,
			EntityType: domain.ColJobs,
			EntityID:   j.ID,
			EntityName: j.Title,
		})
	}
	s.publish(evs)
	return j, nil
}

// ExpireJobs 定时清扫：开放且过期的工单转为 expired
func (s *Store) ExpireJobs(ctx context.Context, ref time.Time) (int, error) {
	expired, err := findAll[domain.Job](ctx, s.col(domain.ColJobs), bson.M{
		"status":     domain.JobOpen,
		"expires_at": bson.M{"$lte": ref},
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, j := range expired {
		res, err := s.col(domain.ColJobs).UpdateOne(ctx,
			bson.M{"_id": j.ID, "status": domain.JobOpen},
			bson.M{"$set": bson.M{"status": domain.JobExpired, "updated_at": now()}})
		if err != nil {
			return n, mapErr(err)
		}
		if res.ModifiedCount == 0 {
			continue
		}
		s.activity(ctx, domain.ActionJobExpire, domain.ColJobs, j.ID,
			fmt.Sprintf("Job %q expired", j.Title))
		n++
	}
	return n, nil
}

// CreateJobReview 完成态双向互评，每方至多一条
func (s *Store) CreateJobReview(ctx context.Context, r *domain.JobReview) (*domain.JobReview, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return nil, domain.Validationf("rating must be in [1,5]")
	}
	j, err := s.JobByID(ctx, r.JobID)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, r.JobID)
	}
	if j.Status != domain.JobCompleted {
		return nil, domain.Conflictf("job %s is not completed", r.JobID)
	}
	if !j.Party(r.ReviewerID) {
		return nil, domain.Validationf("reviewer is not a party to job %s", r.JobID)
	}
	n, err := s.col(domain.ColJobReviews).CountDocuments(ctx, bson.M{
		"job_id": r.JobID, "reviewer_id": r.ReviewerID,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	if n > 0 {
		return nil, domain.Conflictf("job %s already reviewed by %s", r.JobID, r.ReviewerID)
	}
	reviewedFlag := "acceptor_reviewed"
	if r.ReviewerID == j.CreatedByID {
		r.RevieweeID, r.RevieweeName = j.AcceptedByID, j.AcceptedByName
		r.ReviewerName = j.CreatedByName
		reviewedFlag = "creator_reviewed"
	} else {
		r.RevieweeID, r.RevieweeName = j.CreatedByID, j.CreatedByName
		r.ReviewerName = j.AcceptedByName
	}
	r.ID = utils.NewID()
	r.CreatedAt = now()
	if _, err := s.col(domain.ColJobReviews).InsertOne(ctx, r); err != nil {
		return nil, mapErr(err)
	}
	_, uerr := s.col(domain.ColJobs).UpdateOne(ctx, bson.M{"_id": j.ID}, bson.M{
		"$set": bson.M{reviewedFlag: true, "updated_at": now()},
	})
	s.partial(domain.ColJobs, j.ID, uerr)
	_, serr := s.recomputeUserStats(ctx, r.RevieweeID)
	s.partial(domain.ColUsers, r.RevieweeID, serr)
	s.activity(ctx, domain.ActionJobReview, domain.ColJobs, j.ID,
		fmt.Sprintf("Review %d/5 for %s on job %q", r.Rating, r.RevieweeName, j.Title))
	s.publish([]derive.Event{{
		Action:     domain.ActionJobReview,
		ActorID:    r.ReviewerID,
		ActorName:  r.ReviewerName,
		TargetID:   r.RevieweeID,
		EntityType: domain.ColJobs,
		EntityID:   j.ID,
		EntityName: j.Title,
	}})
	return r, nil
}

func (s *Store) JobReviewsByJob(ctx context.Context, jobID string) ([]domain.JobReview, error) {
	return findAll[domain.JobReview](ctx, s.col(domain.ColJobReviews), bson.M{"job_id": jobID},
		options.Find().SetSort(createdAsc))
}

func (s *Store) JobReviewsForUser(ctx context.Context, revieweeID string) ([]domain.JobReview, error) {
	return findAll[domain.JobReview](ctx, s.col(domain.ColJobReviews), bson.M{"reviewee_id": revieweeID},
		options.Find().SetSort(createdAsc))
}

// SendChatMessage 双方可写；完成/过期后只读
func (s *Store) SendChatMessage(ctx context.Context, m *domain.ChatMessage) (*domain.ChatMessage, error) {
	if strings.TrimSpace(m.Text) == "" {
		return nil, domain.Validationf("message text required")
	}
	j, err := s.JobByID(ctx, m.JobID)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, m.JobID)
	}
	if !j.Party(m.SenderID) {
		return nil, domain.Validationf("sender is not a party to job %s", m.JobID)
	}
	if j.Terminal() {
		return nil, domain.Conflictf("job %s is %s, chat is read-only", m.JobID, j.Status)
	}
	if m.SenderName == "" {
		if u, err := s.UserByID(ctx, m.SenderID); err == nil && u != nil {
			m.SenderName = u.Name
		}
	}
	m.ID = utils.NewID()
	m.CreatedAt = now()
	if _, err := s.col(domain.ColChatMessages).InsertOne(ctx, m); err != nil {
		return nil, mapErr(err)
	}
	other := j.CreatedByID
	if m.SenderID == j.CreatedByID {
		other = j.AcceptedByID
	}
	if other != "" {
		s.publish([]derive.Event{{
			Action:     domain.ActionChatSend,
			ActorID:    m.SenderID,
			ActorName:  m.SenderName,
			TargetID:   other,
			EntityType: domain.ColJobs,
			EntityID:   j.ID,
			EntityName: j.Title,
		}})
	}
	return m, nil
}

// ChatMessages 仅当事双方可读，按发送顺序返回
func (s *Store) ChatMessages(ctx context.Context, jobID, requesterID string) ([]domain.ChatMessage, error) {
	j, err := s.JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	if !j.Party(requesterID) {
		return nil, domain.Validationf("requester is not a party to job %s", jobID)
	}
	return findAll[domain.ChatMessage](ctx, s.col(domain.ColChatMessages), bson.M{"job_id": jobID},
		options.Find().SetSort(createdAsc))
}
