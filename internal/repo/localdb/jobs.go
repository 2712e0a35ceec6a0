package localdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"go-markethub/internal/derive"
	"go-markethub/internal/domain"
	"go-markethub/pkg/utils"
)

const defaultJobTTL = 30 * 24 * time.Hour

func (s *Store) CreateJob(ctx context.Context, j *domain.Job) (*domain.Job, error) {
	if strings.TrimSpace(j.Title) == "" {
		return nil, domain.Validationf("job title required")
	}
	err := s.update(func(tx *bolt.Tx) error {
		c, e := getJSON[domain.JobCategory](tx, domain.ColJobCategories, j.CategoryID)
		if e != nil {
			return e
		}
		if c == nil {
			return fmt.Errorf("%w: job category %s", domain.ErrNotFound, j.CategoryID)
		}
		u, e := getJSON[domain.User](tx, domain.ColUsers, j.CreatedByID)
		if e != nil {
			return e
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, j.CreatedByID)
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
		if e := putJSON(tx, domain.ColJobs, j.ID, j); e != nil {
			return e
		}
		if _, e := recomputeUserStatsTx(tx, j.CreatedByID); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionJobCreate, domain.ColJobs, j.ID,
			derive.DescribeCreate("job", j.Title))
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) JobByID(ctx context.Context, id string) (*domain.Job, error) {
	var out *domain.Job
	err := s.view(func(tx *bolt.Tx) error {
		v, e := getJSON[domain.Job](tx, domain.ColJobs, id)
		out = v
		return e
	})
	return out, err
}

func (s *Store) ListJobs(ctx context.Context, f domain.JobFilter) ([]domain.Job, error) {
	var out []domain.Job
	err := s.view(func(tx *bolt.Tx) error {
		js, e := allJSON[domain.Job](tx, domain.ColJobs)
		if e != nil {
			return e
		}
		for _, j := range js {
			if f.Status != "" && j.Status != f.Status {
				continue
			}
			if f.CategoryID != "" && j.CategoryID != f.CategoryID {
				continue
			}
			if f.CreatedBy != "" && j.CreatedByID != f.CreatedBy {
				continue
			}
			if f.AcceptedBy != "" && j.AcceptedByID != f.AcceptedBy {
				continue
			}
			if f.Search != "" {
				q := strings.ToLower(f.Search)
				if !strings.Contains(strings.ToLower(j.Title), q) &&
					!strings.Contains(strings.ToLower(j.Description), q) {
					continue
				}
			}
			out = append(out, j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(j domain.Job) time.Time { return j.CreatedAt }, func(j domain.Job) string { return j.ID })
	return out, nil
}

// UpdateJob 只允许开放态编辑业务字段，状态迁移走专用操作
func (s *Store) UpdateJob(ctx context.Context, j *domain.Job) error {
	return s.update(func(tx *bolt.Tx) error {
		old, e := getJSON[domain.Job](tx, domain.ColJobs, j.ID)
		if e != nil {
			return e
		}
		if old == nil {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, j.ID)
		}
		if old.Status != domain.JobOpen {
			return domain.Conflictf("job %s is %s, only open jobs can be edited", j.ID, old.Status)
		}
		if j.CategoryID != old.CategoryID {
			c, e2 := getJSON[domain.JobCategory](tx, domain.ColJobCategories, j.CategoryID)
			if e2 != nil {
				return e2
			}
			if c == nil {
				return fmt.Errorf("%w: job category %s", domain.ErrNotFound, j.CategoryID)
			}
		}
		// 状态机与归属字段不可经由 Update 改写
		j.Status = old.Status
		j.CreatedByID, j.CreatedByName = old.CreatedByID, old.CreatedByName
		j.AcceptedByID, j.AcceptedByName = old.AcceptedByID, old.AcceptedByName
		j.CreatorReviewed, j.AcceptorReviewed = old.CreatorReviewed, old.AcceptorReviewed
		j.CreatedAt, j.AcceptedAt = old.CreatedAt, old.AcceptedAt
		j.UpdatedAt = now()
		if e := putJSON(tx, domain.ColJobs, j.ID, j); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionJobUpdate, domain.ColJobs, j.ID,
			derive.DescribeJobChange(old, j))
	})
}

// DeleteJob 仅开放态可删；已接单/已完成的工单是双方记录，不可抹除
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		j, e := getJSON[domain.Job](tx, domain.ColJobs, id)
		if e != nil {
			return e
		}
		if j == nil {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
		}
		if j.Status != domain.JobOpen {
			return domain.Conflictf("job %s is %s and cannot be deleted", id, j.Status)
		}
		if e := delKey(tx, domain.ColJobs, id); e != nil {
			return e
		}
		if _, e := recomputeUserStatsTx(tx, j.CreatedByID); e != nil {
			return e
		}
		return activity(tx, ctx, domain.ActionJobDelete, domain.ColJobs, id,
			derive.DescribeDelete("job", j.Title))
	})
}

func (s *Store) AcceptJob(ctx context.Context, jobID, acceptorID string) (*domain.Job, error) {
	var out *domain.Job
	var evs []derive.Event
	err := s.update(func(tx *bolt.Tx) error {
		j, e := getJSON[domain.Job](tx, domain.ColJobs, jobID)
		if e != nil {
			return e
		}
		if j == nil {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		if j.Status != domain.JobOpen {
			return domain.Conflictf("job %s is %s, not open", jobID, j.Status)
		}
		if acceptorID == j.CreatedByID {
			return domain.Validationf("cannot accept your own job")
		}
		u, e := getJSON[domain.User](tx, domain.ColUsers, acceptorID)
		if e != nil {
			return e
		}
		if u == nil {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, acceptorID)
		}
		t := now()
		j.Status = domain.JobAccepted
		j.AcceptedByID, j.AcceptedByName = u.ID, u.Name
		j.AcceptedAt = &t
		j.UpdatedAt = t
		if e := putJSON(tx, domain.ColJobs, jobID, j); e != nil {
			return e
		}
		out = j
		evs = append(evs, derive.Event{
			Action:     domain.ActionJobAccept,
			ActorID:    u.ID,
			ActorName:  u.Name,
			TargetID:   j.CreatedByID,
			EntityType: domain.ColJobs,
			EntityID:   j.ID,
			EntityName: j.Title,
		})
		return activity(tx, ctx, domain.ActionJobAccept, domain.ColJobs, jobID,
			fmt.Sprintf("Job %q accepted by %s", j.Title, u.Name))
	})
	if err != nil {
		return nil, err
	}
	s.publish(evs)
	return out, nil
}

// CompleteJob 接单态收口为完成态，双方统计同事务重算
func (s *Store) CompleteJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var out *domain.Job
	var evs []derive.Event
	err := s.update(func(tx *bolt.Tx) error {
		j, e := getJSON[domain.Job](tx, domain.ColJobs, jobID)
		if e != nil {
			return e
		}
		if j == nil {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		if j.Status != domain.JobAccepted {
			return domain.Conflictf("job %s is %s, only accepted jobs can complete", jobID, j.Status)
		}
		j.Status = domain.JobCompleted
		j.UpdatedAt = now()
		if e := putJSON(tx, domain.ColJobs, jobID, j); e != nil {
			return e
		}
		for _, uid := range []string{j.CreatedByID, j.AcceptedByID} {
			if _, e := recomputeUserStatsTx(tx, uid); e != nil {
				return e
			}
		}
		out = j
		actor := domain.ActorFrom(ctx)
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
		return activity(tx, ctx, domain.ActionJobComplete, domain.ColJobs, jobID,
			fmt.Sprintf("Job %q completed", j.Title))
	})
	if err != nil {
		return nil, err
	}
	s.publish(evs)
	return out, nil
}

// ExpireJobs 定时清扫：开放且过期的工单转为 expired，返回处理条数
func (s *Store) ExpireJobs(ctx context.Context, ref time.Time) (int, error) {
	var n int
	err := s.update(func(tx *bolt.Tx) error {
		js, e := allJSON[domain.Job](tx, domain.ColJobs)
		if e != nil {
			return e
		}
		for _, j := range js {
			if j.Status != domain.JobOpen || j.ExpiresAt.After(ref) {
				continue
			}
			j.Status = domain.JobExpired
			j.UpdatedAt = now()
			if e := putJSON(tx, domain.ColJobs, j.ID, j); e != nil {
				return e
			}
			if e := activity(tx, ctx, domain.ActionJobExpire, domain.ColJobs, j.ID,
				fmt.Sprintf("Job %q expired", j.Title)); e != nil {
				return e
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CreateJobReview 完成态双向互评：每方至多一条，落盘同时置位
// 对应 reviewed 标记并重算被评人统计。
func (s *Store) CreateJobReview(ctx context.Context, r *domain.JobReview) (*domain.JobReview, error) {
	if r.Rating < 1 || r.Rating > 5 {
		return nil, domain.Validationf("rating must be in [1,5]")
	}
	var evs []derive.Event
	err := s.update(func(tx *bolt.Tx) error {
		j, e := getJSON[domain.Job](tx, domain.ColJobs, r.JobID)
		if e != nil {
			return e
		}
		if j == nil {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, r.JobID)
		}
		if j.Status != domain.JobCompleted {
			return domain.Conflictf("job %s is not completed", r.JobID)
		}
		if !j.Party(r.ReviewerID) {
			return domain.Validationf("reviewer is not a party to job %s", r.JobID)
		}
		all, e := allJSON[domain.JobReview](tx, domain.ColJobReviews)
		if e != nil {
			return e
		}
		for _, prev := range all {
			if prev.JobID == r.JobID && prev.ReviewerID == r.ReviewerID {
				return domain.Conflictf("job %s already reviewed by %s", r.JobID, r.ReviewerID)
			}
		}
		// 被评人恒为对方
		if r.ReviewerID == j.CreatedByID {
			r.RevieweeID, r.RevieweeName = j.AcceptedByID, j.AcceptedByName
			r.ReviewerName = j.CreatedByName
			j.CreatorReviewed = true
		} else {
			r.RevieweeID, r.RevieweeName = j.CreatedByID, j.CreatedByName
			r.ReviewerName = j.AcceptedByName
			j.AcceptorReviewed = true
		}
		r.ID = utils.NewID()
		r.CreatedAt = now()
		if e := putJSON(tx, domain.ColJobReviews, r.ID, r); e != nil {
			return e
		}
		j.UpdatedAt = now()
		if e := putJSON(tx, domain.ColJobs, j.ID, j); e != nil {
			return e
		}
		if _, e := recomputeUserStatsTx(tx, r.RevieweeID); e != nil {
			return e
		}
		evs = append(evs, derive.Event{
			Action:     domain.ActionJobReview,
			ActorID:    r.ReviewerID,
			ActorName:  r.ReviewerName,
			TargetID:   r.RevieweeID,
			EntityType: domain.ColJobs,
			EntityID:   j.ID,
			EntityName: j.Title,
		})
		return activity(tx, ctx, domain.ActionJobReview, domain.ColJobs, j.ID,
			fmt.Sprintf("Review %d/5 for %s on job %q", r.Rating, r.RevieweeName, j.Title))
	})
	if err != nil {
		return nil, err
	}
	s.publish(evs)
	return r, nil
}

func (s *Store) JobReviewsByJob(ctx context.Context, jobID string) ([]domain.JobReview, error) {
	return s.jobReviews(func(r domain.JobReview) bool { return r.JobID == jobID })
}

func (s *Store) JobReviewsForUser(ctx context.Context, revieweeID string) ([]domain.JobReview, error) {
	return s.jobReviews(func(r domain.JobReview) bool { return r.RevieweeID == revieweeID })
}

func (s *Store) jobReviews(keep func(domain.JobReview) bool) ([]domain.JobReview, error) {
	var out []domain.JobReview
	err := s.view(func(tx *bolt.Tx) error {
		rs, e := allJSON[domain.JobReview](tx, domain.ColJobReviews)
		if e != nil {
			return e
		}
		for _, r := range rs {
			if keep(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(r domain.JobReview) time.Time { return r.CreatedAt }, func(r domain.JobReview) string { return r.ID })
	return out, nil
}

// SendChatMessage 双方可写；完成/过期后只读
func (s *Store) SendChatMessage(ctx context.Context, m *domain.ChatMessage) (*domain.ChatMessage, error) {
	if strings.TrimSpace(m.Text) == "" {
		return nil, domain.Validationf("message text required")
	}
	var evs []derive.Event
	err := s.update(func(tx *bolt.Tx) error {
		j, e := getJSON[domain.Job](tx, domain.ColJobs, m.JobID)
		if e != nil {
			return e
		}
		if j == nil {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, m.JobID)
		}
		if !j.Party(m.SenderID) {
			return domain.Validationf("sender is not a party to job %s", m.JobID)
		}
		if j.Terminal() {
			return domain.Conflictf("job %s is %s, chat is read-only", m.JobID, j.Status)
		}
		u, e := getJSON[domain.User](tx, domain.ColUsers, m.SenderID)
		if e != nil {
			return e
		}
		if u != nil && m.SenderName == "" {
			m.SenderName = u.Name
		}
		m.ID = utils.NewID()
		m.CreatedAt = now()
		if e := putJSON(tx, domain.ColChatMessages, m.ID, m); e != nil {
			return e
		}
		other := j.CreatedByID
		if m.SenderID == j.CreatedByID {
			other = j.AcceptedByID
		}
		if other != "" {
			evs = append(evs, derive.Event{
				Action:     domain.ActionChatSend,
				ActorID:    m.SenderID,
				ActorName:  m.SenderName,
				TargetID:   other,
				EntityType: domain.ColJobs,
				EntityID:   j.ID,
				EntityName: j.Title,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(evs)
	return m, nil
}

// ChatMessages 仅当事双方可读，按发送顺序返回
func (s *Store) ChatMessages(ctx context.Context, jobID, requesterID string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := s.view(func(tx *bolt.Tx) error {
		j, e := getJSON[domain.Job](tx, domain.ColJobs, jobID)
		if e != nil {
			return e
		}
		if j == nil {
			return fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		if !j.Party(requesterID) {
			return domain.Validationf("requester is not a party to job %s", jobID)
		}
		ms, e := allJSON[domain.ChatMessage](tx, domain.ColChatMessages)
		if e != nil {
			return e
		}
		for _, m := range ms {
			if m.JobID == jobID {
				out = append(out, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	byCreated(out, func(m domain.ChatMessage) time.Time { return m.CreatedAt }, func(m domain.ChatMessage) string { return m.ID })
	return out, nil
}
