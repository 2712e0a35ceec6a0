package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-markethub/internal/core/auth"
	"go-markethub/internal/core/cache"
	"go-markethub/internal/domain"
	"go-markethub/internal/transport/http/ez"
	mdw "go-markethub/internal/transport/http/middleware"
)

// jobRoutes 零工板块：公开浏览 + 登录后的全生命周期操作
type jobRoutes struct {
	ds    func() domain.DataService
	jwter *auth.JWTer
	ch    *cache.Cache
}

func (m *jobRoutes) Priority() int { return 40 }

func (m *jobRoutes) MountAPI(g *gin.RouterGroup) {
	pub := ez.New(g, m.ds)

	// ---------- 公开浏览 ----------

	pub.GET("/job-categories", func(c *gin.Context, ds domain.DataService) (any, error) {
		out, err := cache.GetOrLoadJSON(m.ch, c.Request.Context(), cacheKeyJobCategories, browseCacheTTL,
			func(ctx context.Context) (*[]domain.JobCategory, error) {
				cats, e := ds.ListJobCategories(ctx)
				return &cats, e
			})
		if err != nil {
			return nil, err
		}
		if out == nil || *out == nil {
			return []domain.JobCategory{}, nil
		}
		return *out, nil
	})

	pub.GET("/jobs", func(c *gin.Context, ds domain.DataService) (any, error) {
		js, err := ds.ListJobs(c.Request.Context(), domain.JobFilter{
			Status:     c.Query("status"),
			CategoryID: c.Query("category"),
			Search:     c.Query("q"),
			CreatedBy:  c.Query("createdBy"),
			AcceptedBy: c.Query("acceptedBy"),
		})
		if err != nil {
			return nil, err
		}
		if js == nil {
			js = []domain.Job{}
		}
		return js, nil
	})

	pub.GET("/jobs/:id", func(c *gin.Context, ds domain.DataService) (any, error) {
		j, err := ds.JobByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			return nil, err
		}
		if j == nil {
			return nil, ez.NotFound("job not found")
		}
		return j, nil
	})

	pub.GET("/jobs/:id/reviews", func(c *gin.Context, ds domain.DataService) (any, error) {
		rs, err := ds.JobReviewsByJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			return nil, err
		}
		if rs == nil {
			rs = []domain.JobReview{}
		}
		return rs, nil
	})

	pub.GET("/users/:id/job-reviews", func(c *gin.Context, ds domain.DataService) (any, error) {
		rs, err := ds.JobReviewsForUser(c.Request.Context(), c.Param("id"))
		if err != nil {
			return nil, err
		}
		if rs == nil {
			rs = []domain.JobReview{}
		}
		return rs, nil
	})

	// ---------- 登录后操作 ----------

	au := g.Group("")
	au.Use(mdw.AuthJWT(m.jwter, ""))
	sec := ez.New(au, m.ds)

	type jobIn struct {
		Title        string  `json:"title"        binding:"required,max=140"`
		Description  string  `json:"description"  binding:"omitempty,max=4000"`
		CategoryID   string  `json:"categoryId"   binding:"required"`
		Compensation float64 `json:"compensation" binding:"min=0"`
		Location     string  `json:"location"     binding:"omitempty,max=140"`
		Urgent       bool    `json:"urgent"`
		ExpiresAt    *time.Time `json:"expiresAt"`
	}
	ez.RegisterAction(sec, ez.Action[jobIn, *domain.Job]{
		Method: http.MethodPost,
		Path:   "/jobs",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *jobIn) (*domain.Job, error) {
			j := &domain.Job{
				Title:        in.Title,
				Description:  in.Description,
				CategoryID:   in.CategoryID,
				Compensation: in.Compensation,
				Location:     in.Location,
				Urgent:       in.Urgent,
				CreatedByID:  c.GetString("userId"),
			}
			if in.ExpiresAt != nil {
				j.ExpiresAt = *in.ExpiresAt
			}
			return ds.CreateJob(c.Request.Context(), j)
		},
	})

	// ownJob 装载并校验归属（admin 放行）
	ownJob := func(c *gin.Context, ds domain.DataService) (*domain.Job, error) {
		j, err := ds.JobByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			return nil, err
		}
		if j == nil {
			return nil, ez.NotFound("job not found")
		}
		if j.CreatedByID != c.GetString("userId") && c.GetString("role") != domain.RoleAdmin {
			return nil, ez.Forbidden("not your job")
		}
		return j, nil
	}

	ez.RegisterAction(sec, ez.Action[jobIn, *domain.Job]{
		Method: http.MethodPut,
		Path:   "/jobs/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *jobIn) (*domain.Job, error) {
			j, err := ownJob(c, ds)
			if err != nil {
				return nil, err
			}
			j.Title = in.Title
			j.Description = in.Description
			j.CategoryID = in.CategoryID
			j.Compensation = in.Compensation
			j.Location = in.Location
			j.Urgent = in.Urgent
			if in.ExpiresAt != nil {
				j.ExpiresAt = *in.ExpiresAt
			}
			if err := ds.UpdateJob(c.Request.Context(), j); err != nil {
				return nil, err
			}
			return j, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/jobs/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			j, err := ownJob(c, ds)
			if err != nil {
				return nil, err
			}
			if err := ds.DeleteJob(c.Request.Context(), j.ID); err != nil {
				return nil, err
			}
			return gin.H{"id": j.ID}, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, *domain.Job]{
		Method: http.MethodPost,
		Path:   "/jobs/:id/accept",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (*domain.Job, error) {
			return ds.AcceptJob(c.Request.Context(), c.Param("id"), c.GetString("userId"))
		},
	})

	// 只有发布者（或管理员）能确认完成
	ez.RegisterAction(sec, ez.Action[struct{}, *domain.Job]{
		Method: http.MethodPost,
		Path:   "/jobs/:id/complete",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (*domain.Job, error) {
			j, err := ownJob(c, ds)
			if err != nil {
				return nil, err
			}
			return ds.CompleteJob(c.Request.Context(), j.ID)
		},
	})

	type jobReviewIn struct {
		Rating  int    `json:"rating"  binding:"required,min=1,max=5"`
		Comment string `json:"comment" binding:"omitempty,max=2000"`
	}
	ez.RegisterAction(sec, ez.Action[jobReviewIn, *domain.JobReview]{
		Method: http.MethodPost,
		Path:   "/jobs/:id/reviews",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *jobReviewIn) (*domain.JobReview, error) {
			return ds.CreateJobReview(c.Request.Context(), &domain.JobReview{
				JobID:      c.Param("id"),
				ReviewerID: c.GetString("userId"),
				Rating:     in.Rating,
				Comment:    in.Comment,
			})
		},
	})

	// ---------- 工单聊天 ----------

	sec.GET("/jobs/:id/chat", func(c *gin.Context, ds domain.DataService) (any, error) {
		ms, err := ds.ChatMessages(c.Request.Context(), c.Param("id"), c.GetString("userId"))
		if err != nil {
			return nil, err
		}
		if ms == nil {
			ms = []domain.ChatMessage{}
		}
		return ms, nil
	})

	type chatIn struct {
		Text string `json:"text" binding:"required,max=2000"`
	}
	ez.RegisterAction(sec, ez.Action[chatIn, *domain.ChatMessage]{
		Method: http.MethodPost,
		Path:   "/jobs/:id/chat",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *chatIn) (*domain.ChatMessage, error) {
			return ds.SendChatMessage(c.Request.Context(), &domain.ChatMessage{
				JobID:    c.Param("id"),
				SenderID: c.GetString("userId"),
				Text:     in.Text,
			})
		},
	})

	// ---------- 收藏的工单 ----------

	type toggleIn struct {
		On bool `json:"on"`
	}
	ez.RegisterAction(sec, ez.Action[toggleIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/saved-jobs/:jobId",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *toggleIn) (gin.H, error) {
			changed, err := ds.ToggleSavedJob(c.Request.Context(), c.GetString("userId"), c.Param("jobId"), in.On)
			if err != nil {
				return nil, err
			}
			return gin.H{"on": in.On, "changed": changed}, nil
		},
	})

	sec.GET("/saved-jobs", func(c *gin.Context, ds domain.DataService) (any, error) {
		js, err := ds.SavedJobs(c.Request.Context(), c.GetString("userId"))
		if err != nil {
			return nil, err
		}
		if js == nil {
			js = []domain.Job{}
		}
		return js, nil
	})
}
