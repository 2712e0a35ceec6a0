package router

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-markethub/internal/aihelper"
	"go-markethub/internal/core/cache"
	"go-markethub/internal/datasource"
	"go-markethub/internal/domain"
	"go-markethub/internal/transport/http/ez"
	mdw "go-markethub/internal/transport/http/middleware"
	"go-markethub/pkg/utils"
)

// 单张商品图上限，与前端约定一致
const maxImageBytes = 5 << 20

// adminRoutes 管理端接口集中在这里注册，分组已要求 admin 角色
type adminRoutes struct {
	ds  func() domain.DataService
	sel *datasource.Selector
	ch  *cache.Cache
}

func (m *adminRoutes) MountAdmin(g *gin.RouterGroup) {
	sec := ez.New(g, m.ds)

	// 目录类写操作之后失效浏览缓存
	invalidate := func(c *gin.Context) {
		m.ch.Invalidate(c.Request.Context(), cacheKeyCategories, cacheKeyProducts, cacheKeyJobCategories)
	}

	// ---------- 用户 ----------

	sec.GET("/users", func(c *gin.Context, ds domain.DataService) (any, error) {
		us, err := ds.ListUsers(c.Request.Context())
		if err != nil {
			return nil, err
		}
		if us == nil {
			us = []domain.User{}
		}
		return us, nil
	})

	sec.GET("/users/:id", func(c *gin.Context, ds domain.DataService) (any, error) {
		u, err := ds.UserByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, ez.NotFound("user not found")
		}
		return u, nil
	})

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/users/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := ds.DeleteUser(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, *domain.UserStats]{
		Method: http.MethodPost,
		Path:   "/users/:id/recompute-stats",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (*domain.UserStats, error) {
			return ds.RecomputeUserStats(c.Request.Context(), c.Param("id"))
		},
	})

	// ---------- 商品分类 ----------

	type categoryIn struct {
		Name        string `json:"name"        binding:"required,max=64"`
		Slug        string `json:"slug"        binding:"required,max=64"`
		Description string `json:"description" binding:"omitempty,max=512"`
		Ordering    int    `json:"ordering"`
		Active      bool   `json:"active"`
	}
	ez.RegisterAction(sec, ez.Action[categoryIn, *domain.Category]{
		Method: http.MethodPost,
		Path:   "/categories",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *categoryIn) (*domain.Category, error) {
			out, err := ds.CreateCategory(c.Request.Context(), &domain.Category{
				Name: in.Name, Slug: in.Slug, Description: in.Description,
				Ordering: in.Ordering, Active: in.Active,
			})
			if err != nil {
				return nil, err
			}
			invalidate(c)
			return out, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[categoryIn, *domain.Category]{
		Method: http.MethodPut,
		Path:   "/categories/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *categoryIn) (*domain.Category, error) {
			ctx := c.Request.Context()
			cat, err := ds.CategoryByID(ctx, c.Param("id"))
			if err != nil {
				return nil, err
			}
			if cat == nil {
				return nil, ez.NotFound("category not found")
			}
			cat.Name, cat.Slug, cat.Description = in.Name, in.Slug, in.Description
			cat.Ordering, cat.Active = in.Ordering, in.Active
			if err := ds.UpdateCategory(ctx, cat); err != nil {
				return nil, err
			}
			invalidate(c)
			return cat, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/categories/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := ds.DeleteCategory(c.Request.Context(), id); err != nil {
				return nil, err
			}
			invalidate(c)
			return gin.H{"id": id}, nil
		},
	})

	// ---------- 职位分类 ----------

	ez.RegisterAction(sec, ez.Action[categoryIn, *domain.JobCategory]{
		Method: http.MethodPost,
		Path:   "/job-categories",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *categoryIn) (*domain.JobCategory, error) {
			out, err := ds.CreateJobCategory(c.Request.Context(), &domain.JobCategory{
				Name: in.Name, Slug: in.Slug, Description: in.Description,
				Ordering: in.Ordering, Active: in.Active,
			})
			if err != nil {
				return nil, err
			}
			invalidate(c)
			return out, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[categoryIn, *domain.JobCategory]{
		Method: http.MethodPut,
		Path:   "/job-categories/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *categoryIn) (*domain.JobCategory, error) {
			ctx := c.Request.Context()
			cat, err := ds.JobCategoryByID(ctx, c.Param("id"))
			if err != nil {
				return nil, err
			}
			if cat == nil {
				return nil, ez.NotFound("job category not found")
			}
			cat.Name, cat.Slug, cat.Description = in.Name, in.Slug, in.Description
			cat.Ordering, cat.Active = in.Ordering, in.Active
			if err := ds.UpdateJobCategory(ctx, cat); err != nil {
				return nil, err
			}
			invalidate(c)
			return cat, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/job-categories/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := ds.DeleteJobCategory(c.Request.Context(), id); err != nil {
				return nil, err
			}
			invalidate(c)
			return gin.H{"id": id}, nil
		},
	})

	// ---------- 商品 ----------

	type productIn struct {
		Name        string  `json:"name"        binding:"required,max=140"`
		Description string  `json:"description" binding:"omitempty,max=4000"`
		Price       float64 `json:"price"       binding:"min=0"`
		Stock       int     `json:"stock"       binding:"min=0"`
		CategoryID  string  `json:"categoryId"  binding:"required"`
	}
	ez.RegisterAction(sec, ez.Action[productIn, *domain.Product]{
		Method: http.MethodPost,
		Path:   "/products",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *productIn) (*domain.Product, error) {
			out, err := ds.CreateProduct(c.Request.Context(), &domain.Product{
				Name: in.Name, Description: in.Description,
				Price: in.Price, Stock: in.Stock, CategoryID: in.CategoryID,
			})
			if err != nil {
				return nil, err
			}
			invalidate(c)
			return out, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[productIn, *domain.Product]{
		Method: http.MethodPut,
		Path:   "/products/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *productIn) (*domain.Product, error) {
			ctx := c.Request.Context()
			p, err := ds.ProductByID(ctx, c.Param("id"))
			if err != nil {
				return nil, err
			}
			if p == nil {
				return nil, ez.NotFound("product not found")
			}
			p.Name, p.Description = in.Name, in.Description
			p.Price, p.Stock, p.CategoryID = in.Price, in.Stock, in.CategoryID
			if err := ds.UpdateProduct(ctx, p); err != nil {
				return nil, err
			}
			invalidate(c)
			return p, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/products/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := ds.DeleteProduct(c.Request.Context(), id); err != nil {
				return nil, err
			}
			invalidate(c)
			return gin.H{"id": id}, nil
		},
	})

	// 多图上传：字段名 files，首图在商品没有主图时顺手设为主图
	ez.POSTFILES(sec, "/products/:id/images", "files",
		func(c *gin.Context, ds domain.DataService, files []*multipart.FileHeader) (any, error) {
			ctx := c.Request.Context()
			productID := c.Param("id")
			p, err := ds.ProductByID(ctx, productID)
			if err != nil {
				return nil, err
			}
			if p == nil {
				return nil, ez.NotFound("product not found")
			}

			var ids []string
			for _, fh := range files {
				if fh.Size > maxImageBytes {
					return nil, ez.BadRequest("image too large: " + fh.Filename)
				}
				f, err := fh.Open()
				if err != nil {
					return nil, ez.BadRequest("open upload: " + err.Error())
				}
				data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
				_ = f.Close()
				if err != nil {
					return nil, ez.Internal("read upload failed", err)
				}
				blobID := utils.NewID()
				if err := ds.PutBlob(ctx, blobID, data); err != nil {
					return nil, err
				}
				if err := ds.AddProductImage(ctx, productID, blobID); err != nil {
					return nil, err
				}
				ids = append(ids, blobID)
			}
			if p.PrimaryImageID == "" && len(ids) > 0 {
				if err := ds.SetPrimaryImage(ctx, productID, ids[0]); err != nil {
					return nil, err
				}
			}
			invalidate(c)
			return gin.H{"blobIds": ids}, nil
		})

	type primaryIn struct {
		BlobID string `json:"blobId" binding:"required"`
	}
	ez.RegisterAction(sec, ez.Action[primaryIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/products/:id/primary-image",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *primaryIn) (gin.H, error) {
			if err := ds.SetPrimaryImage(c.Request.Context(), c.Param("id"), in.BlobID); err != nil {
				return nil, err
			}
			invalidate(c)
			return gin.H{"blobId": in.BlobID}, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/products/:id/images/:blobId",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			blobID := c.Param("blobId")
			if err := ds.RemoveProductImage(c.Request.Context(), c.Param("id"), blobID); err != nil {
				return nil, err
			}
			invalidate(c)
			return gin.H{"blobId": blobID}, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, *domain.Product]{
		Method: http.MethodPost,
		Path:   "/products/:id/recompute-rating",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (*domain.Product, error) {
			return ds.RecomputeProductRating(c.Request.Context(), c.Param("id"))
		},
	})

	// 演示数据：生成 N 个假商品，分类在现有分类里轮转
	type mockIn struct {
		Count int `json:"count" binding:"required,min=1,max=100"`
	}
	ez.RegisterAction(sec, ez.Action[mockIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/mock-products",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *mockIn) (gin.H, error) {
			ctx := c.Request.Context()
			cats, err := ds.ListCategories(ctx)
			if err != nil {
				return nil, err
			}
			if len(cats) == 0 {
				return nil, ez.BadRequest("no categories to assign")
			}
			mocks := aihelper.MockProducts(in.Count)
			var ids []string
			for i := range mocks {
				mocks[i].CategoryID = cats[i%len(cats)].ID
				p, err := ds.CreateProduct(ctx, &mocks[i])
				if err != nil {
					return nil, err
				}
				ids = append(ids, p.ID)
			}
			invalidate(c)
			return gin.H{"created": len(ids), "ids": ids}, nil
		},
	})

	// ---------- 订单 ----------

	sec.GET("/orders", func(c *gin.Context, ds domain.DataService) (any, error) {
		os, err := ds.ListOrders(c.Request.Context())
		if err != nil {
			return nil, err
		}
		if os == nil {
			os = []domain.Order{}
		}
		return os, nil
	})

	type statusIn struct {
		Status string `json:"status" binding:"required"`
	}
	ez.RegisterAction(sec, ez.Action[statusIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/orders/:id/status",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *statusIn) (gin.H, error) {
			id := c.Param("id")
			if err := ds.UpdateOrderStatus(c.Request.Context(), id, in.Status); err != nil {
				return nil, err
			}
			return gin.H{"id": id, "status": in.Status}, nil
		},
	})

	// ---------- 评价治理 ----------

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/reviews/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := ds.DeleteReview(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	// ---------- 活动日志 ----------

	type activityQ struct {
		Actor      string `form:"actor"`
		EntityType string `form:"entityType"`
		EntityID   string `form:"entityId"`
		Action     string `form:"action"`
		Limit      int    `form:"limit,default=100"`
	}
	ez.RegisterAction(sec, ez.Action[activityQ, []domain.ActivityLog]{
		Method: http.MethodGet,
		Path:   "/activity",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, ds domain.DataService, in *activityQ) ([]domain.ActivityLog, error) {
			if in.Limit <= 0 || in.Limit > 1000 {
				in.Limit = 100
			}
			logs, err := ds.ListActivity(c.Request.Context(), domain.ActivityFilter{
				ActorID:    in.Actor,
				EntityType: in.EntityType,
				EntityID:   in.EntityID,
				Action:     in.Action,
				Limit:      in.Limit,
			})
			if err != nil {
				return nil, err
			}
			if logs == nil {
				logs = []domain.ActivityLog{}
			}
			return logs, nil
		},
	})

	// ---------- 数据源 ----------

	sec.GET("/datasource", func(c *gin.Context, _ domain.DataService) (any, error) {
		return gin.H{"mode": m.sel.Mode()}, nil
	})

	type dsIn struct {
		Mode string `json:"mode" binding:"required"`
	}
	ez.RegisterAction(sec, ez.Action[dsIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/datasource",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ domain.DataService, in *dsIn) (gin.H, error) {
			if err := m.sel.Use(c.Request.Context(), in.Mode); err != nil {
				return nil, err
			}
			mdw.SetDataSourceGauge(m.sel.Mode())
			invalidate(c)
			return gin.H{"mode": m.sel.Mode()}, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/reconcile",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			if err := ds.Reconcile(c.Request.Context()); err != nil {
				return nil, err
			}
			invalidate(c)
			return gin.H{"ok": 1}, nil
		},
	})

	// ---------- 站点设置 ----------

	sec.GET("/settings/:key", func(c *gin.Context, ds domain.DataService) (any, error) {
		s, err := ds.Setting(c.Request.Context(), c.Param("key"))
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, ez.NotFound("setting not found")
		}
		return s, nil
	})

	type settingIn struct {
		Value string `json:"value" binding:"max=4096"`
	}
	ez.RegisterAction(sec, ez.Action[settingIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/settings/:key",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *settingIn) (gin.H, error) {
			key := c.Param("key")
			if err := ds.PutSetting(c.Request.Context(), key, in.Value); err != nil {
				return nil, err
			}
			return gin.H{"key": key}, nil
		},
	})
}
