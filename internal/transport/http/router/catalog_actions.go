package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-markethub/internal/core/cache"
	"go-markethub/internal/domain"
	"go-markethub/internal/transport/http/ez"
	resp "go-markethub/internal/transport/http/response"
)

// 目录浏览是全站最热的读路径，无筛选的列表走短 TTL 缓存。
// 管理端写操作负责失效这些键。
const (
	cacheKeyCategories    = "mh:categories"
	cacheKeyProducts      = "mh:products"
	cacheKeyJobCategories = "mh:jobcategories"
	browseCacheTTL        = 30 * time.Second
)

// catalogRoutes 公开的商品目录浏览，无需登录
type catalogRoutes struct {
	ds func() domain.DataService
	ch *cache.Cache
}

func (m *catalogRoutes) Priority() int { return 20 }

func (m *catalogRoutes) MountAPI(g *gin.RouterGroup) {
	pub := ez.New(g, m.ds)

	pub.GET("/categories", func(c *gin.Context, ds domain.DataService) (any, error) {
		out, err := cache.GetOrLoadJSON(m.ch, c.Request.Context(), cacheKeyCategories, browseCacheTTL,
			func(ctx context.Context) (*[]domain.Category, error) {
				cats, e := ds.ListCategories(ctx)
				return &cats, e
			})
		if err != nil {
			return nil, err
		}
		if out == nil || *out == nil {
			return []domain.Category{}, nil
		}
		return *out, nil
	})

	pub.GET("/products", func(c *gin.Context, ds domain.DataService) (any, error) {
		ctx := c.Request.Context()
		f := domain.ProductFilter{
			Search:     c.Query("q"),
			CategoryID: c.Query("category"),
		}
		// 有筛选条件的查询直接回源
		if f.Search != "" || f.CategoryID != "" {
			ps, err := ds.ListProducts(ctx, f)
			if err != nil {
				return nil, err
			}
			if ps == nil {
				ps = []domain.Product{}
			}
			return ps, nil
		}
		out, err := cache.GetOrLoadJSON(m.ch, ctx, cacheKeyProducts, browseCacheTTL,
			func(ctx context.Context) (*[]domain.Product, error) {
				ps, e := ds.ListProducts(ctx, domain.ProductFilter{})
				return &ps, e
			})
		if err != nil {
			return nil, err
		}
		if out == nil || *out == nil {
			return []domain.Product{}, nil
		}
		return *out, nil
	})

	pub.GET("/products/:id", func(c *gin.Context, ds domain.DataService) (any, error) {
		ctx := c.Request.Context()
		id := c.Param("id")
		p, err := ds.ProductByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ez.NotFound("product not found")
		}
		// 浏览计数尽力而为，不影响读取
		_ = ds.RecordProductView(ctx, id)
		p.Views++
		return p, nil
	})

	pub.GET("/products/:id/reviews", func(c *gin.Context, ds domain.DataService) (any, error) {
		rs, err := ds.ReviewsByProduct(c.Request.Context(), c.Param("id"))
		if err != nil {
			return nil, err
		}
		if rs == nil {
			rs = []domain.Review{}
		}
		return rs, nil
	})

	// 图片按 blob id 直出字节，Content-Type 嗅探
	g.GET("/blobs/:id", func(c *gin.Context) {
		b, err := m.ds().GetBlob(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, "blob not found"))
			return
		}
		c.Header("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, http.DetectContentType(b), b)
	})
}
