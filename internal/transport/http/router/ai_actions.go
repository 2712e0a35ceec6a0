package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-markethub/internal/aihelper"
	"go-markethub/internal/core/auth"
	"go-markethub/internal/domain"
	"go-markethub/internal/transport/http/ez"
	mdw "go-markethub/internal/transport/http/middleware"
)

// aiRoutes 表单辅助：地址解析、文案与分类建议。
// 全部是纯函数，不落库。
type aiRoutes struct {
	ds    func() domain.DataService
	jwter *auth.JWTer
}

func (m *aiRoutes) Priority() int { return 50 }

func (m *aiRoutes) MountAPI(g *gin.RouterGroup) {
	au := g.Group("")
	au.Use(mdw.AuthJWT(m.jwter, ""))
	sec := ez.New(au, m.ds)

	type textIn struct {
		Text string `json:"text" binding:"required,max=1024"`
	}
	ez.RegisterAction(sec, ez.Action[textIn, domain.Address]{
		Method: http.MethodPost,
		Path:   "/ai/parse-address",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ domain.DataService, in *textIn) (domain.Address, error) {
			return aihelper.ParseAddress(in.Text), nil
		},
	})

	type descIn struct {
		Name     string `json:"name"     binding:"required,max=140"`
		Category string `json:"category" binding:"omitempty,max=64"`
	}
	ez.RegisterAction(sec, ez.Action[descIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/ai/suggest-description",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ domain.DataService, in *descIn) (gin.H, error) {
			return gin.H{"description": aihelper.SuggestDescription(in.Name, in.Category)}, nil
		},
	})

	type catIn struct {
		Name string `json:"name" binding:"required,max=140"`
	}
	ez.RegisterAction(sec, ez.Action[catIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/ai/suggest-category",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *catIn) (gin.H, error) {
			cats, err := ds.ListCategories(c.Request.Context())
			if err != nil {
				return nil, err
			}
			return gin.H{"category": aihelper.SuggestCategory(in.Name, cats)}, nil
		},
	})
}
