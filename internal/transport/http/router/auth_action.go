package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-markethub/internal/core/auth"
	"go-markethub/internal/domain"
	"go-markethub/internal/transport/http/ez"
	mdw "go-markethub/internal/transport/http/middleware"
	"go-markethub/pkg/utils"
)

// authRoutes 登录、个人资料与站内通知
type authRoutes struct {
	ds    func() domain.DataService
	jwter *auth.JWTer
}

func (m *authRoutes) Priority() int { return 10 }

func (m *authRoutes) MountAPI(g *gin.RouterGroup) {
	pub := ez.New(g, m.ds)

	// /auth/login：查不到就自动注册 + 发 JWT
	type loginIn struct {
		Email    string `json:"email"    binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"     binding:"omitempty,max=64"` // 首次注册可用
	}
	type loginOut struct {
		Token string       `json:"token"`
		IsNew bool         `json:"isNew"`
		User  *domain.User `json:"user"`
	}
	ez.RegisterAction(pub, ez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *loginIn) (loginOut, error) {
			ctx := c.Request.Context()
			email := strings.ToLower(strings.TrimSpace(in.Email))

			u, err := ds.UserByEmail(ctx, email)
			if err != nil {
				return loginOut{}, err
			}
			isNew := false
			if u == nil {
				// 自动注册
				name := strings.TrimSpace(in.Name)
				if name == "" {
					if at := strings.IndexByte(email, '@'); at > 0 {
						name = email[:at]
					} else {
						name = "user"
					}
				}
				u, err = ds.CreateUser(ctx, &domain.User{
					Email:        email,
					Name:         name,
					PasswordHash: utils.HashPassword(in.Password),
					Role:         domain.RoleCustomer,
				})
				if err != nil {
					return loginOut{}, err
				}
				isNew = true
			} else {
				if !utils.CheckPassword(in.Password, u.PasswordHash) {
					return loginOut{}, ez.Unauthorized("invalid credentials")
				}
				_ = ds.TouchLastLogin(ctx, u.ID)
			}

			tok, err := m.jwter.Issue(u.ID, u.Email, u.Role)
			if err != nil || tok == "" {
				return loginOut{}, ez.Internal("issue token failed", err)
			}
			return loginOut{Token: tok, IsNew: isNew, User: u}, nil
		},
	})

	// 鉴权分组
	au := g.Group("")
	au.Use(mdw.AuthJWT(m.jwter, ""))
	sec := ez.New(au, m.ds)

	sec.GET("/me", func(c *gin.Context, ds domain.DataService) (any, error) {
		u, err := ds.UserByID(c.Request.Context(), c.GetString("userId"))
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, ez.NotFound("user not found")
		}
		return u, nil
	})

	// 资料更新：只接受声明的字段，角色/统计不受请求体影响
	type profileIn struct {
		Name      string           `json:"name"      binding:"omitempty,max=64"`
		Theme     string           `json:"theme"     binding:"omitempty,max=32"`
		Addresses []domain.Address `json:"addresses" binding:"omitempty,dive"`
	}
	ez.RegisterAction(sec, ez.Action[profileIn, *domain.User]{
		Method: http.MethodPut,
		Path:   "/me",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *profileIn) (*domain.User, error) {
			ctx := c.Request.Context()
			u, err := ds.UserByID(ctx, c.GetString("userId"))
			if err != nil {
				return nil, err
			}
			if u == nil {
				return nil, ez.NotFound("user not found")
			}
			if s := strings.TrimSpace(in.Name); s != "" {
				u.Name = s
			}
			if in.Theme != "" {
				u.Theme = in.Theme
			}
			if in.Addresses != nil {
				u.Addresses = in.Addresses
			}
			if err := ds.UpdateUser(ctx, u); err != nil {
				return nil, err
			}
			return u, nil
		},
	})

	type passwordIn struct {
		Current string `json:"current" binding:"required"`
		New     string `json:"new"     binding:"required,min=6"`
	}
	ez.RegisterAction(sec, ez.Action[passwordIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/me/password",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *passwordIn) (gin.H, error) {
			ctx := c.Request.Context()
			u, err := ds.UserByID(ctx, c.GetString("userId"))
			if err != nil {
				return nil, err
			}
			if u == nil {
				return nil, ez.NotFound("user not found")
			}
			if !utils.CheckPassword(in.Current, u.PasswordHash) {
				return nil, ez.Unauthorized("invalid credentials")
			}
			u.PasswordHash = utils.HashPassword(in.New)
			if err := ds.UpdateUser(ctx, u); err != nil {
				return nil, err
			}
			return gin.H{"id": u.ID}, nil
		},
	})

	// 站内通知
	sec.GET("/notifications", func(c *gin.Context, ds domain.DataService) (any, error) {
		ns, err := ds.NotificationsByUser(c.Request.Context(), c.GetString("userId"))
		if err != nil {
			return nil, err
		}
		if ns == nil {
			ns = []domain.Notification{}
		}
		return ns, nil
	})

	// PUT /notifications/:id 标记单条已读，PUT /notifications 全部已读
	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodPut,
		Path:   "/notifications/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := ds.MarkNotificationRead(c.Request.Context(), c.GetString("userId"), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodPut,
		Path:   "/notifications",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			if err := ds.MarkAllNotificationsRead(c.Request.Context(), c.GetString("userId")); err != nil {
				return nil, err
			}
			return gin.H{"ok": 1}, nil
		},
	})
}
