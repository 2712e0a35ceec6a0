package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-markethub/internal/aihelper"
	"go-markethub/internal/core/auth"
	"go-markethub/internal/domain"
	"go-markethub/internal/transport/http/ez"
	mdw "go-markethub/internal/transport/http/middleware"
)

// shopRoutes 购物车、下单、商品评价与收藏，全部要求登录
type shopRoutes struct {
	ds    func() domain.DataService
	jwter *auth.JWTer
}

func (m *shopRoutes) Priority() int { return 30 }

func (m *shopRoutes) MountAPI(g *gin.RouterGroup) {
	au := g.Group("")
	au.Use(mdw.AuthJWT(m.jwter, ""))
	sec := ez.New(au, m.ds)

	// ---------- 购物车 ----------

	sec.GET("/cart", func(c *gin.Context, ds domain.DataService) (any, error) {
		return ds.CartByUser(c.Request.Context(), c.GetString("userId"))
	})

	type cartAddIn struct {
		ProductID string `json:"productId" binding:"required"`
		Quantity  int    `json:"quantity"  binding:"required,min=1"`
	}
	ez.RegisterAction(sec, ez.Action[cartAddIn, *domain.Cart]{
		Method: http.MethodPost,
		Path:   "/cart/items",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *cartAddIn) (*domain.Cart, error) {
			return ds.AddCartItem(c.Request.Context(), c.GetString("userId"), in.ProductID, in.Quantity)
		},
	})

	type cartQtyIn struct {
		Quantity int `json:"quantity" binding:"min=0"`
	}
	ez.RegisterAction(sec, ez.Action[cartQtyIn, *domain.Cart]{
		Method: http.MethodPut,
		Path:   "/cart/items/:productId",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *cartQtyIn) (*domain.Cart, error) {
			return ds.SetCartItemQty(c.Request.Context(), c.GetString("userId"), c.Param("productId"), in.Quantity)
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, *domain.Cart]{
		Method: http.MethodDelete,
		Path:   "/cart/items/:productId",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (*domain.Cart, error) {
			return ds.RemoveCartItem(c.Request.Context(), c.GetString("userId"), c.Param("productId"))
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, *domain.Cart]{
		Method: http.MethodPost,
		Path:   "/cart/items/:productId/save",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (*domain.Cart, error) {
			return ds.SaveForLater(c.Request.Context(), c.GetString("userId"), c.Param("productId"))
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, *domain.Cart]{
		Method: http.MethodPost,
		Path:   "/cart/items/:productId/restore",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (*domain.Cart, error) {
			return ds.MoveToCart(c.Request.Context(), c.GetString("userId"), c.Param("productId"))
		},
	})

	ez.RegisterAction(sec, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/cart",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, ds domain.DataService, _ *struct{}) (gin.H, error) {
			if err := ds.ClearCart(c.Request.Context(), c.GetString("userId")); err != nil {
				return nil, err
			}
			return gin.H{"ok": 1}, nil
		},
	})

	// ---------- 下单 ----------

	// 收货地址可传结构化字段，也可传整段文本由解析器拆分
	type checkoutIn struct {
		ShippingAddress domain.Address `json:"shippingAddress"`
		AddressText     string         `json:"addressText" binding:"omitempty,max=512"`
	}
	ez.RegisterAction(sec, ez.Action[checkoutIn, *domain.Order]{
		Method: http.MethodPost,
		Path:   "/orders",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *checkoutIn) (*domain.Order, error) {
			ctx := c.Request.Context()
			uid := c.GetString("userId")

			addr := in.ShippingAddress
			if addr.AddressLine1 == "" && strings.TrimSpace(in.AddressText) != "" {
				addr = aihelper.ParseAddress(in.AddressText)
			}

			cart, err := ds.CartByUser(ctx, uid)
			if err != nil {
				return nil, err
			}
			if cart == nil || len(cart.Items) == 0 {
				return nil, ez.BadRequest("cart is empty")
			}
			items := make([]domain.OrderItem, 0, len(cart.Items))
			for _, it := range cart.Items {
				items = append(items, domain.OrderItem{
					ProductID: it.ProductID,
					Name:      it.Name,
					ImageID:   it.ImageID,
					Quantity:  it.Quantity,
					UnitPrice: it.UnitPrice,
				})
			}
			return ds.CreateOrder(ctx, &domain.Order{
				UserID:          uid,
				Items:           items,
				ShippingAddress: addr,
			})
		},
	})

	sec.GET("/orders", func(c *gin.Context, ds domain.DataService) (any, error) {
		os, err := ds.OrdersByUser(c.Request.Context(), c.GetString("userId"))
		if err != nil {
			return nil, err
		}
		if os == nil {
			os = []domain.Order{}
		}
		return os, nil
	})

	sec.GET("/orders/:id", func(c *gin.Context, ds domain.DataService) (any, error) {
		o, err := ds.OrderByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, ez.NotFound("order not found")
		}
		if o.UserID != c.GetString("userId") && c.GetString("role") != domain.RoleAdmin {
			return nil, ez.Forbidden("not your order")
		}
		return o, nil
	})

	// ---------- 商品评价 ----------

	type reviewIn struct {
		Rating  int    `json:"rating"  binding:"required,min=1,max=5"`
		Comment string `json:"comment" binding:"omitempty,max=2000"`
	}
	ez.RegisterAction(sec, ez.Action[reviewIn, *domain.Review]{
		Method: http.MethodPost,
		Path:   "/products/:id/reviews",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *reviewIn) (*domain.Review, error) {
			return ds.CreateReview(c.Request.Context(), &domain.Review{
				ProductID: c.Param("id"),
				UserID:    c.GetString("userId"),
				Rating:    in.Rating,
				Comment:   in.Comment,
			})
		},
	})

	// ---------- 心愿单 ----------

	type toggleIn struct {
		On bool `json:"on"`
	}
	ez.RegisterAction(sec, ez.Action[toggleIn, gin.H]{
		Method: http.MethodPut,
		Path:   "/wishlist/:productId",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, ds domain.DataService, in *toggleIn) (gin.H, error) {
			changed, err := ds.ToggleWishlist(c.Request.Context(), c.GetString("userId"), c.Param("productId"), in.On)
			if err != nil {
				return nil, err
			}
			return gin.H{"on": in.On, "changed": changed}, nil
		},
	})

	sec.GET("/wishlist", func(c *gin.Context, ds domain.DataService) (any, error) {
		ps, err := ds.WishlistProducts(c.Request.Context(), c.GetString("userId"))
		if err != nil {
			return nil, err
		}
		if ps == nil {
			ps = []domain.Product{}
		}
		return ps, nil
	})
}
