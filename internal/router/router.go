package router // package router wires handlers and middleware onto the Echo instance

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-auth/internal/config"
	"github.com/iliyamo/storefront-auth/internal/handler"
	"github.com/iliyamo/storefront-auth/internal/mailer"
	"github.com/iliyamo/storefront-auth/internal/middleware"
	"github.com/iliyamo/storefront-auth/internal/model"
	"github.com/iliyamo/storefront-auth/internal/service"
	"github.com/iliyamo/storefront-auth/internal/utils"
)

// Deps is everything the HTTP layer needs.  Redis is optional; without it
// rate limiting and the product cache are skipped.
type Deps struct {
	Log           *zap.Logger
	Tokens        *utils.TokenService
	Auth          *service.AuthService
	Products      *service.ProductService
	Mail          mailer.Mailer
	PublicBaseURL string
	Ping          handler.Pinger

	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// New builds the Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))

	sugar := d.Log.Sugar()
	authn := middleware.Authenticate(d.Tokens)
	limiter := middleware.NewTokenBucket(d.RateLimit, d.Redis, sugar)
	cache := middleware.NewResponseCache(d.Cache, d.Redis, sugar)

	RegisterRoutes(e, d.Ping)
	RegisterAuth(e, handler.NewAuthHandler(d.Auth, d.PublicBaseURL), authn, limiter)
	RegisterProducts(e, handler.NewProductHandler(d.Products), authn, cache)
	RegisterEmail(e, handler.NewEmailHandler(d.Mail), authn)
	return e
}

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo, ping handler.Pinger) {
	e.GET("/healthz", handler.Health(ping))
}

// RegisterAuth registers the /auth routes.  Register and login are rate
// limited; register reads an optional bearer itself for role escalation.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	g.GET("/verify", a.Verify)

	p := g.Group("", authn)
	p.GET("/me", a.Me)
	p.PUT("/user/:id", a.UpdateUser)
	p.DELETE("/user/:id", a.DeleteUser)
	p.PUT("/role/:id", a.ChangeRole, middleware.RequireRole(model.RoleAdmin))
}

// RegisterEmail registers the admin-only mail endpoint.
func RegisterEmail(e *echo.Echo, h *handler.EmailHandler, authn echo.MiddlewareFunc) {
	e.POST("/email/welcome", h.Welcome, authn, middleware.RequireRole(model.RoleAdmin))
}
