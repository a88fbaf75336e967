package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-auth/internal/handler"
	"github.com/iliyamo/storefront-auth/internal/middleware"
	"github.com/iliyamo/storefront-auth/internal/model"
)

// RegisterProducts registers the catalog proxy.  Any signed-in user can
// list products; admins manage them and customers purchase.  Listing is
// cached and every successful mutation clears the cache.
func RegisterProducts(e *echo.Echo, h *handler.ProductHandler, authn echo.MiddlewareFunc, cache *middleware.ResponseCache) {
	g := e.Group("/products", authn)
	g.GET("", h.List, cache.Middleware())

	admin := middleware.RequireRole(model.RoleAdmin)
	g.POST("", h.Create, admin, cache.Invalidate())
	g.PUT("/:id", h.Update, admin, cache.Invalidate())
	g.DELETE("/:id", h.Delete, admin, cache.Invalidate())

	g.POST("/:id/purchase", h.Purchase, middleware.RequireRole(model.RoleCustomer), cache.Invalidate())
}
