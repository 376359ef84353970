// Package routes registers the HTTP API.
package routes

import (
	"github.com/shashiranjanraj/leppupy/app/controllers"
	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/pkg/ctx"
	"github.com/shashiranjanraj/leppupy/pkg/middleware"
	"github.com/shashiranjanraj/leppupy/pkg/rbac"
	"github.com/shashiranjanraj/leppupy/pkg/router"
)

// Services are the domain services the API exposes.
type Services struct {
	Catalog *services.CatalogService
	Cart    *services.CartService
	Orders  *services.OrderService
	Users   *services.UserService
}

func RegisterAPI(r *router.Router, s Services) {
	catalog := controllers.NewCatalogController(s.Catalog)
	cart := controllers.NewCartController(s.Cart)
	orders := controllers.NewOrderController(s.Orders)
	auth := controllers.NewAuthController(s.Users)
	users := controllers.NewUserController(s.Users)

	api := r.Group("/api")
	api.Get("/products", "products.index", ctx.Wrap(catalog.Index))
	api.Get("/products/{id}", "products.show", ctx.Wrap(catalog.Show))

	guest := api.Group("", middleware.OptionalAuth, rbac.Guest)
	guest.Post("/register", "auth.register", ctx.Wrap(auth.Register))
	guest.Post("/login", "auth.login", ctx.Wrap(auth.Login))
	api.Post("/password/code", "auth.code", ctx.Wrap(auth.RequestCode))
	api.Post("/password/verify", "auth.verify", ctx.Wrap(auth.VerifyCode))
	api.Post("/password", "auth.password", ctx.Wrap(auth.SetPassword))

	user := api.Group("", middleware.Auth)
	user.Get("/me", "auth.me", ctx.Wrap(auth.Me))

	user.Get("/cart", "cart.index", ctx.Wrap(cart.Index))
	user.Get("/cart/count", "cart.count", ctx.Wrap(cart.Count))
	user.Post("/cart", "cart.store", ctx.Wrap(cart.Store))
	user.Delete("/cart/{id}", "cart.destroy", ctx.Wrap(cart.Destroy))

	user.Post("/orders", "orders.checkout", ctx.Wrap(orders.Checkout))
	user.Get("/orders", "orders.mine", ctx.Wrap(orders.Mine))
	user.Get("/orders/{id}", "orders.show", ctx.Wrap(orders.Show))
	user.Get("/orders/{id}/export", "orders.export", ctx.Wrap(orders.Export))

	admin := user.Group("/admin", rbac.HasRole(models.RoleAdmin))
	admin.Post("/products", "admin.products.store", ctx.Wrap(catalog.Store))
	admin.Put("/products/{id}/form", "admin.products.form", ctx.Wrap(catalog.UpdateForm))
	admin.Put("/products/{id}/laser", "admin.products.laser", ctx.Wrap(catalog.UpdateLaser))
	admin.Post("/products/{id}/move/{direction}", "admin.products.move", ctx.Wrap(catalog.Move))
	admin.Delete("/products/{id}", "admin.products.destroy", ctx.Wrap(catalog.Destroy))

	admin.Get("/orders", "admin.orders.index", ctx.Wrap(orders.Index))
	admin.Put("/orders/{id}/status", "admin.orders.toggle", ctx.Wrap(orders.Toggle))
	admin.Delete("/orders/{id}", "admin.orders.destroy", ctx.Wrap(orders.Destroy))
	admin.Get("/reports", "admin.reports", ctx.Wrap(orders.Report))

	admin.Get("/users", "admin.users.index", ctx.Wrap(users.Index))
	admin.Post("/users", "admin.users.store", ctx.Wrap(users.Store))
	admin.Delete("/users/{id}", "admin.users.destroy", ctx.Wrap(users.Destroy))
}
