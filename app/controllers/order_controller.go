package controllers

import (
	"fmt"
	"time"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/pkg/ctx"
)

type OrderController struct {
	orders *services.OrderService
	now    func() time.Time
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders, now: time.Now}
}

func isAdmin(cx *ctx.Context) bool { return cx.Role() == models.RoleAdmin }

// Checkout turns the caller's cart into an order.
func (c *OrderController) Checkout(cx *ctx.Context) {
	res, err := c.orders.Checkout(cx.Context(), cx.UserID())
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Created(res)
}

// Mine lists the caller's orders newest first.
func (c *OrderController) Mine(cx *ctx.Context) {
	views, err := c.orders.ListForOwner(cx.Context(), cx.UserID())
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(views)
}

// Index lists every order for the admin panel.
func (c *OrderController) Index(cx *ctx.Context) {
	views, err := c.orders.ListAll(cx.Context())
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(views)
}

// Show returns one order. Clients only see their own.
func (c *OrderController) Show(cx *ctx.Context) {
	v, err := c.orders.GetByID(cx.Context(), cx.Param("id"))
	if err != nil {
		fail(cx, err)
		return
	}
	if !isAdmin(cx) && v.Owner != cx.UserID() {
		cx.NotFound("Order not found")
		return
	}
	cx.Success(v)
}

func (c *OrderController) Toggle(cx *ctx.Context) {
	status, err := c.orders.ToggleStatus(cx.Context(), cx.Param("id"))
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(map[string]models.Status{"estado": status})
}

func (c *OrderController) Destroy(cx *ctx.Context) {
	if err := c.orders.Delete(cx.Context(), cx.Param("id")); err != nil {
		fail(cx, err)
		return
	}
	cx.Message("Order deleted")
}

// Export downloads the order workbook. Admins get the cut table unless
// they ask for ?variant=client; clients get the client variant of their
// own orders.
func (c *OrderController) Export(cx *ctx.Context) {
	variant, owner := services.ExportClient, cx.UserID()
	if isAdmin(cx) {
		owner = ""
		variant = services.ExportVariant(cx.DefaultQuery("variant", string(services.ExportAdmin)))
	}
	name, data, err := c.orders.Export(cx.Context(), cx.Param("id"), variant, owner)
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Attachment(services.XLSXContentType, name, data)
}

// Report returns the dashboard aggregates.
func (c *OrderController) Report(cx *ctx.Context) {
	rep, err := c.orders.Report(cx.Context(), c.now())
	if err != nil {
		fail(cx, fmt.Errorf("report: %w", err))
		return
	}
	cx.Success(rep)
}
