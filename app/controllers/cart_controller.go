package controllers

import (
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/pkg/ctx"
)

type CartController struct {
	cart *services.CartService
}

func NewCartController(cart *services.CartService) *CartController {
	return &CartController{cart: cart}
}

type addToCartInput struct {
	ProductID string         `json:"product_id"  validate:"required,objectid"`
	Form      map[string]any `json:"forms_lleno"`
}

// Store stages a filled form in the caller's cart.
func (c *CartController) Store(cx *ctx.Context) {
	var in addToCartInput
	if !cx.BindJSON(&in) {
		return
	}
	entry, count, err := c.cart.Add(cx.Context(), cx.UserID(), in.ProductID, in.Form)
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Created(map[string]any{"entry": entry, "cart_count": count})
}

// Index lists the caller's cart with product names and images.
func (c *CartController) Index(cx *ctx.Context) {
	lines, err := c.cart.ListWithProductDetails(cx.Context(), cx.UserID())
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(lines)
}

func (c *CartController) Count(cx *ctx.Context) {
	n, err := c.cart.Count(cx.Context(), cx.UserID())
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(map[string]int{"cart_count": n})
}

// Destroy removes an entry by row id or entry token.
func (c *CartController) Destroy(cx *ctx.Context) {
	if err := c.cart.Remove(cx.Context(), cx.UserID(), cx.Param("id")); err != nil {
		fail(cx, err)
		return
	}
	cx.Message("Entry removed")
}
