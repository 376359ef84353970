package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/pkg/ctx"
)

type CatalogController struct {
	catalog *services.CatalogService
}

func NewCatalogController(catalog *services.CatalogService) *CatalogController {
	return &CatalogController{catalog: catalog}
}

// Index lists the catalog in display order.
func (c *CatalogController) Index(cx *ctx.Context) {
	items, err := c.catalog.ListCatalog(cx.Context())
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(items)
}

func (c *CatalogController) Show(cx *ctx.Context) {
	detail, err := c.catalog.GetDetail(cx.Context(), cx.Param("id"))
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(detail)
}

// Store creates a product from a multipart form: modelo, one or more
// img_1 gallery files and one img_2 catalog file.
func (c *CatalogController) Store(cx *ctx.Context) {
	if !cx.BindMultipart() {
		return
	}
	gallery, err := cx.Files("img_1")
	if err != nil {
		cx.Error(http.StatusBadRequest, err.Error())
		return
	}
	primary, err := cx.Files("img_2")
	if err != nil {
		cx.Error(http.StatusBadRequest, err.Error())
		return
	}
	var first []byte
	if len(primary) > 0 {
		first = primary[0]
	}

	p, err := c.catalog.CreateProduct(cx.Context(), cx.PostForm("modelo"), gallery, first)
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Created(models.CatalogItem{ID: p.ID.Hex(), Model: p.Name, SortOrder: p.SortOrder})
}

// UpdateForm replaces the form schema with the JSON object in the body.
func (c *CatalogController) UpdateForm(cx *ctx.Context) {
	c.updateRef(cx, c.catalog.UpdateSchema)
}

// UpdateLaser replaces the laser-cut spec with the JSON object in the body.
func (c *CatalogController) UpdateLaser(cx *ctx.Context) {
	c.updateRef(cx, c.catalog.UpdateLaserSpec)
}

func (c *CatalogController) updateRef(cx *ctx.Context, update func(context.Context, string, any) (bool, error)) {
	body, err := cx.Body()
	if err != nil {
		cx.Error(http.StatusBadRequest, err.Error())
		return
	}
	changed, err := update(cx.Context(), cx.Param("id"), json.RawMessage(body))
	if err != nil {
		fail(cx, err)
		return
	}
	if !changed {
		cx.Message("No changes")
		return
	}
	cx.Message("Updated")
}

func (c *CatalogController) Destroy(cx *ctx.Context) {
	if err := c.catalog.DeleteProduct(cx.Context(), cx.Param("id")); err != nil {
		fail(cx, err)
		return
	}
	cx.Message("Product deleted")
}

// Move shifts a product one place up or down.
func (c *CatalogController) Move(cx *ctx.Context) {
	dir, err := models.ParseDirection(cx.Param("direction"))
	if err != nil {
		fail(cx, err)
		return
	}
	if err := c.catalog.Move(cx.Context(), cx.Param("id"), dir); err != nil {
		fail(cx, err)
		return
	}
	cx.Message(fmt.Sprintf("Moved %s", dir))
}
