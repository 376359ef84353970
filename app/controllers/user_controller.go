package controllers

import (
	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/pkg/ctx"
)

// UserController is the admin user management surface.
type UserController struct {
	users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// Index lists users by ?role=, clients by default.
func (c *UserController) Index(cx *ctx.Context) {
	list, err := c.users.List(cx.Context(), cx.DefaultQuery("role", models.RoleClient))
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(list)
}

// Store creates an administrator account.
func (c *UserController) Store(cx *ctx.Context) {
	var in services.RegisterInput
	if !cx.BindJSON(&in) {
		return
	}
	u, err := c.users.Register(cx.Context(), in, true)
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Created(u)
}

func (c *UserController) Destroy(cx *ctx.Context) {
	if err := c.users.Delete(cx.Context(), cx.UserID(), cx.Param("id")); err != nil {
		fail(cx, err)
		return
	}
	cx.Message("User deleted")
}
