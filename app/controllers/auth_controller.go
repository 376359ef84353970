package controllers

import (
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/pkg/ctx"
)

// AuthController covers registration, verification codes and login.
type AuthController struct {
	users *services.UserService
}

func NewAuthController(users *services.UserService) *AuthController {
	return &AuthController{users: users}
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyInput struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code"  validate:"required,digits=6"`
}

type loginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *AuthController) Register(cx *ctx.Context) {
	var in services.RegisterInput
	if !cx.BindJSON(&in) {
		return
	}
	u, err := c.users.Register(cx.Context(), in, false)
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Created(u)
}

// RequestCode re-issues a verification code, used by the forgot-password
// flow.
func (c *AuthController) RequestCode(cx *ctx.Context) {
	var in emailInput
	if !cx.BindJSON(&in) {
		return
	}
	if err := c.users.IssueCode(cx.Context(), in.Email); err != nil {
		fail(cx, err)
		return
	}
	cx.Message("Verification code sent")
}

func (c *AuthController) VerifyCode(cx *ctx.Context) {
	var in verifyInput
	if !cx.BindJSON(&in) {
		return
	}
	ok, err := c.users.VerifyCode(cx.Context(), in.Email, in.Code)
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(map[string]bool{"valid": ok})
}

func (c *AuthController) SetPassword(cx *ctx.Context) {
	var in services.PasswordInput
	if !cx.BindJSON(&in) {
		return
	}
	if err := c.users.SetPassword(cx.Context(), in); err != nil {
		fail(cx, err)
		return
	}
	cx.Message("Password updated")
}

func (c *AuthController) Login(cx *ctx.Context) {
	var in loginInput
	if !cx.BindJSON(&in) {
		return
	}
	token, u, err := c.users.Login(cx.Context(), in.Email, in.Password)
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(map[string]any{"token": token, "user": u})
}

// Me returns the authenticated user.
func (c *AuthController) Me(cx *ctx.Context) {
	u, err := c.users.Get(cx.Context(), cx.UserID())
	if err != nil {
		fail(cx, err)
		return
	}
	cx.Success(u)
}
