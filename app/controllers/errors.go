// Package controllers adapts the domain services to HTTP.
package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/pkg/ctx"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidID), errors.Is(err, models.ErrEmptyCart), errors.Is(err, models.ErrNoNeighbor):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error envelope. Internal errors are logged and
// answered with a generic message.
func fail(cx *ctx.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.WithCtx(cx.Context()).Error("request failed", "path", cx.R.URL.Path, "error", err)
		cx.Error(code, "Internal server error")
		return
	}
	cx.Error(code, err.Error())
}
