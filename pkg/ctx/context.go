// Package ctx provides a request context with helpers for binding,
// identity and JSON envelopes, so handlers take a single argument:
//
//	func (c *OrderController) Show(cx *ctx.Context) {
//	    order, err := c.orders.GetByID(cx.Context(), cx.Param("id"))
//	    ...
//	    cx.Success(order)
//	}
//
//	r.Get("/orders/{id}", "orders.show", ctx.Wrap(ctrl.Show))
package ctx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/leppupy/pkg/auth"
	"github.com/shashiranjanraj/leppupy/pkg/bind"
	"github.com/shashiranjanraj/leppupy/pkg/validate"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap adapts a HandlerFunc to http.HandlerFunc.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context wraps a request/response pair.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	mu     sync.RWMutex
	store  map[string]any
	status int
}

var pool = sync.Pool{
	New: func() any { return &Context{store: make(map[string]any)} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	for k := range c.store {
		delete(c.store, k)
	}
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request ──────────────────────────────────────────────────────────────────

// Param returns a chi URL parameter.
func (c *Context) Param(key string) string { return chi.URLParam(c.R, key) }

func (c *Context) Query(key string) string { return c.R.URL.Query().Get(key) }

func (c *Context) DefaultQuery(key, def string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return def
}

func (c *Context) Header(key string) string { return c.R.Header.Get(key) }

// Body reads the raw request body. It can only be read once.
func (c *Context) Body() ([]byte, error) { return io.ReadAll(c.R.Body) }

func (c *Context) Context() context.Context { return c.R.Context() }

// ClientIP returns the caller address, preferring X-Forwarded-For.
func (c *Context) ClientIP() string {
	if fwd := c.R.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	if real := c.R.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	ip := c.R.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// ─── Identity ─────────────────────────────────────────────────────────────────

// Claims returns the token claims placed by the auth middleware.
func (c *Context) Claims() (*auth.Claims, bool) { return auth.FromContext(c.R.Context()) }

// UserID returns the authenticated user's id, or "" for guests.
func (c *Context) UserID() string {
	if cl, ok := c.Claims(); ok {
		return cl.UserID
	}
	return ""
}

// Role returns the authenticated user's role, or "" for guests.
func (c *Context) Role() string {
	if cl, ok := c.Claims(); ok {
		return cl.Role
	}
	return ""
}

// ─── Per-request store ────────────────────────────────────────────────────────

func (c *Context) Set(key string, val any) {
	c.mu.Lock()
	c.store[key] = val
	c.mu.Unlock()
}

func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.store[key]
	c.mu.RUnlock()
	return v, ok
}

func (c *Context) GetString(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// ─── Binding ──────────────────────────────────────────────────────────────────

// BindJSON decodes and validates the body into dest. On failure it writes a
// 400 or 422 response and returns false.
func (c *Context) BindJSON(dest any) bool {
	errs, err := bind.JSON(c.R, dest)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return false
	}
	if validate.HasErrors(errs) {
		c.ValidationError(errs)
		return false
	}
	return true
}

// BindMultipart parses a multipart form. On failure it writes a 400 and
// returns false.
func (c *Context) BindMultipart() bool {
	if err := bind.Multipart(c.R); err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// PostForm returns a form field value.
func (c *Context) PostForm(key string) string { return c.R.FormValue(key) }

// Files returns the uploaded file contents under field.
func (c *Context) Files(field string) ([][]byte, error) { return bind.ReadFiles(c.R, field) }

// Validate runs validation rules on an already-populated struct.
func (c *Context) Validate(v any) map[string]string { return validate.Struct(v) }

// ─── Response ─────────────────────────────────────────────────────────────────

func (c *Context) SetHeader(key, value string) { c.W.Header().Set(key, value) }

func (c *Context) Status(code int) {
	c.status = code
	c.W.WriteHeader(code)
}

func (c *Context) JSON(code int, v any) {
	c.W.Header().Set("Content-Type", "application/json")
	c.W.WriteHeader(code)
	c.status = code
	json.NewEncoder(c.W).Encode(v) //nolint:errcheck
}

// Success sends a 200 envelope: {"status":200,"data":...}
func (c *Context) Success(data any) {
	c.JSON(http.StatusOK, envelope{Status: http.StatusOK, Data: data})
}

// Message sends a 200 envelope carrying only a message.
func (c *Context) Message(msg string) {
	c.JSON(http.StatusOK, envelope{Status: http.StatusOK, Message: msg})
}

func (c *Context) Created(data any) {
	c.JSON(http.StatusCreated, envelope{Status: http.StatusCreated, Data: data})
}

func (c *Context) Error(code int, message string) {
	c.JSON(code, envelope{Status: code, Message: message})
}

func (c *Context) ValidationError(errs map[string]string) {
	c.JSON(http.StatusUnprocessableEntity, envelope{
		Status:  http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  errs,
	})
}

func (c *Context) Unauthorized(message ...string) { c.Error(http.StatusUnauthorized, first(message, "Unauthorized")) }
func (c *Context) Forbidden(message ...string)    { c.Error(http.StatusForbidden, first(message, "Forbidden")) }
func (c *Context) NotFound(message ...string)     { c.Error(http.StatusNotFound, first(message, "Not found")) }

// Attachment streams body as a download named filename.
func (c *Context) Attachment(contentType, filename string, body []byte) {
	c.W.Header().Set("Content-Type", contentType)
	c.W.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.W.Header().Set("Content-Length", fmt.Sprint(len(body)))
	c.W.WriteHeader(http.StatusOK)
	c.status = http.StatusOK
	_, _ = c.W.Write(body)
}

// WrittenStatus returns the status written so far, or 0.
func (c *Context) WrittenStatus() int { return c.status }

func first(msgs []string, def string) string {
	if len(msgs) > 0 && msgs[0] != "" {
		return msgs[0]
	}
	return def
}

type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}
