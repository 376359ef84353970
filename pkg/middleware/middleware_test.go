package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/pkg/auth"
	"github.com/shashiranjanraj/leppupy/pkg/middleware"
	"github.com/shashiranjanraj/leppupy/pkg/rbac"
	"github.com/shashiranjanraj/leppupy/pkg/reqid"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func withToken(t *testing.T, req *http.Request, userID, role string) *http.Request {
	t.Helper()
	tok, err := auth.GenerateToken(userID, role)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func TestAuthRequiresToken(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.Auth(noContent).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	middleware.Auth(noContent).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthInjectsClaims(t *testing.T) {
	var gotID, gotRole string
	h := middleware.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = middleware.UserIDFromCtx(r)
		gotRole, _ = middleware.RoleFromCtx(r)
	}))

	req := withToken(t, httptest.NewRequest(http.MethodGet, "/", nil), "u1", auth.RoleClient)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "u1", gotID)
	assert.Equal(t, auth.RoleClient, gotRole)
}

func TestAuthAcceptsQueryTokenOnWebsocketHandshake(t *testing.T) {
	tok, err := auth.GenerateToken("u2", auth.RoleAdmin)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	middleware.Auth(noContent).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil)
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	middleware.Auth(noContent).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHasRole(t *testing.T) {
	h := middleware.Auth(rbac.HasRole(auth.RoleAdmin)(noContent))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withToken(t, httptest.NewRequest(http.MethodGet, "/", nil), "u1", auth.RoleClient))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withToken(t, httptest.NewRequest(http.MethodGet, "/", nil), "u2", auth.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGuestBlocksAuthenticated(t *testing.T) {
	h := middleware.OptionalAuth(rbac.Guest(noContent))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withToken(t, httptest.NewRequest(http.MethodPost, "/login", nil), "u1", auth.RoleClient))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := middleware.RateLimit(2, time.Minute)(noContent)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.9:5555"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{204, 204, 429}, codes)
}

func TestCORSPreflight(t *testing.T) {
	h := middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: []string{"https://shop.example"},
		AllowedMethods: []string{"GET"},
	})(noContent)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://shop.example")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryAndRequestID(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := reqid.Middleware()(middleware.Logger(middleware.Recovery(panicky)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(reqid.Header))
}
