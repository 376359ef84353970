package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/app/routes"
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/pkg/auth"
	"github.com/shashiranjanraj/leppupy/pkg/queue"
	"github.com/shashiranjanraj/leppupy/pkg/router"
	"github.com/shashiranjanraj/leppupy/pkg/testkit"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, queue.Job) error { return nil }

type app struct {
	t       *testing.T
	handler http.Handler
	store   *repositories.MemoryStore
}

func newApp(t *testing.T) *app {
	t.Helper()
	store := repositories.NewMemoryStore()
	blobs := services.NewContentStore(store.Blobs())
	r := router.New()
	routes.RegisterAPI(r, routes.Services{
		Catalog: services.NewCatalogService(store, blobs, nil, nil),
		Cart:    services.NewCartService(store, blobs),
		Orders:  services.NewOrderService(store, blobs, nil),
		Users:   services.NewUserService(store, nopDispatcher{}, nil),
	})
	return &app{t: t, handler: r.Handler(), store: store}
}

func (a *app) user(role string) string {
	a.t.Helper()
	u := models.User{Name: "U " + role, Email: role + "@example.com", Role: role, Verified: true}
	require.NoError(a.t, a.store.Users().Insert(context.Background(), &u))
	tok, err := auth.GenerateToken(u.ID.Hex(), role)
	require.NoError(a.t, err)
	return tok
}

func (a *app) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *app) createProduct(token, name string) string {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(a.t, mw.WriteField("modelo", name))
	for field, content := range map[string]string{"img_1": "gallery", "img_2": "primary"} {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(a.t, err)
		_, _ = fw.Write([]byte(name + content))
	}
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		Data models.CatalogItem `json:"data"`
	}
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Data.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out.Data
}

func TestCatalogRequiresAdminToWrite(t *testing.T) {
	a := newApp(t)
	client := a.user(models.RoleClient)

	rec := a.do(http.MethodPost, "/api/admin/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(http.MethodDelete, "/api/admin/products/65f0c0ffee0000000000abcd", client, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCatalogFlow(t *testing.T) {
	a := newApp(t)
	admin := a.user(models.RoleAdmin)
	first := a.createProduct(admin, "Roble")
	second := a.createProduct(admin, "Cedro")

	rec := a.do(http.MethodPut, "/api/admin/products/"+first+"/form", admin, `{"Cantidad":"number"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPut, "/api/admin/products/"+first+"/form", admin, `[1]`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodPost, "/api/admin/products/"+second+"/move/up", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/api/admin/products/"+second+"/move/up", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no neighbour above the first product")
	rec = a.do(http.MethodPost, "/api/admin/products/"+second+"/move/left", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	items := decode[[]models.CatalogItem](t, a.do(http.MethodGet, "/api/products", "", nil))
	require.Len(t, items, 2)
	assert.Equal(t, "Cedro", items[0].Model)
	assert.NotNil(t, items[0].Image)

	detail := decode[models.ProductDetail](t, a.do(http.MethodGet, "/api/products/"+first, "", nil))
	assert.Equal(t, map[string]any{"Cantidad": "number"}, detail.Forms)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/products/nope", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/products/65f0c0ffee0000000000abcd", "", nil).Code)
}

func TestCartCheckoutAndExport(t *testing.T) {
	a := newApp(t)
	admin := a.user(models.RoleAdmin)
	client := a.user(models.RoleClient)
	other := a.user("cliente2")
	pid := a.createProduct(admin, "Roble")

	rec := a.do(http.MethodPost, "/api/orders", client, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty cart")

	for _, qty := range []int{2, 3} {
		rec = a.do(http.MethodPost, "/api/cart", client, map[string]any{
			"product_id":  pid,
			"forms_lleno": map[string]any{"Cantidad": qty},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec = a.do(http.MethodPost, "/api/cart", client, map[string]any{"product_id": "bad"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	count := decode[map[string]int](t, a.do(http.MethodGet, "/api/cart/count", client, nil))
	assert.Equal(t, 2, count["cart_count"])

	rec = a.do(http.MethodPost, "/api/orders", client, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[models.CheckoutResult](t, rec)
	assert.Equal(t, 5, res.Order.TotalQuantity)
	assert.True(t, strings.HasPrefix(res.WhatsAppLink, "https://api.whatsapp.com/send?phone="))
	id := res.Order.ID.Hex()

	mine := decode[[]models.OrderView](t, a.do(http.MethodGet, "/api/orders", client, nil))
	require.Len(t, mine, 1)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/orders/"+id, other, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/orders/"+id+"/export", other, nil).Code)

	rec = a.do(http.MethodGet, "/api/orders/"+id+"/export", client, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, services.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "_cliente.xlsx")

	rec = a.do(http.MethodGet, "/api/orders/"+id+"/export", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Header().Get("Content-Disposition"), "_cliente")

	toggled := decode[map[string]models.Status](t, a.do(http.MethodPut, "/api/admin/orders/"+id+"/status", admin, nil))
	assert.Equal(t, models.StatusInProgress, toggled["estado"])
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, "/api/admin/orders/"+id+"/status", client, nil).Code)

	rep := decode[models.Report](t, a.do(http.MethodGet, "/api/admin/reports", admin, nil))
	assert.Len(t, rep.Daily, 30)
	require.Len(t, rep.BestSellers, 1)
	assert.Equal(t, 5, rep.BestSellers[0].Quantity)

	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/api/admin/orders/"+id, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/orders/"+id, admin, nil).Code)
}

func TestRegisterAndLogin(t *testing.T) {
	a := newApp(t)
	body := map[string]string{"client_name": "Ana", "phone": "3312345678", "email": "ana@example.com"}

	rec := a.do(http.MethodPost, "/api/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/register", "", body).Code)

	rec = a.do(http.MethodPost, "/api/login", "", map[string]string{"email": "ana@example.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	u, err := a.store.Users().FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, u.VerificationCode)

	rec = a.do(http.MethodPost, "/api/password", "", map[string]string{
		"email": "ana@example.com", "code": *u.VerificationCode, "password": "secreto1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/login", "", map[string]string{"email": "ana@example.com", "password": "secreto1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[map[string]any](t, rec)
	token, _ := login["token"].(string)
	require.NotEmpty(t, token)

	me := decode[models.User](t, a.do(http.MethodGet, "/api/me", token, nil))
	assert.Equal(t, "Ana", me.Name)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/login", token, nil).Code, "already authenticated")
}

func TestAdminUserManagement(t *testing.T) {
	a := newApp(t)
	admin := a.user(models.RoleAdmin)

	rec := a.do(http.MethodPost, "/api/admin/users", admin,
		map[string]string{"client_name": "Eva", "phone": "3300000000", "email": "eva@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	eva := decode[models.User](t, rec)
	assert.True(t, eva.IsAdmin())

	admins := decode[[]models.User](t, a.do(http.MethodGet, "/api/admin/users?role=admin", admin, nil))
	assert.Len(t, admins, 2)

	rec = a.do(http.MethodDelete, "/api/admin/users/"+eva.ID.Hex(), admin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPIScenarios(t *testing.T) {
	a := newApp(t)
	r := &testkit.Runner{
		Handler: a.handler,
		Vars: map[string]string{
			"token." + models.RoleClient: a.user(models.RoleClient),
			"token." + models.RoleAdmin:  a.user(models.RoleAdmin),
		},
	}
	r.RunDir(t, "testdata/scenarios")
}
