package kernel_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/services"
	"github.com/shashiranjanraj/leppupy/internal/kernel"
	"github.com/shashiranjanraj/leppupy/pkg/auth"
	"github.com/shashiranjanraj/leppupy/pkg/event"
)

func boot(t *testing.T) *kernel.Kernel {
	t.Helper()
	t.Setenv("STORAGE_LOCAL_ROOT", t.TempDir())
	k, err := kernel.Boot(context.Background(), kernel.Options{Memory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close(context.Background()) })
	return k
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken("65f0c0ffee0000000000cafe", role)
	require.NoError(t, err)
	return tok
}

func TestHandlerServesPublicRoutesAndMetrics(t *testing.T) {
	h := boot(t).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestGraphQLRequiresAdmin(t *testing.T) {
	h := boot(t).Handler()
	query := `{"query":"{ products { id model } }"}`

	for _, tc := range []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"client", token(t, auth.RoleClient), http.StatusForbidden},
		{"admin", token(t, auth.RoleAdmin), http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/graphql", strings.NewReader(query))
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusOK {
				assert.JSONEq(t, `{"data":{"products":[]}}`, rec.Body.String())
			}
		})
	}
}

func TestLiveFeedForwardsOrderEvents(t *testing.T) {
	k := boot(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go k.Hub.Run(ctx)

	srv := httptest.NewServer(k.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/admin/live?token=" + token(t, auth.RoleAdmin)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return k.Hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	k.Events.Fire(ctx, event.OrderPlaced, map[string]string{"orden_id": "abc"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Event   string            `json:"event"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, event.OrderPlaced, got.Event)
	assert.Equal(t, "abc", got.Payload["orden_id"])
}

func TestLiveFeedRejectsClients(t *testing.T) {
	srv := httptest.NewServer(boot(t).Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/admin/live?token=" + token(t, auth.RoleClient)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRoutesListsWithoutBackends(t *testing.T) {
	names := map[string]bool{}
	for _, ri := range kernel.Routes() {
		names[ri.Name] = true
	}
	for _, want := range []string{"admin.live", "admin.graphql.query", "products.index", "orders.checkout"} {
		assert.True(t, names[want], want)
	}
}

func TestOrderStreamOnlySendsOwnOrders(t *testing.T) {
	k := boot(t)
	srv := httptest.NewServer(k.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/orders/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, auth.RoleClient))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	k.Events.Fire(ctx, event.OrderStatusChanged, services.OrderEvent{ID: "x", Owner: "someone-else", Status: models.StatusDone})
	k.Events.Fire(ctx, event.OrderStatusChanged, services.OrderEvent{ID: "mine", Owner: "65f0c0ffee0000000000cafe", Status: models.StatusInProgress})

	rd := bufio.NewReader(resp.Body)
	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: "+event.OrderStatusChanged+"\n", line)
	line, err = rd.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"id":"mine"`)
	assert.Contains(t, line, `"estado":"En Proceso"`)
}

func TestPlacedOrdersAreAnnouncedOnSlack(t *testing.T) {
	posted := make(chan string, 1)
	slack := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Attachments []struct {
				Text string `json:"text"`
			} `json:"attachments"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Attachments) > 0 {
			posted <- body.Attachments[0].Text
		}
	}))
	t.Cleanup(slack.Close)
	t.Setenv("SLACK_WEBHOOK_URL", slack.URL)

	k := boot(t)
	ctx, cancel := context.WithCancel(context.Background())
	k.Queue.Start(ctx, 1)
	t.Cleanup(func() {
		cancel()
		k.Queue.Wait()
	})

	k.Events.Fire(ctx, event.OrderPlaced, services.OrderEvent{ID: "x", OrderID: "9c1e", Owner: "nobody"})

	select {
	case text := <-posted:
		assert.Equal(t, models.UnknownClient+" realizó el pedido 9c1e", text)
	case <-time.After(3 * time.Second):
		t.Fatal("no slack post")
	}
}
