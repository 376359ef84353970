package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/shashiranjanraj/leppupy/pkg/http"
)

func TestPostJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Signed"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["id"]})
	}))
	defer srv.Close()

	resp, err := apphttp.New(time.Second).Retry(3, time.Millisecond).
		PostJSON(context.Background(), srv.URL, map[string]string{"id": "o1"}, map[string]string{"X-Signed": "yes"})
	require.NoError(t, err)
	require.NoError(t, resp.Throw())

	var out map[string]string
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "o1", out["echo"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	resp, err := apphttp.New(time.Second).Retry(5, time.Millisecond).PostJSON(context.Background(), srv.URL, nil, nil)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.True(t, errors.Is(resp.Throw(), apphttp.ErrStatus))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExhaustedServerErrorsReturnLastReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := apphttp.New(time.Second).Retry(2, time.Millisecond).PostJSON(context.Background(), srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.ErrorIs(t, resp.Throw(), apphttp.ErrStatus)
}

func TestCancelledContextStopsBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := apphttp.New(time.Second).Retry(10, time.Hour).PostJSON(ctx, srv.URL, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
