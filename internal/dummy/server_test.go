package dummy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shakeout/internal/ops"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newServer(t *testing.T, catalog ops.Catalog) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Handler(ServerConfig{Catalog: catalog, Sleep: noSleep}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_Health(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestHandler_ListOps(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/ops")
	require.NoError(t, err)
	defer resp.Body.Close()

	var listed []ops.Spec
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Len(t, listed, len(ops.DefaultCatalog()))
	assert.Equal(t, "create_item", listed[0].Name)
}

func TestHandler_Operation(t *testing.T) {
	catalog := ops.Catalog{
		{Name: "steady"},
		{Name: "throttled", FailureProbability: 1, FailureKind: ops.KindRateLimit},
		{Name: "stale", FailureProbability: 1, FailureKind: ops.KindConflict},
	}
	srv := newServer(t, catalog)

	cases := map[string]int{
		"steady":    http.StatusOK,
		"throttled": http.StatusTooManyRequests,
		"stale":     http.StatusConflict,
		"missing":   http.StatusNotFound,
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/ops/"+name, "application/json", nil)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, want, resp.StatusCode)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(ops.KindTimeout))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(ops.KindCredentialExpired))
	assert.Equal(t, http.StatusBadGateway, StatusFor(ops.KindConnectionLoss))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(ops.KindInternal))
}
