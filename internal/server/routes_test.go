package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jp-hoehmann/bun/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes(t *testing.T) {
	ts := newTestServer(t, HubOptions{})

	t.Run("create token", func(t *testing.T) {
		tok, err := token.NewClient(ts.srv.URL+"/nuve").Create(t.Context(), token.RoomData{
			Username: "ana",
			Role:     "presenter",
			Type:     "erizo",
		})
		require.NoError(t, err)

		claims, err := ts.issuer.Parse(tok)
		require.NoError(t, err)
		assert.Equal(t, "xkcd", claims.Room)
		assert.Equal(t, "ana", claims.Username)
	})

	t.Run("bad token request", func(t *testing.T) {
		resp, err := http.Post(ts.srv.URL+"/nuve/createToken/", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "bun_tokens_issued_total 1")
		assert.Contains(t, string(body), `bun_http_requests_total{method="POST",route="/nuve/createToken/",status="200"} 1`)
	})

	t.Run("not found", func(t *testing.T) {
		resp, err := http.Get(ts.srv.URL + "/nope")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Get(ts.srv.URL + "/nuve/createToken/")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "Room server is healthy.", rec.Body.String())
}
