package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func TestAPIKeyAuthAcceptsBearerAndBare(t *testing.T) {
	h := APIKeyAuth(map[string]string{"dispatcher": "secret-1"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(GetCallerFromContext(r.Context())))
		}))

	for _, header := range []string{"Bearer secret-1", "secret-1"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/agent/status", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "dispatcher", rec.Body.String())
	}
}

func TestAPIKeyAuthRejectsBadKey(t *testing.T) {
	h := APIKeyAuth(map[string]string{"dispatcher": "secret-1"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/agent/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// missing header is rejected too
	req = httptest.NewRequest(http.MethodGet, "/v1/agent/status", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuthOpenPaths(t *testing.T) {
	h := APIKeyAuth(map[string]string{"dispatcher": "secret-1"})(okHandler())

	for _, path := range []string{"/health", "/ws"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAPIKeyAuthDisabledWhenNoKeys(t *testing.T) {
	h := APIKeyAuth(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/agent/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	h := RateLimit(1, 2)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/errors", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}

func TestRateLimitKeysPerClient(t *testing.T) {
	h := RateLimit(1, 1)(okHandler())

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/errors", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, addr)
	}
}
