package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vmanilo/paralimni/internal/platform/errors"
)

const testRemoteAddr = "1.2.3.4:1234"

// limitedHandler chains the limiter behind the error renderer, as routes.go does.
func limitedHandler(ratePerSecond float64, burst int) echo.HandlerFunc {
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	return ErrorHandlingMiddleware()(newRateLimiter(ratePerSecond, burst)(ok))
}

func hit(t *testing.T, h echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tao_dividends", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, h(echo.New().NewContext(req, rec)))
	return rec
}

func TestRateLimiter_AllowsBurst(t *testing.T) {
	h := limitedHandler(10, 3)

	for range 3 {
		assert.Equal(t, http.StatusOK, hit(t, h, testRemoteAddr).Code)
	}
}

func TestRateLimiter_RejectsBeyondBurst(t *testing.T) {
	h := limitedHandler(0.01, 1)

	require.Equal(t, http.StatusOK, hit(t, h, testRemoteAddr).Code)

	rec := hit(t, h, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("Retry-After"))

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.TypeRateLimited, resp.Type)
	assert.Equal(t, "rate limit exceeded", resp.Error)
}

func TestRateLimiter_RetryAfterRoundsUp(t *testing.T) {
	h := limitedHandler(50, 1)

	hit(t, h, testRemoteAddr)
	rec := hit(t, h, testRemoteAddr)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	h := limitedHandler(0.01, 1)

	assert.Equal(t, http.StatusOK, hit(t, h, testRemoteAddr).Code)
	assert.Equal(t, http.StatusOK, hit(t, h, "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, testRemoteAddr).Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	h := limitedHandler(0, 0)

	for range 50 {
		assert.Equal(t, http.StatusOK, hit(t, h, testRemoteAddr).Code)
	}
}
