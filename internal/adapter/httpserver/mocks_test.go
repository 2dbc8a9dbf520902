package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmanilo/paralimni/internal/domain"
	"github.com/vmanilo/paralimni/internal/platform/config"
)

const (
	aliceHotkey = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	bobHotkey   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	validToken  = "valid-token"
)

// --- Mock implementations ---

type mockAppService struct {
	getDividendFn  func(ctx context.Context, query domain.DividendQuery, trade bool) (*domain.DividendView, error)
	signupFn       func(ctx context.Context, email string) (string, error)
	authenticateFn func(ctx context.Context, token string) (bool, error)
}

func (m *mockAppService) GetDividend(ctx context.Context, query domain.DividendQuery, trade bool) (*domain.DividendView, error) {
	if m.getDividendFn != nil {
		return m.getDividendFn(ctx, query, trade)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) Signup(ctx context.Context, email string) (string, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, email)
	}
	return "", errors.New("not implemented")
}

func (m *mockAppService) Authenticate(ctx context.Context, token string) (bool, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, token)
	}
	return token == validToken, nil
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		DefaultNetUID:  18,
		DefaultHotkey:  aliceHotkey,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}
}

func newTestServer(t *testing.T, app appService, checks ...HealthCheck) *Server {
	t.Helper()
	return NewServer(testConfig(), app, nil, checks)
}

// do sends req through the full echo stack, middleware included.
func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.NotNil(t, rec)
	return rec
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+validToken)
	return req
}
