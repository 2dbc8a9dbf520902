package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmanilo/paralimni/internal/domain"
	"github.com/vmanilo/paralimni/internal/platform/correlation"
	apperrors "github.com/vmanilo/paralimni/internal/platform/errors"
)

func dividendApp(t *testing.T, want domain.DividendQuery, wantTrade bool) *mockAppService {
	return &mockAppService{
		getDividendFn: func(_ context.Context, q domain.DividendQuery, trade bool) (*domain.DividendView, error) {
			assert.Equal(t, want, q)
			assert.Equal(t, wantTrade, trade)
			return &domain.DividendView{
				Timestamp:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				SubnetID:         q.SubnetID,
				Hotkey:           q.Hotkey,
				Dividend:         123456,
				Cached:           true,
				StakeTxTriggered: trade,
			}, nil
		},
	}
}

func TestGetDividend_Success(t *testing.T) {
	app := dividendApp(t, domain.DividendQuery{SubnetID: 3, Hotkey: bobHotkey}, true)
	srv := newTestServer(t, app)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tao_dividends?netuid=3&hotkey="+bobHotkey+"&trade=true", nil)
	rec := do(t, srv, authed(req))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{
		"timestamp": "2026-03-01T12:00:00Z",
		"netuid": 3,
		"hotkey": %q,
		"dividend": 123456,
		"cached": true,
		"stake_tx_triggered": true
	}`, bobHotkey), rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestGetDividend_Defaults(t *testing.T) {
	app := dividendApp(t, domain.DividendQuery{SubnetID: 18, Hotkey: aliceHotkey}, false)
	srv := newTestServer(t, app)

	rec := do(t, srv, authed(httptest.NewRequest(http.MethodGet, "/api/v1/tao_dividends", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetDividend_NetuidZeroIsValid(t *testing.T) {
	app := dividendApp(t, domain.DividendQuery{SubnetID: 0, Hotkey: aliceHotkey}, false)
	srv := newTestServer(t, app)

	rec := do(t, srv, authed(httptest.NewRequest(http.MethodGet, "/api/v1/tao_dividends?netuid=0", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetDividend_BadParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "negative netuid", query: "netuid=-1"},
		{name: "non numeric netuid", query: "netuid=abc"},
		{name: "netuid too large", query: "netuid=70000"},
		{name: "hotkey not ss58", query: "hotkey=not-an-address"},
		{name: "hotkey bad checksum", query: "hotkey=5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ"},
		{name: "trade not bool", query: "trade=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockAppService{})

			rec := do(t, srv, authed(httptest.NewRequest(http.MethodGet, "/api/v1/tao_dividends?"+tt.query, nil)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, apperrors.TypeValidation, resp.Type)
		})
	}
}

func TestGetDividend_NotFound(t *testing.T) {
	app := &mockAppService{getDividendFn: func(context.Context, domain.DividendQuery, bool) (*domain.DividendView, error) {
		return nil, domain.ErrDividendNotFound
	}}
	srv := newTestServer(t, app)

	rec := do(t, srv, authed(httptest.NewRequest(http.MethodGet, "/api/v1/tao_dividends", nil)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Dividend not found", resp.Error)
}

func TestGetDividend_LedgerUnavailable(t *testing.T) {
	app := &mockAppService{getDividendFn: func(context.Context, domain.DividendQuery, bool) (*domain.DividendView, error) {
		return nil, fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable, domain.ErrMalformedUpstream)
	}}
	srv := newTestServer(t, app)

	rec := do(t, srv, authed(httptest.NewRequest(http.MethodGet, "/api/v1/tao_dividends", nil)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperrors.TypeUnavailable, resp.Type)
}

func TestGetDividend_UnexpectedError(t *testing.T) {
	app := &mockAppService{getDividendFn: func(context.Context, domain.DividendQuery, bool) (*domain.DividendView, error) {
		return nil, assert.AnError
	}}
	srv := newTestServer(t, app)

	rec := do(t, srv, authed(httptest.NewRequest(http.MethodGet, "/api/v1/tao_dividends", nil)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetDividend_CorrelationIDReachesService(t *testing.T) {
	var seen string
	app := &mockAppService{getDividendFn: func(ctx context.Context, q domain.DividendQuery, _ bool) (*domain.DividendView, error) {
		seen, _ = correlation.ID(ctx)
		return &domain.DividendView{SubnetID: q.SubnetID, Hotkey: q.Hotkey}, nil
	}}
	srv := newTestServer(t, app)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/tao_dividends", nil))
	req.Header.Set("X-Request-Id", "client-supplied")
	rec := do(t, srv, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-supplied", seen)
	assert.Equal(t, "client-supplied", rec.Header().Get("X-Request-Id"))
}
