package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vmanilo/paralimni/internal/domain"
	apperrors "github.com/vmanilo/paralimni/internal/platform/errors"
	"github.com/vmanilo/paralimni/internal/platform/ss58"
)

// ledgerRetryAfter is the Retry-After hint sent with 503s.
const ledgerRetryAfter = 5 * time.Second

func (s *Server) registerDividendRoutes(g *echo.Group) {
	g.GET("/tao_dividends", s.handleGetDividend, s.requireToken())
}

func (s *Server) handleGetDividend(c echo.Context) error {
	query, trade, err := s.parseDividendQuery(c)
	if err != nil {
		return err
	}

	view, err := s.app.GetDividend(c.Request().Context(), query, trade)
	switch {
	case errors.Is(err, domain.ErrDividendNotFound):
		return apperrors.NotFoundError("Dividend not found")
	case errors.Is(err, domain.ErrLedgerUnavailable), errors.Is(err, domain.ErrMalformedUpstream):
		return apperrors.UnavailableError("Ledger unavailable, try again later", err, ledgerRetryAfter).
			WithField("netuid", query.SubnetID)
	case errors.Is(err, context.Canceled):
		return apperrors.UnavailableError("request cancelled", err, 0)
	case err != nil:
		return apperrors.InternalError("failed to resolve dividend", err)
	}

	if err := c.JSON(http.StatusOK, view); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// parseDividendQuery applies the configured defaults for absent parameters.
func (s *Server) parseDividendQuery(c echo.Context) (domain.DividendQuery, bool, error) {
	query := domain.DividendQuery{
		SubnetID: uint16(s.config.DefaultNetUID),
		Hotkey:   s.config.DefaultHotkey,
	}

	if raw := c.QueryParam("netuid"); raw != "" {
		netuid, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return query, false, apperrors.ValidationError("netuid must be an integer between 0 and 65535").
				WithField("netuid", raw)
		}
		query.SubnetID = uint16(netuid)
	}

	if raw := c.QueryParam("hotkey"); raw != "" {
		if !ss58.Valid(raw) {
			return query, false, apperrors.ValidationError("hotkey must be a valid SS58 address").
				WithField("hotkey", raw)
		}
		query.Hotkey = raw
	}

	trade := false
	if raw := c.QueryParam("trade"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return query, false, apperrors.ValidationError("trade must be true or false").WithField("trade", raw)
		}
		trade = parsed
	}

	return query, trade, nil
}
