package httpserver

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "github.com/vmanilo/paralimni/internal/platform/errors"
)

// requireToken accepts "Authorization: Bearer <token>" for any signed-up user
// or the configured load-test token.
func (s *Server) requireToken() echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(token string, c echo.Context) (bool, error) {
			ok, err := s.app.Authenticate(c.Request().Context(), token)
			if err != nil {
				return false, apperrors.InternalError("failed to verify token", err)
			}
			return ok, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			if _, ok := errors.AsType[*apperrors.Error](err); ok {
				return err
			}
			return apperrors.UnauthorizedError("Invalid or missing bearer token")
		},
	})
}
