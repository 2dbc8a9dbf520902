package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vmanilo/paralimni/internal/platform/correlation"
	apperrors "github.com/vmanilo/paralimni/internal/platform/errors"
)

// correlationMiddleware adopts the caller's X-Request-ID or mints one, and
// echoes it back so clients can quote it.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if !correlation.Accept(id) {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

// ErrorHandlingMiddleware renders every handler error, including echo's own
// HTTP errors, as a structured JSON body.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			if c.Response().Committed {
				return err
			}

			var structuredErr *apperrors.Error
			if httpErr, ok := errors.AsType[*echo.HTTPError](err); ok {
				structuredErr = WrapHTTPError(httpErr)
			} else {
				structuredErr = apperrors.AsStructuredError(err)
			}
			logError(c, structuredErr)

			if structuredErr.RetryAfter > 0 {
				seconds := int(math.Ceil(structuredErr.RetryAfter.Seconds()))
				c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
			}

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeUnauthorized:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeRateLimited:
		slog.DebugContext(ctx, "Request throttled", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeUnavailable:
		logWithCause(ctx, slog.LevelWarn, "Dependency unavailable", err, attrs)
	case apperrors.TypeInternal:
		logWithCause(ctx, slog.LevelError, "Internal error", err, attrs)
	case apperrors.TypeExternal:
		logWithCause(ctx, slog.LevelError, "External service error", err, attrs)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

func logWithCause(ctx context.Context, level slog.Level, msg string, err *apperrors.Error, attrs []any) {
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}
	slog.Log(ctx, level, msg, attrs...)
}

// WrapHTTPError maps an echo HTTP error (router 404s, bind failures, key auth)
// onto the structured error types.
func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}
	if message == "" {
		message = "internal server error"
	}

	return &apperrors.Error{
		Type:    apperrors.TypeForStatus(httpErr.Code),
		Message: message,
		Cause:   httpErr.Internal,
		Context: make(map[string]any),
	}
}
