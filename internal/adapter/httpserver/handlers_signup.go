package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vmanilo/paralimni/internal/domain"
	apperrors "github.com/vmanilo/paralimni/internal/platform/errors"
)

type signupRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type signupResponse struct {
	Token string `json:"token"`
}

func (s *Server) registerSignupRoutes(g *echo.Group) {
	g.POST("/signup", s.handleSignup)
}

func (s *Server) handleSignup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, err := s.app.Signup(c.Request().Context(), req.Email)
	if errors.Is(err, domain.ErrEmailTaken) {
		return apperrors.ValidationError("User with this email already exists")
	}
	if err != nil {
		return apperrors.InternalError("failed to create user", err)
	}

	if err := c.JSON(http.StatusOK, signupResponse{Token: token}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
