package httpserver

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/vmanilo/paralimni/internal/platform/errors"
)

// requestValidator adapts validator/v10 to echo.Validator. Failures come back
// as validation errors naming the offending fields.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.ValidationError("invalid request")
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
	}
	return apperrors.ValidationError("invalid request").WithField("fields", strings.Join(fields, ", "))
}
