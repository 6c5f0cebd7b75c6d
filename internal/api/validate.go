package api

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/hirewell/profile-ingest/internal/apierr"
)

var validate = validator.New()

// validateStruct runs struct-tag validation and translates failures into
// the §7 VALIDATION_ERROR body with one detail entry per offending field,
// per §4.7's "failure -> 422 with a structured list of field errors".
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			return apierr.New(apierr.ValidationError, "request validation failed", err, details)
		}
		return apierr.New(apierr.ValidationError, "request validation failed", err, nil)
	}
	return nil
}
