package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct checks v's `validate` tags. Violations become a KindConfig
// error whose Field names the first offending field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return Wrap(KindConfig, err, "invalid configuration")
	}
	messages := make([]string, 0, len(valErrs))
	for _, ve := range valErrs {
		messages = append(messages, ve.Namespace()+": "+formatValidationError(ve))
	}
	return &Error{
		Kind:    KindConfig,
		Message: "invalid configuration: " + strings.Join(messages, "; "),
		Field:   valErrs[0].Namespace(),
	}
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte", "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "gtefield":
		return fmt.Sprintf("must not be less than %s", ve.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", ve.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %q validation", ve.Tag())
	}
}
