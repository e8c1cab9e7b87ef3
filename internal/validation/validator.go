// Package validation wires go-playground/validator into Echo.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/recipe-api/internal/service"
)

// Validator implements echo.Validator and reports failures as
// *service.ValidationError keyed by JSON field name.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that names fields after their JSON tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate validates a struct.
func (v *Validator) Validate(i any) error {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[e.Field()] = friendlyMessage(e)
	}
	return &service.ValidationError{Fields: fields}
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters.", e.Param())
		}
		return "Ensure this value is greater than or equal to " + e.Param() + "."
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", e.Param())
		}
		return "Ensure this value is less than or equal to " + e.Param() + "."
	case "gte":
		return "Ensure this value is greater than or equal to " + e.Param() + "."
	case "lte":
		return "Ensure this value is less than or equal to " + e.Param() + "."
	case "url":
		return "Enter a valid URL."
	default:
		return "This value is invalid."
	}
}
