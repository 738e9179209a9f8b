package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every Validate method in this package.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json field names so errors line up with the wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// ValidateStruct runs tag-based validation and converts the first failure
// into a validation AppError. Missing or blank required fields map to
// ErrCodeValidationMissingField; any other rule maps to
// ErrCodeValidationInvalidValue.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewAppError(ErrCodeValidationInvalidValue, "validation failed", err)
	}

	fe := verrs[0]
	code := ErrCodeValidationInvalidValue
	if fe.Tag() == "required" || fe.Tag() == "notblank" {
		code = ErrCodeValidationMissingField
	}

	return NewAppErrorWithDetails(code,
		fmt.Sprintf("field %s failed rule %q", fe.Namespace(), fe.Tag()),
		err,
		map[string]any{"field": fe.Namespace(), "rule": fe.Tag()},
	)
}

// RequireNotBlank fails with ErrCodeValidationMissingField when value is
// empty or whitespace.
func RequireNotBlank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewAppErrorWithDetails(ErrCodeValidationMissingField,
			fmt.Sprintf("%s is required", field), nil,
			map[string]any{"field": field},
		)
	}
	return nil
}
