// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/sinkline/internal/event"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// sinkNamePattern restricts sink names to characters that are safe in
// metric labels and log fields.
var sinkNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)

// ValidationError represents a single field validation error with structured information.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the path of the field that failed validation.
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string {
	return e.tag
}

// Param returns the parameter for the validation tag (e.g., "100" for "max=100").
func (e *ValidationError) Param() string {
	return e.param
}

// Value returns the actual value that failed validation.
func (e *ValidationError) Value() interface{} {
	return e.value
}

// Error returns a human-readable error message.
func (e *ValidationError) Error() string {
	return e.message
}

// RequestValidationError represents a collection of validation errors.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the slice of validation errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface, returning a combined error message.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}

	return strings.Join(messages, "; ")
}

// APIError is the error body returned by the admin API.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToAPIError converts validation errors to the admin API error format.
func (ve *RequestValidationError) ToAPIError() *APIError {
	if len(ve.errors) == 0 {
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Validation failed",
		}
	}

	// Single error - use simple message
	if len(ve.errors) == 1 {
		err := ve.errors[0]
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: err.message,
			Details: map[string]interface{}{
				"field": err.field,
				"tag":   err.tag,
			},
		}
	}

	fields := make([]map[string]interface{}, len(ve.errors))
	for i, err := range ve.errors {
		fields[i] = map[string]interface{}{
			"field":   err.field,
			"tag":     err.tag,
			"message": err.message,
		}
	}

	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: ve.Error(),
		Details: map[string]interface{}{
			"fields": fields,
		},
	}
}

// GetValidator returns the singleton validator instance.
// The validator is initialized once with custom validators and options.
// This function is thread-safe.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)

		// Registration only fails for empty tags or nil functions.
		_ = validate.RegisterValidation("loglevel", validateLogLevel)
		_ = validate.RegisterValidation("sinkname", validateSinkName)
	})

	return validate
}

// fieldName reports fields by their koanf key, then json key, then Go name.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"koanf", "json"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := event.ParseLevel(fl.Field().String())
	return err == nil
}

func validateSinkName(fl validator.FieldLevel) bool {
	return sinkNamePattern.MatchString(fl.Field().String())
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil if validation passes, or *RequestValidationError if validation fails.
func ValidateStruct(s interface{}) *RequestValidationError {
	v := GetValidator()

	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{
				{
					field:   "unknown",
					tag:     "unknown",
					message: err.Error(),
				},
			},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		path := fieldPath(fieldErr)
		fieldErrors[i] = ValidationError{
			field:   path,
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr, path),
		}
	}

	return &RequestValidationError{errors: fieldErrors}
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"loglevel": "%s must be one of: trace, debug, info, warn, error, fatal, off",
	"sinkname": "%s must start with a letter or digit and contain only letters, digits, '_', '.' or '-'",
	"url":      "%s must be a valid URL",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"oneof":       "%s must be one of: %s",
	"gte":         "%s must be greater than or equal to %s",
	"lte":         "%s must be less than or equal to %s",
	"gt":          "%s must be greater than %s",
	"lt":          "%s must be less than %s",
	"required_if": "%s is required when %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError, field string) string {
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}

	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	return translateMinMax(fe, field, tag, param)
}

// translateMinMax handles min/max validation with type-specific messages.
func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	switch fe.Kind() {
	case reflect.String:
		switch tag {
		case "min":
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
	case reflect.Slice, reflect.Map, reflect.Array:
		switch tag {
		case "min":
			return fmt.Sprintf("%s must contain at least %s entries", field, param)
		case "max":
			return fmt.Sprintf("%s must contain at most %s entries", field, param)
		}
	default:
		switch tag {
		case "min":
			return fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			return fmt.Sprintf("%s must be at most %s", field, param)
		}
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
