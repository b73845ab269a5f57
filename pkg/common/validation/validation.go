package validation

import (
	"reflect"
	"strings"
	"time"

	gderrors "github.com/vnykmshr/goduplex/pkg/common/errors"
)

// ValidateNonNegative rejects negative sizes and counts. Zero is left to the
// caller's defaults.
func ValidateNonNegative(module, field string, value int) error {
	if value < 0 {
		return gderrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 for the default or a positive value")
	}
	return nil
}

// ValidateNonNegativeDuration rejects negative delays and timeouts.
func ValidateNonNegativeDuration(module, field string, value time.Duration) error {
	if value < 0 {
		return gderrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 to disable or a positive duration")
	}
	return nil
}

// ValidateNotNil rejects nil clients and callbacks, typed nil pointers
// included.
func ValidateNotNil(module, field string, value interface{}) error {
	if value == nil || isNilPointer(value) {
		return gderrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNotEmpty rejects empty names and keys.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return gderrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// ValidateOneOf rejects a value outside allowed.
func ValidateOneOf(module, field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return gderrors.NewValidationError(module, field, value, "unsupported value").
		WithHint("use one of: " + strings.Join(allowed, ", "))
}

func isNilPointer(value interface{}) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
