// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/betterportal/gateway/internal/errors"
)

var (
	// grantRegex matches the permissionId:action:fieldId grant grammar.
	grantRegex = regexp.MustCompile(`^[\w.\-]+:(\*|[a-z]+):(\*|[\w.\-]+)$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// GrantFormat validates the three-segment permission grant grammar
var GrantFormat = validation.NewStringRuleWithError(
	func(s string) bool {
		return grantRegex.MatchString(s)
	},
	validation.NewError("validation_grant_format", "must be of the form permissionId:action:fieldId"),
)
