// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"

	validation "github.com/jellydator/validation"

	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
	apperrors "github.com/allisson/tierguard/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Tier validates a tier name.
var Tier = validation.NewStringRuleWithError(
	func(s string) bool {
		return entitlementDomain.Tier(s).Valid()
	},
	validation.NewError("validation_tier", "must be one of observer, navigator, operator, sovereign"),
)

// Kind validates a token kind.
var Kind = validation.NewStringRuleWithError(
	func(s string) bool {
		return credentialDomain.Kind(s).Valid()
	},
	validation.NewError("validation_kind", "must be one of session, refresh, magic_link"),
)
