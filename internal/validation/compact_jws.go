package validation

import (
	"encoding/base64"
	"strings"

	validation "github.com/jellydator/validation"
)

// CompactJWS validates that a string has the shape of a compact JWS: three
// dot-separated base64url segments. Signatures are not checked here.
var CompactJWS = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_jws_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return validation.NewError("validation_jws", "must be a signed credential")
	}
	for _, part := range parts {
		if part == "" {
			return validation.NewError("validation_jws", "must be a signed credential")
		}
		if _, err := base64.RawURLEncoding.DecodeString(part); err != nil {
			return validation.NewError("validation_jws", "must be a signed credential")
		}
	}
	return nil
})
