// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/tierguard/internal/validation"
)

// RedeemMagicLinkRequest carries the magic link credential being redeemed.
type RedeemMagicLinkRequest struct {
	Token string `json:"token"`
}

// Validate checks if the redeem request is valid.
func (r *RedeemMagicLinkRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 4096),
			customValidation.CompactJWS,
		),
	)
}
