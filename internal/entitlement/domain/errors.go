package domain

import (
	"github.com/allisson/tierguard/internal/errors"
)

// Entitlement errors.
var (
	// ErrInvalidTier indicates a value outside the tier enumeration.
	ErrInvalidTier = errors.Wrap(errors.ErrInvalidInput, "invalid tier")

	// ErrPreviewExpiry indicates a preview whose expiry is not in the future.
	ErrPreviewExpiry = errors.Wrap(errors.ErrInvalidInput, "preview must expire in the future")

	// ErrInvalidUser indicates a non-positive user id.
	ErrInvalidUser = errors.Wrap(errors.ErrInvalidInput, "invalid user id")

	// ErrTierStateNotFound indicates no entitlement row exists for the user.
	ErrTierStateNotFound = errors.Wrap(errors.ErrNotFound, "tier state not found")

	// ErrStoreUnavailable indicates the entitlement store could not answer.
	ErrStoreUnavailable = errors.Wrap(errors.ErrUnavailable, "entitlement store unavailable")
)
