package domain

import (
	"github.com/allisson/tierguard/internal/errors"
)

// Credential errors. The first four fail closed on the request path.
var (
	// ErrInvalidCredential indicates a malformed, unsigned or mismatched credential.
	ErrInvalidCredential = errors.Wrap(errors.ErrUnauthorized, "invalid credential")

	// ErrRevokedOrExpired indicates a credential that was revoked or is past expiry.
	ErrRevokedOrExpired = errors.Wrap(errors.ErrUnauthorized, "credential revoked or expired")

	// ErrAlreadyConsumed indicates a magic link that was already redeemed.
	ErrAlreadyConsumed = errors.Wrap(errors.ErrUnauthorized, "magic link already consumed")

	// ErrStoreUnavailable indicates the credential store could not answer.
	ErrStoreUnavailable = errors.Wrap(errors.ErrUnavailable, "credential store unavailable")

	// ErrTokenNotFound indicates no token with the given id exists.
	ErrTokenNotFound = errors.Wrap(errors.ErrNotFound, "token not found")

	// ErrInvalidKind indicates an unknown token kind.
	ErrInvalidKind = errors.Wrap(errors.ErrInvalidInput, "invalid token kind")

	// ErrInvalidOwner indicates a non-positive owner id.
	ErrInvalidOwner = errors.Wrap(errors.ErrInvalidInput, "invalid owner id")

	// ErrInvalidLifetime indicates a token that would expire before it is issued.
	ErrInvalidLifetime = errors.Wrap(errors.ErrInvalidInput, "token must expire after it is issued")
)
