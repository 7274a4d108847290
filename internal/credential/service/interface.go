// Package service provides the credential services used on the request path:
// the signed credential codec and the cached revocation index.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
)

// TokenStore is the durable token state the revocation index reads and writes.
type TokenStore interface {
	// Get returns the record for tokenID or ErrTokenNotFound.
	Get(ctx context.Context, tokenID uuid.UUID) (*credentialDomain.TokenRecord, error)

	// Revoke marks a token revoked. Repeated calls succeed.
	Revoke(ctx context.Context, tokenID uuid.UUID) error

	// ConsumeMagicLink flips consumed to true with a conditional update that
	// also requires the link to be unrevoked and unexpired at now, and reports
	// whether this call performed the flip.
	ConsumeMagicLink(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error)
}

// RevocationIndex answers "may this token still be used" quickly, with a
// bounded-staleness cache in front of the TokenStore.
type RevocationIndex interface {
	// IsRevoked reports whether the token is revoked, expired or unknown.
	// Returns ErrStoreUnavailable when the store cannot answer.
	IsRevoked(ctx context.Context, tokenID uuid.UUID) (bool, error)

	// Revoke durably revokes a token and records the revocation locally until
	// expiresAt. Revoking twice succeeds; unknown ids return ErrTokenNotFound.
	Revoke(ctx context.Context, tokenID uuid.UUID, expiresAt time.Time) error

	// IsConsumedOnce atomically consumes a magic link. Exactly one caller per
	// link observes false. Expired or revoked links return ErrRevokedOrExpired
	// and are left unconsumed.
	IsConsumedOnce(ctx context.Context, tokenID uuid.UUID) (alreadyConsumed bool, err error)

	// Verify checks that the token is usable and belongs to ownerID with the
	// given kind.
	Verify(
		ctx context.Context,
		tokenID uuid.UUID,
		ownerID int64,
		kind credentialDomain.Kind,
	) (*credentialDomain.TokenRecord, error)

	// Invalidate drops cached entries so the next lookup reads the store.
	Invalidate(tokenIDs ...uuid.UUID)
}

// CredentialCodec turns token records into signed bearer strings and back.
type CredentialCodec interface {
	// Sign returns the bearer string for record.
	Sign(record *credentialDomain.TokenRecord) (string, error)

	// Parse validates signature and shape. Returns ErrInvalidCredential or,
	// for a well-formed but expired credential, ErrRevokedOrExpired.
	Parse(raw string) (*Credential, error)
}

// Credential is the verified content of a bearer string.
type Credential struct {
	TokenID   uuid.UUID
	OwnerID   int64
	Kind      credentialDomain.Kind
	ExpiresAt time.Time
}
