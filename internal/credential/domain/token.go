// Package domain defines issued credentials and the errors that describe why a
// credential is refused.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the purpose of an issued token.
type Kind string

const (
	// KindSession authenticates API requests.
	KindSession Kind = "session"

	// KindRefresh is exchanged for new session tokens.
	KindRefresh Kind = "refresh"

	// KindMagicLink is a single-use login token delivered out of band.
	KindMagicLink Kind = "magic_link"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSession, KindRefresh, KindMagicLink:
		return true
	}
	return false
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// TokenRecord is the durable identity of an issued credential. The token value
// itself is never stored; only its id travels inside the signed credential.
type TokenRecord struct {
	ID        uuid.UUID
	Kind      Kind
	OwnerID   int64
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
	Revoked   bool
}

// NewTokenRecord builds a fresh record valid for ttl starting at now.
func NewTokenRecord(kind Kind, ownerID int64, now time.Time, ttl time.Duration) (*TokenRecord, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if ownerID <= 0 {
		return nil, ErrInvalidOwner
	}
	if ttl <= 0 {
		return nil, ErrInvalidLifetime
	}

	return &TokenRecord{
		ID:        uuid.Must(uuid.NewV7()),
		Kind:      kind,
		OwnerID:   ownerID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Expired reports whether the record is past its expiry at now.
func (t *TokenRecord) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Usable reports whether the record may still authenticate at now.
// Revocation and expiry are independent facts evaluated together.
func (t *TokenRecord) Usable(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}

// IssueTokenInput requests a new credential for an owner.
type IssueTokenInput struct {
	Kind    Kind
	OwnerID int64
}

// IssueTokenOutput carries a freshly signed credential.
type IssueTokenOutput struct {
	Token  string
	Record *TokenRecord
}
