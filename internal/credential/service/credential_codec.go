package service

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/allisson/tierguard/internal/clock"
	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	apperrors "github.com/allisson/tierguard/internal/errors"
)

// minSigningKeyLength is the shortest accepted HMAC key in bytes.
const minSigningKeyLength = 32

// claims is the JWT payload. ID carries the token id, Subject the owner id.
type claims struct {
	jwt.RegisteredClaims
	Kind string `json:"knd"`
}

// jwtCodec implements CredentialCodec with HS256 signed JWTs.
type jwtCodec struct {
	key    []byte
	issuer string
	parser *jwt.Parser
}

// Sign encodes the record identity into a signed JWT.
func (c *jwtCodec) Sign(record *credentialDomain.TokenRecord) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.ID.String(),
			Subject:   strconv.FormatInt(record.OwnerID, 10),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(record.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		},
		Kind: string(record.Kind),
	})

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to sign credential")
	}
	return signed, nil
}

// Parse verifies the signature, issuer and expiry of raw and extracts its identity.
func (c *jwtCodec) Parse(raw string) (*Credential, error) {
	var parsed claims
	_, err := c.parser.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, credentialDomain.ErrRevokedOrExpired
		}
		return nil, credentialDomain.ErrInvalidCredential
	}

	tokenID, err := uuid.Parse(parsed.ID)
	if err != nil {
		return nil, credentialDomain.ErrInvalidCredential
	}
	ownerID, err := strconv.ParseInt(parsed.Subject, 10, 64)
	if err != nil || ownerID <= 0 {
		return nil, credentialDomain.ErrInvalidCredential
	}
	kind, err := credentialDomain.ParseKind(parsed.Kind)
	if err != nil {
		return nil, credentialDomain.ErrInvalidCredential
	}

	return &Credential{
		TokenID:   tokenID,
		OwnerID:   ownerID,
		Kind:      kind,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}, nil
}

// NewCredentialCodec creates an HS256 codec. Expiry is checked against clk.
func NewCredentialCodec(key []byte, issuer string, clk clock.Clock) (CredentialCodec, error) {
	if len(key) < minSigningKeyLength {
		return nil, apperrors.Wrapf(
			apperrors.ErrInvalidInput,
			"signing key must be at least %d bytes",
			minSigningKeyLength,
		)
	}

	return &jwtCodec{
		key:    key,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}
