package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/tierguard/internal/errors"
)

func TestNewTokenRecord(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		record, err := NewTokenRecord(KindMagicLink, 42, now, 15*time.Minute)
		require.NoError(t, err)
		assert.NotEqual(t, [16]byte{}, [16]byte(record.ID))
		assert.Equal(t, KindMagicLink, record.Kind)
		assert.Equal(t, int64(42), record.OwnerID)
		assert.True(t, record.ExpiresAt.After(record.IssuedAt))
		assert.False(t, record.Consumed)
		assert.False(t, record.Revoked)
	})

	t.Run("Error_InvalidKind", func(t *testing.T) {
		_, err := NewTokenRecord(Kind("api_key"), 42, now, time.Minute)
		assert.ErrorIs(t, err, ErrInvalidKind)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_InvalidOwner", func(t *testing.T) {
		_, err := NewTokenRecord(KindSession, 0, now, time.Minute)
		assert.ErrorIs(t, err, ErrInvalidOwner)
	})

	t.Run("Error_NonPositiveTTL", func(t *testing.T) {
		_, err := NewTokenRecord(KindSession, 1, now, 0)
		assert.ErrorIs(t, err, ErrInvalidLifetime)
	})
}

func TestTokenRecord_Usable(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	record, err := NewTokenRecord(KindSession, 1, now, time.Hour)
	require.NoError(t, err)

	assert.True(t, record.Usable(now))
	assert.True(t, record.Usable(record.ExpiresAt))
	assert.False(t, record.Usable(record.ExpiresAt.Add(time.Nanosecond)))

	record.Revoked = true
	assert.False(t, record.Usable(now))
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindSession, KindRefresh, KindMagicLink} {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("bearer")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestCredentialErrorsFailClosed(t *testing.T) {
	for _, err := range []error{ErrInvalidCredential, ErrRevokedOrExpired, ErrAlreadyConsumed} {
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	}
	assert.ErrorIs(t, ErrStoreUnavailable, apperrors.ErrUnavailable)
}
