package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/tierguard/internal/clock"
	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	credentialRepository "github.com/allisson/tierguard/internal/credential/repository"
	"github.com/allisson/tierguard/internal/testutil"
)

// mockTokenStore is a mock implementation of TokenStore for testing.
type mockTokenStore struct {
	mock.Mock
}

func (m *mockTokenStore) Get(ctx context.Context, tokenID uuid.UUID) (*credentialDomain.TokenRecord, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.TokenRecord), args.Error(1)
}

func (m *mockTokenStore) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *mockTokenStore) ConsumeMagicLink(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, tokenID, now)
	return args.Bool(0), args.Error(1)
}

var testNow = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIndex(store TokenStore, clk clock.Clock, cfg RevocationIndexConfig) RevocationIndex {
	return NewRevocationIndex(store, clk, cfg, discardLogger())
}

func sessionRecord(t *testing.T, ownerID int64) *credentialDomain.TokenRecord {
	t.Helper()
	record, err := credentialDomain.NewTokenRecord(credentialDomain.KindSession, ownerID, testNow, time.Hour)
	require.NoError(t, err)
	return record
}

func TestRevocationIndex_IsRevoked(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_LiveTokenServedFromCache", func(t *testing.T) {
		store := &mockTokenStore{}
		record := sessionRecord(t, 1)
		store.On("Get", mock.Anything, record.ID).Return(record, nil).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{RefreshInterval: time.Minute})

		revoked, err := index.IsRevoked(ctx, record.ID)
		require.NoError(t, err)
		assert.False(t, revoked)

		revoked, err = index.IsRevoked(ctx, record.ID)
		require.NoError(t, err)
		assert.False(t, revoked)

		store.AssertExpectations(t)
	})

	t.Run("Success_UnknownTokenIsRevoked", func(t *testing.T) {
		store := &mockTokenStore{}
		id := uuid.Must(uuid.NewV7())
		store.On("Get", mock.Anything, id).Return(nil, credentialDomain.ErrTokenNotFound).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		revoked, err := index.IsRevoked(ctx, id)
		require.NoError(t, err)
		assert.True(t, revoked)
		store.AssertExpectations(t)
	})

	t.Run("Success_ExpiredTokenIsRevoked", func(t *testing.T) {
		store := &mockTokenStore{}
		record := sessionRecord(t, 1)
		store.On("Get", mock.Anything, record.ID).Return(record, nil).Once()

		clk := clock.NewManual(testNow)
		index := newTestIndex(store, clk, RevocationIndexConfig{RefreshInterval: time.Minute})

		clk.Advance(time.Hour + time.Second)
		revoked, err := index.IsRevoked(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("Success_RetriesOnceOnTransientFailure", func(t *testing.T) {
		store := &mockTokenStore{}
		record := sessionRecord(t, 1)
		store.On("Get", mock.Anything, record.ID).Return(nil, errors.New("connection reset")).Once()
		store.On("Get", mock.Anything, record.ID).Return(record, nil).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		revoked, err := index.IsRevoked(ctx, record.ID)
		require.NoError(t, err)
		assert.False(t, revoked)
		store.AssertExpectations(t)
	})

	t.Run("Error_FailsClosedWhenStoreUnavailable", func(t *testing.T) {
		store := &mockTokenStore{}
		id := uuid.Must(uuid.NewV7())
		store.On("Get", mock.Anything, id).Return(nil, errors.New("connection refused")).Twice()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		_, err := index.IsRevoked(ctx, id)
		assert.ErrorIs(t, err, credentialDomain.ErrStoreUnavailable)
		store.AssertNumberOfCalls(t, "Get", 2)
	})

	t.Run("Success_FullCacheStillAnswers", func(t *testing.T) {
		store := &mockTokenStore{}
		first := sessionRecord(t, 1)
		second := sessionRecord(t, 2)
		store.On("Get", mock.Anything, first.ID).Return(first, nil).Once()
		store.On("Get", mock.Anything, second.ID).Return(second, nil).Twice()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{
			RefreshInterval: time.Minute,
			MaxEntries:      1,
		})

		for _, id := range []uuid.UUID{first.ID, second.ID, first.ID, second.ID} {
			revoked, err := index.IsRevoked(ctx, id)
			require.NoError(t, err)
			assert.False(t, revoked)
		}
		store.AssertExpectations(t)
	})
}

func TestRevocationIndex_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RevocationVisibleWithoutStoreRead", func(t *testing.T) {
		store := &mockTokenStore{}
		record := sessionRecord(t, 3)
		store.On("Revoke", mock.Anything, record.ID).Return(nil).Twice()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		require.NoError(t, index.Revoke(ctx, record.ID, record.ExpiresAt))
		require.NoError(t, index.Revoke(ctx, record.ID, record.ExpiresAt))

		revoked, err := index.IsRevoked(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, revoked)

		_, err = index.Verify(ctx, record.ID, 3, credentialDomain.KindSession)
		assert.ErrorIs(t, err, credentialDomain.ErrRevokedOrExpired)

		store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("Error_UnknownToken", func(t *testing.T) {
		store := &mockTokenStore{}
		id := uuid.Must(uuid.NewV7())
		store.On("Revoke", mock.Anything, id).Return(credentialDomain.ErrTokenNotFound).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		err := index.Revoke(ctx, id, testNow.Add(time.Hour))
		assert.ErrorIs(t, err, credentialDomain.ErrTokenNotFound)
	})

	t.Run("Error_StoreFailure", func(t *testing.T) {
		store := &mockTokenStore{}
		id := uuid.Must(uuid.NewV7())
		store.On("Revoke", mock.Anything, id).Return(errors.New("disk full")).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		err := index.Revoke(ctx, id, testNow.Add(time.Hour))
		assert.ErrorIs(t, err, credentialDomain.ErrStoreUnavailable)
	})
}

func TestRevocationIndex_Verify(t *testing.T) {
	ctx := context.Background()
	record := sessionRecord(t, 9)

	store := &mockTokenStore{}
	store.On("Get", mock.Anything, record.ID).Return(record, nil)
	unknown := uuid.Must(uuid.NewV7())
	store.On("Get", mock.Anything, unknown).Return(nil, credentialDomain.ErrTokenNotFound)

	index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{RefreshInterval: time.Minute})

	got, err := index.Verify(ctx, record.ID, 9, credentialDomain.KindSession)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	_, err = index.Verify(ctx, record.ID, 10, credentialDomain.KindSession)
	assert.ErrorIs(t, err, credentialDomain.ErrInvalidCredential)

	_, err = index.Verify(ctx, record.ID, 9, credentialDomain.KindRefresh)
	assert.ErrorIs(t, err, credentialDomain.ErrInvalidCredential)

	_, err = index.Verify(ctx, unknown, 9, credentialDomain.KindSession)
	assert.ErrorIs(t, err, credentialDomain.ErrInvalidCredential)
}

func TestRevocationIndex_IsConsumedOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("Error_ExpiredLinkIsNotConsumed", func(t *testing.T) {
		store := &mockTokenStore{}
		link, err := credentialDomain.NewTokenRecord(credentialDomain.KindMagicLink, 4, testNow.Add(-16*time.Minute), 15*time.Minute)
		require.NoError(t, err)
		store.On("Get", mock.Anything, link.ID).Return(link, nil).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		_, err = index.IsConsumedOnce(ctx, link.ID)
		assert.ErrorIs(t, err, credentialDomain.ErrRevokedOrExpired)
		store.AssertNotCalled(t, "ConsumeMagicLink", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error_NotAMagicLink", func(t *testing.T) {
		store := &mockTokenStore{}
		record := sessionRecord(t, 4)
		store.On("Get", mock.Anything, record.ID).Return(record, nil).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		_, err := index.IsConsumedOnce(ctx, record.ID)
		assert.ErrorIs(t, err, credentialDomain.ErrInvalidCredential)
	})

	t.Run("Success_SecondRedemptionSeesConsumed", func(t *testing.T) {
		store := &mockTokenStore{}
		link, err := credentialDomain.NewTokenRecord(credentialDomain.KindMagicLink, 4, testNow, 15*time.Minute)
		require.NoError(t, err)
		consumed := *link
		consumed.Consumed = true

		store.On("Get", mock.Anything, link.ID).Return(link, nil).Twice()
		store.On("Get", mock.Anything, link.ID).Return(&consumed, nil).Once()
		store.On("ConsumeMagicLink", mock.Anything, link.ID, testNow).Return(true, nil).Once()
		store.On("ConsumeMagicLink", mock.Anything, link.ID, testNow).Return(false, nil).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		already, err := index.IsConsumedOnce(ctx, link.ID)
		require.NoError(t, err)
		assert.False(t, already)

		// The second caller read the link before the first update landed.
		already, err = index.IsConsumedOnce(ctx, link.ID)
		require.NoError(t, err)
		assert.True(t, already)
		store.AssertExpectations(t)
	})

	t.Run("Error_RevokedBeforeConsume", func(t *testing.T) {
		store := &mockTokenStore{}
		link, err := credentialDomain.NewTokenRecord(credentialDomain.KindMagicLink, 4, testNow, 15*time.Minute)
		require.NoError(t, err)
		revoked := *link
		revoked.Revoked = true

		store.On("Get", mock.Anything, link.ID).Return(link, nil).Once()
		store.On("ConsumeMagicLink", mock.Anything, link.ID, testNow).Return(false, nil).Once()
		store.On("Get", mock.Anything, link.ID).Return(&revoked, nil).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		_, err = index.IsConsumedOnce(ctx, link.ID)
		assert.ErrorIs(t, err, credentialDomain.ErrRevokedOrExpired)
		assert.NotErrorIs(t, err, credentialDomain.ErrAlreadyConsumed)
		store.AssertExpectations(t)
	})

	t.Run("Error_SweptBeforeConsume", func(t *testing.T) {
		store := &mockTokenStore{}
		link, err := credentialDomain.NewTokenRecord(credentialDomain.KindMagicLink, 4, testNow, 15*time.Minute)
		require.NoError(t, err)

		store.On("Get", mock.Anything, link.ID).Return(link, nil).Once()
		store.On("ConsumeMagicLink", mock.Anything, link.ID, testNow).Return(false, nil).Once()
		store.On("Get", mock.Anything, link.ID).Return(nil, credentialDomain.ErrTokenNotFound).Once()

		index := newTestIndex(store, clock.NewManual(testNow), RevocationIndexConfig{})

		_, err = index.IsConsumedOnce(ctx, link.ID)
		assert.ErrorIs(t, err, credentialDomain.ErrRevokedOrExpired)
	})
}

// revokeBeforeConsumeStore revokes the link between the index's read and its
// conditional update.
type revokeBeforeConsumeStore struct {
	TokenStore
}

func (s revokeBeforeConsumeStore) ConsumeMagicLink(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error) {
	if err := s.Revoke(ctx, tokenID); err != nil {
		return false, err
	}
	return s.TokenStore.ConsumeMagicLink(ctx, tokenID, now)
}

func TestRevocationIndex_SQLite_RevokedBetweenReadAndConsume(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)
	ctx := context.Background()

	repo := credentialRepository.NewSQLiteTokenRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	index := newTestIndex(revokeBeforeConsumeStore{TokenStore: repo}, clock.NewManual(now), RevocationIndexConfig{})

	link, err := credentialDomain.NewTokenRecord(credentialDomain.KindMagicLink, 13, now, 15*time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, link))

	_, err = index.IsConsumedOnce(ctx, link.ID)
	assert.ErrorIs(t, err, credentialDomain.ErrRevokedOrExpired)
	assert.NotErrorIs(t, err, credentialDomain.ErrAlreadyConsumed)

	stored, err := repo.Get(ctx, link.ID)
	require.NoError(t, err)
	assert.True(t, stored.Revoked)
	assert.False(t, stored.Consumed)
}

func TestRevocationIndex_SQLite_ConcurrentMagicLinkRedemption(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)
	ctx := context.Background()

	repo := credentialRepository.NewSQLiteTokenRepository(db)
	clk := clock.NewManual(time.Now().UTC())
	index := newTestIndex(repo, clk, RevocationIndexConfig{StoreTimeout: 5 * time.Second})

	link, err := credentialDomain.NewTokenRecord(credentialDomain.KindMagicLink, 12, clk.Now(), 15*time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, link))

	const attempts = 20
	var firsts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			already, err := index.IsConsumedOnce(ctx, link.ID)
			assert.NoError(t, err)
			if !already {
				firsts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
}

func TestRevocationIndex_SQLite_ExpiredMagicLinkStaysUnconsumed(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)
	ctx := context.Background()

	repo := credentialRepository.NewSQLiteTokenRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	index := newTestIndex(repo, clock.NewManual(now), RevocationIndexConfig{})

	link, err := credentialDomain.NewTokenRecord(credentialDomain.KindMagicLink, 12, now.Add(-15*time.Minute-time.Second), 15*time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, link))

	_, err = index.IsConsumedOnce(ctx, link.ID)
	assert.ErrorIs(t, err, credentialDomain.ErrRevokedOrExpired)

	stored, err := repo.Get(ctx, link.ID)
	require.NoError(t, err)
	assert.False(t, stored.Consumed)
}

func TestRevocationIndex_SQLite_RevocationVisibleAcrossInstances(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)
	ctx := context.Background()

	repo := credentialRepository.NewSQLiteTokenRepository(db)
	clk := clock.NewManual(time.Now().UTC())
	cfg := RevocationIndexConfig{RefreshInterval: 50 * time.Millisecond, StoreTimeout: 5 * time.Second}
	reader := newTestIndex(repo, clk, cfg)
	writer := newTestIndex(repo, clk, cfg)

	record, err := credentialDomain.NewTokenRecord(credentialDomain.KindSession, 8, clk.Now(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, record))

	revoked, err := reader.IsRevoked(ctx, record.ID)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, writer.Revoke(ctx, record.ID, record.ExpiresAt))

	assert.Eventually(t, func() bool {
		revoked, err := reader.IsRevoked(ctx, record.ID)
		return err == nil && revoked
	}, time.Second, 10*time.Millisecond)
}
