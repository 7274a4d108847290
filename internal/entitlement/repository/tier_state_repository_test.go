package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/tierguard/internal/database"
	entitlementDomain "github.com/allisson/tierguard/internal/entitlement/domain"
	"github.com/allisson/tierguard/internal/testutil"
)

type tierStateRepository interface {
	Get(ctx context.Context, userID int64) (*entitlementDomain.TierState, error)
	GetForUpdate(ctx context.Context, userID int64) (*entitlementDomain.TierState, error)
	SaveTiers(ctx context.Context, state *entitlementDomain.TierState) error
	MarkLapsed(ctx context.Context, userID int64, at time.Time) (bool, error)
	MarkActive(ctx context.Context, userID int64, at time.Time) (bool, error)
}

type repoFactory struct {
	name  string
	setup func(t *testing.T) (*sql.DB, tierStateRepository)
}

func repoFactories() []repoFactory {
	return []repoFactory{
		{
			name: "sqlite",
			setup: func(t *testing.T) (*sql.DB, tierStateRepository) {
				db := testutil.SetupSQLiteDB(t)
				return db, NewSQLiteTierStateRepository(db)
			},
		},
		{
			name: "postgresql",
			setup: func(t *testing.T) (*sql.DB, tierStateRepository) {
				db := testutil.SetupPostgresDB(t)
				return db, NewPostgreSQLTierStateRepository(db)
			},
		},
		{
			name: "mysql",
			setup: func(t *testing.T) (*sql.DB, tierStateRepository) {
				db := testutil.SetupMySQLDB(t)
				return db, NewMySQLTierStateRepository(db)
			},
		},
	}
}

func TestTierStateRepository_SaveTiersAndGet(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			db, repo := f.setup(t)
			defer testutil.TeardownDB(t, db)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			state := entitlementDomain.NewTierState(11, entitlementDomain.TierNavigator, now)
			require.NoError(t, repo.SaveTiers(ctx, state))

			got, err := repo.Get(ctx, 11)
			require.NoError(t, err)
			assert.Equal(t, int64(11), got.UserID)
			assert.Equal(t, entitlementDomain.TierNavigator, got.BaseTier)
			assert.Equal(t, entitlementDomain.StatusActive, got.Status)
			assert.Nil(t, got.PreviewTier)
			assert.Nil(t, got.PreviewExpiresAt)
			assert.Nil(t, got.LapsedSince)
			assert.WithinDuration(t, now, got.UpdatedAt, time.Second)

			previewEnds := now.Add(7 * 24 * time.Hour)
			require.NoError(t, state.GrantPreview(entitlementDomain.TierSovereign, previewEnds, now))
			require.NoError(t, state.SetBaseTier(entitlementDomain.TierOperator, now))
			require.NoError(t, repo.SaveTiers(ctx, state))

			got, err = repo.Get(ctx, 11)
			require.NoError(t, err)
			assert.Equal(t, entitlementDomain.TierOperator, got.BaseTier)
			require.NotNil(t, got.PreviewTier)
			assert.Equal(t, entitlementDomain.TierSovereign, *got.PreviewTier)
			require.NotNil(t, got.PreviewExpiresAt)
			assert.WithinDuration(t, previewEnds, *got.PreviewExpiresAt, time.Second)
		})
	}
}

func TestTierStateRepository_Get_NotFound(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			db, repo := f.setup(t)
			defer testutil.TeardownDB(t, db)

			_, err := repo.Get(context.Background(), 404)
			assert.ErrorIs(t, err, entitlementDomain.ErrTierStateNotFound)
		})
	}
}

func TestTierStateRepository_MarkLapsedAndActive(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			db, repo := f.setup(t)
			defer testutil.TeardownDB(t, db)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			require.NoError(t, repo.SaveTiers(ctx, entitlementDomain.NewTierState(21, entitlementDomain.TierOperator, now)))

			changed, err := repo.MarkLapsed(ctx, 21, now)
			require.NoError(t, err)
			assert.True(t, changed)

			// A second failure keeps the first lapse timestamp.
			changed, err = repo.MarkLapsed(ctx, 21, now.Add(2*time.Hour))
			require.NoError(t, err)
			assert.False(t, changed)

			got, err := repo.Get(ctx, 21)
			require.NoError(t, err)
			assert.Equal(t, entitlementDomain.StatusLapsed, got.Status)
			require.NotNil(t, got.LapsedSince)
			assert.WithinDuration(t, now, *got.LapsedSince, time.Second)

			changed, err = repo.MarkActive(ctx, 21, now.Add(3*time.Hour))
			require.NoError(t, err)
			assert.True(t, changed)

			changed, err = repo.MarkActive(ctx, 21, now.Add(4*time.Hour))
			require.NoError(t, err)
			assert.False(t, changed)

			got, err = repo.Get(ctx, 21)
			require.NoError(t, err)
			assert.Equal(t, entitlementDomain.StatusActive, got.Status)
			assert.Nil(t, got.LapsedSince)
		})
	}
}

func TestTierStateRepository_Mark_NotFound(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			db, repo := f.setup(t)
			defer testutil.TeardownDB(t, db)
			ctx := context.Background()

			_, err := repo.MarkLapsed(ctx, 500, time.Now())
			assert.ErrorIs(t, err, entitlementDomain.ErrTierStateNotFound)

			_, err = repo.MarkActive(ctx, 500, time.Now())
			assert.ErrorIs(t, err, entitlementDomain.ErrTierStateNotFound)
		})
	}
}

func TestTierStateRepository_SaveTiers_KeepsLapse(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			db, repo := f.setup(t)
			defer testutil.TeardownDB(t, db)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			require.NoError(t, repo.SaveTiers(ctx, entitlementDomain.NewTierState(31, entitlementDomain.TierOperator, now)))

			// Snapshot taken before the billing failure lands.
			stale, err := repo.Get(ctx, 31)
			require.NoError(t, err)

			changed, err := repo.MarkLapsed(ctx, 31, now)
			require.NoError(t, err)
			require.True(t, changed)

			require.NoError(t, stale.GrantPreview(entitlementDomain.TierSovereign, now.Add(time.Hour), now))
			require.NoError(t, repo.SaveTiers(ctx, stale))

			got, err := repo.Get(ctx, 31)
			require.NoError(t, err)
			assert.Equal(t, entitlementDomain.StatusLapsed, got.Status)
			require.NotNil(t, got.LapsedSince)
			assert.WithinDuration(t, now, *got.LapsedSince, time.Second)
			require.NotNil(t, got.PreviewTier)
			assert.Equal(t, entitlementDomain.TierSovereign, *got.PreviewTier)
		})
	}
}

func TestTierStateRepository_GetForUpdate(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			db, repo := f.setup(t)
			defer testutil.TeardownDB(t, db)
			now := time.Now().UTC().Truncate(time.Second)

			require.NoError(t, repo.SaveTiers(context.Background(), entitlementDomain.NewTierState(41, entitlementDomain.TierNavigator, now)))

			err := database.NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
				got, err := repo.GetForUpdate(ctx, 41)
				require.NoError(t, err)
				assert.Equal(t, entitlementDomain.TierNavigator, got.BaseTier)

				_, err = repo.GetForUpdate(ctx, 404)
				assert.ErrorIs(t, err, entitlementDomain.ErrTierStateNotFound)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestTierStateRepository_GetForUpdate_LocksRow(t *testing.T) {
	columns := []string{
		"user_id", "base_tier", "preview_tier", "preview_expires_at",
		"subscription_status", "lapsed_since", "updated_at",
	}
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query string
		repo  func(db *sql.DB) tierStateRepository
	}{
		{
			name:  "postgresql",
			query: `FROM tier_states WHERE user_id = $1 FOR UPDATE`,
			repo:  func(db *sql.DB) tierStateRepository { return NewPostgreSQLTierStateRepository(db) },
		},
		{
			name:  "mysql",
			query: `FROM tier_states WHERE user_id = ? FOR UPDATE`,
			repo:  func(db *sql.DB) tierStateRepository { return NewMySQLTierStateRepository(db) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WithArgs(int64(51)).
				WillReturnRows(sqlmock.NewRows(columns).
					AddRow(int64(51), "operator", nil, nil, "active", nil, now))
			mock.ExpectCommit()

			repo := tt.repo(db)
			err = database.NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
				state, err := repo.GetForUpdate(ctx, 51)
				if err != nil {
					return err
				}
				assert.Equal(t, entitlementDomain.TierOperator, state.BaseTier)
				return nil
			})
			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
