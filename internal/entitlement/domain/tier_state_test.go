package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func lapsedState(base Tier, lapsedSince time.Time) *TierState {
	return &TierState{
		UserID:      7,
		BaseTier:    base,
		Status:      StatusLapsed,
		LapsedSince: &lapsedSince,
	}
}

func TestEffectiveTier_Active(t *testing.T) {
	state := NewTierState(1, TierNavigator, refNow)
	assert.Equal(t, TierNavigator, EffectiveTier(state, refNow, DefaultGraceDuration))
}

func TestEffectiveTier_Nil(t *testing.T) {
	assert.Equal(t, TierObserver, EffectiveTier(nil, refNow, DefaultGraceDuration))
}

func TestEffectiveTier_CorruptBase(t *testing.T) {
	state := NewTierState(1, Tier("gold"), refNow)
	assert.Equal(t, TierObserver, EffectiveTier(state, refNow, DefaultGraceDuration))
}

func TestEffectiveTier_GraceBoundary(t *testing.T) {
	t.Run("OneSecondInsideGrace", func(t *testing.T) {
		state := lapsedState(TierOperator, refNow.Add(-DefaultGraceDuration+time.Second))
		assert.Equal(t, TierOperator, EffectiveTier(state, refNow, DefaultGraceDuration))
	})

	t.Run("ExactlyAtGraceEnd", func(t *testing.T) {
		state := lapsedState(TierOperator, refNow.Add(-DefaultGraceDuration))
		assert.Equal(t, TierOperator, EffectiveTier(state, refNow, DefaultGraceDuration))
	})

	t.Run("OneSecondPastGrace", func(t *testing.T) {
		state := lapsedState(TierOperator, refNow.Add(-DefaultGraceDuration-time.Second))
		assert.Equal(t, TierObserver, EffectiveTier(state, refNow, DefaultGraceDuration))
	})
}

func TestEffectiveTier_LapseScenarios(t *testing.T) {
	t.Run("LapsedOneDayKeepsOperator", func(t *testing.T) {
		state := lapsedState(TierOperator, refNow.Add(-24*time.Hour))
		assert.Equal(t, TierOperator, EffectiveTier(state, refNow, DefaultGraceDuration))
	})

	t.Run("LapsedFiveDaysFallsToObserver", func(t *testing.T) {
		state := lapsedState(TierOperator, refNow.Add(-5*24*time.Hour))
		assert.Equal(t, TierObserver, EffectiveTier(state, refNow, DefaultGraceDuration))
	})

	t.Run("LapsedWithoutTimestampIsExpired", func(t *testing.T) {
		state := &TierState{BaseTier: TierSovereign, Status: StatusLapsed}
		assert.Equal(t, TierObserver, EffectiveTier(state, refNow, DefaultGraceDuration))
	})
}

func TestEffectiveTier_Preview(t *testing.T) {
	sovereign := TierSovereign
	observer := TierObserver
	future := refNow.Add(time.Hour)
	past := refNow.Add(-time.Second)

	t.Run("ActivePreviewUplifts", func(t *testing.T) {
		state := NewTierState(1, TierNavigator, refNow)
		state.PreviewTier = &sovereign
		state.PreviewExpiresAt = &future
		assert.Equal(t, TierSovereign, EffectiveTier(state, refNow, DefaultGraceDuration))
	})

	t.Run("PreviewNeverDowngrades", func(t *testing.T) {
		state := NewTierState(1, TierOperator, refNow)
		state.PreviewTier = &observer
		state.PreviewExpiresAt = &future
		assert.Equal(t, TierOperator, EffectiveTier(state, refNow, DefaultGraceDuration))
	})

	t.Run("ExpiredPreviewIgnored", func(t *testing.T) {
		state := NewTierState(1, TierNavigator, refNow)
		state.PreviewTier = &sovereign
		state.PreviewExpiresAt = &past
		assert.Equal(t, TierNavigator, EffectiveTier(state, refNow, DefaultGraceDuration))
	})

	t.Run("PreviewExpiresExactlyNow", func(t *testing.T) {
		state := NewTierState(1, TierNavigator, refNow)
		state.PreviewTier = &sovereign
		state.PreviewExpiresAt = &refNow
		assert.Equal(t, TierNavigator, EffectiveTier(state, refNow, DefaultGraceDuration))
	})

	t.Run("PreviewOverridesExpiredGrace", func(t *testing.T) {
		state := lapsedState(TierOperator, refNow.Add(-10*24*time.Hour))
		state.PreviewTier = &sovereign
		state.PreviewExpiresAt = &future
		assert.Equal(t, TierSovereign, EffectiveTier(state, refNow, DefaultGraceDuration))
	})
}

func TestEffectiveTier_PreviewMonotonic(t *testing.T) {
	sovereign := TierSovereign
	future := refNow.Add(time.Hour)

	bases := append(Tiers(), Tier("unknown"))
	lapses := []*time.Time{nil, ptrTime(refNow.Add(-time.Hour)), ptrTime(refNow.Add(-30 * 24 * time.Hour))}

	for _, base := range bases {
		for _, lapse := range lapses {
			without := NewTierState(1, base, refNow)
			if lapse != nil {
				without.Status = StatusLapsed
				without.LapsedSince = lapse
			}
			with := *without
			with.PreviewTier = &sovereign
			with.PreviewExpiresAt = &future

			got := EffectiveTier(&with, refNow, DefaultGraceDuration)
			ref := EffectiveTier(without, refNow, DefaultGraceDuration)
			assert.True(t, got.AtLeast(ref), "base=%s lapse=%v: %s < %s", base, lapse, got, ref)
		}
	}
}

func TestGraceStateMachine(t *testing.T) {
	state := NewTierState(1, TierOperator, refNow)
	assert.Equal(t, GraceActive, state.GraceStateAt(refNow, DefaultGraceDuration))
	assert.Nil(t, state.GraceEndsAt(DefaultGraceDuration))

	// active -> lapsed_in_grace
	require.True(t, state.Lapse(refNow))
	require.NotNil(t, state.LapsedSince)
	assert.Equal(t, refNow, *state.LapsedSince)
	assert.Equal(t, GraceLapsedInGrace, state.GraceStateAt(refNow.Add(time.Hour), DefaultGraceDuration))
	assert.Equal(t, refNow.Add(DefaultGraceDuration), *state.GraceEndsAt(DefaultGraceDuration))

	// a second failure does not restart the timer
	assert.False(t, state.Lapse(refNow.Add(time.Hour)))
	assert.Equal(t, refNow, *state.LapsedSince)

	// lapsed_in_grace -> lapsed_expired is implicit
	later := refNow.Add(DefaultGraceDuration + time.Minute)
	assert.Equal(t, GraceLapsedExpired, state.GraceStateAt(later, DefaultGraceDuration))

	// no expired -> in_grace edge
	assert.False(t, state.Lapse(later))
	assert.Equal(t, GraceLapsedExpired, state.GraceStateAt(later, DefaultGraceDuration))

	// lapsed_expired -> active
	require.True(t, state.Restore(later))
	assert.Equal(t, StatusActive, state.Status)
	assert.Nil(t, state.LapsedSince)
	assert.False(t, state.Restore(later))

	// a fresh lapse restarts from now
	fresh := later.Add(time.Hour)
	require.True(t, state.Lapse(fresh))
	assert.Equal(t, fresh, *state.LapsedSince)
	assert.Equal(t, GraceLapsedInGrace, state.GraceStateAt(fresh.Add(time.Hour), DefaultGraceDuration))
}

func TestRestoreFromGrace(t *testing.T) {
	state := lapsedState(TierNavigator, refNow.Add(-time.Hour))
	require.True(t, state.Restore(refNow))
	assert.Equal(t, GraceActive, state.GraceStateAt(refNow, DefaultGraceDuration))
	assert.Equal(t, TierNavigator, EffectiveTier(state, refNow, DefaultGraceDuration))
}

func TestGrantPreview(t *testing.T) {
	state := NewTierState(1, TierObserver, refNow)

	err := state.GrantPreview(TierOperator, refNow, refNow)
	assert.ErrorIs(t, err, ErrPreviewExpiry)
	assert.Nil(t, state.PreviewTier)

	err = state.GrantPreview(Tier("nope"), refNow.Add(time.Hour), refNow)
	assert.ErrorIs(t, err, ErrInvalidTier)

	require.NoError(t, state.GrantPreview(TierOperator, refNow.Add(time.Hour), refNow))
	assert.True(t, state.PreviewActive(refNow))
	assert.Equal(t, TierOperator, EffectiveTier(state, refNow, DefaultGraceDuration))

	state.ClearPreview(refNow)
	assert.False(t, state.PreviewActive(refNow))
	assert.Equal(t, TierObserver, EffectiveTier(state, refNow, DefaultGraceDuration))
}

func TestSetBaseTier(t *testing.T) {
	state := NewTierState(1, TierObserver, refNow)
	assert.ErrorIs(t, state.SetBaseTier(Tier(""), refNow), ErrInvalidTier)
	require.NoError(t, state.SetBaseTier(TierSovereign, refNow))
	assert.Equal(t, TierSovereign, state.BaseTier)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestResolve(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	grace := DefaultGraceDuration

	t.Run("missing state resolves to observer", func(t *testing.T) {
		r := Resolve(3, nil, now, grace)
		assert.Equal(t, int64(3), r.UserID)
		assert.Equal(t, TierObserver, r.EffectiveTier)
		assert.Equal(t, GraceActive, r.Grace)
		assert.Nil(t, r.PreviewTier)
	})

	t.Run("lapsed in grace reports grace end", func(t *testing.T) {
		s := NewTierState(3, TierOperator, now.Add(-48*time.Hour))
		s.Lapse(now.Add(-24 * time.Hour))

		r := Resolve(3, s, now, grace)
		assert.Equal(t, TierOperator, r.EffectiveTier)
		assert.Equal(t, GraceLapsedInGrace, r.Grace)
		if assert.NotNil(t, r.GraceEndsAt) {
			assert.Equal(t, now.Add(48*time.Hour), *r.GraceEndsAt)
		}
	})

	t.Run("expired preview is not reported", func(t *testing.T) {
		s := NewTierState(3, TierNavigator, now.Add(-time.Hour))
		assert.NoError(t, s.GrantPreview(TierSovereign, now.Add(time.Minute), now.Add(-time.Hour)))

		r := Resolve(3, s, now.Add(2*time.Minute), grace)
		assert.Equal(t, TierNavigator, r.EffectiveTier)
		assert.Nil(t, r.PreviewTier)
	})
}
