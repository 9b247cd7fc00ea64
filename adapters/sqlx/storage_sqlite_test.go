package sqlx_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	storage "finquest/adapters/sqlx"
	"finquest/core"
)

func newSQLiteStore(t *testing.T) *storage.Store {
	t.Helper()
	cfg := storage.DefaultConfig(storage.DriverSQLite)
	cfg.DSN = "file::memory:"
	cfg.ConnMaxLifetime = 0
	store, err := storage.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLite_RoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	day := core.NewDate(2025, time.March, 10)

	for i := 0; i < 3; i++ {
		_, err := store.Update(ctx, "dana", func(cur core.State) (core.State, error) {
			next, _, err := core.ApplyEvent(cur, core.PositionAdded{PositionID: "p"}, day.Add(i))
			return next, err
		})
		require.NoError(t, err)
	}

	st, err := store.GetState(ctx, "dana")
	require.NoError(t, err)
	require.Equal(t, int64(120), st.TotalXP)
	require.Equal(t, int64(2), st.Level)
	require.Equal(t, int64(3), st.CurrentStreak)
	require.Equal(t, day.Add(2), st.LastCheckIn)
	require.Equal(t, int64(3), st.Counters.PositionsAdded)

	var got []string
	for _, b := range st.Badges {
		got = append(got, b.Code)
	}
	require.Equal(t, []string{core.BadgeDay1, core.BadgePortfolioCreator, core.BadgeStreak3, core.BadgeDiversifier}, got)
}

func TestSQLite_ConcurrentUpdatesAndTopN(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	day := core.NewDate(2025, time.March, 10)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "eve", func(cur core.State) (core.State, error) {
				next, _, err := core.ApplyEvent(cur, core.PositionUpdated{PositionID: "p"}, day)
				return next, err
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := store.Update(ctx, "finn", func(cur core.State) (core.State, error) {
		next, _, err := core.ApplyEvent(cur, core.Login{}, day)
		return next, err
	})
	require.NoError(t, err)

	top, err := store.TopN(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, core.UserID("eve"), top[0].UserID)
	require.Equal(t, int64(50), top[0].TotalXP)
}
