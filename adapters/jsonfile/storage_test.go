package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finquest/core"
)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	day := core.NewDate(2025, time.March, 10)
	_, err = store.Update(context.Background(), "alice", func(cur core.State) (core.State, error) {
		next, _, err := core.ApplyEvent(cur, core.PositionAdded{PositionID: "p1"}, day)
		return next, err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	state, err := reloaded.GetState(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.TotalXP != 40 || state.Level != 1 || state.XPToNextLevel != 60 {
		t.Fatalf("unexpected xp fields: %+v", state)
	}
	if state.CurrentStreak != 1 || state.LastCheckIn != day {
		t.Fatalf("unexpected streak fields: %+v", state)
	}
	if !state.HasBadge(core.BadgePortfolioCreator) || !state.HasBadge(core.BadgeDay1) {
		t.Fatalf("expected badges, got %+v", state.Badges)
	}
	if state.Counters.PositionsAdded != 1 {
		t.Fatalf("expected counters to persist, got %+v", state.Counters)
	}
	if all := reloaded.States(); len(all) != 1 || all[0].UserID != "alice" {
		t.Fatalf("unexpected states %+v", all)
	}
}

func TestStoreUnknownUserDefaults(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "nested", "state.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	st, err := store.GetState(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if st.Level != 1 || st.TotalXP != 0 || len(st.Badges) != 0 {
		t.Fatalf("unexpected defaults %+v", st)
	}
}
