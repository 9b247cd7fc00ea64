package leaderboard

import (
	"context"
	"testing"

	"finquest/core"
)

func TestSkipListBasic(t *testing.T) {
	s := NewSkipList()
	s.Update(core.UserID("a"), 10)
	s.Update(core.UserID("b"), 200)
	s.Update(core.UserID("c"), 150)
	top := s.TopN(3)
	if len(top) != 3 || top[0].User != core.UserID("b") || top[1].User != core.UserID("c") || top[2].User != core.UserID("a") {
		t.Fatalf("unexpected order: %#v", top)
	}
	if top[0].Level != 3 {
		t.Fatalf("level should follow xp, got %d", top[0].Level)
	}
	s.Update(core.UserID("a"), 250)
	top = s.TopN(1)
	if top[0].User != core.UserID("a") {
		t.Fatalf("top should be a, got %#v", top)
	}
	if r, ok := s.Rank("b"); !ok || r != 2 {
		t.Fatalf("rank of b = %d %v", r, ok)
	}
	s.Remove("b")
	if _, ok := s.Get("b"); ok || s.Len() != 2 {
		t.Fatal("b should be removed")
	}
}

func TestSkipListTiesByUser(t *testing.T) {
	s := NewSkipList()
	s.Update("zoe", 40)
	s.Update("amy", 40)
	top := s.TopN(5)
	if len(top) != 2 || top[0].User != "amy" {
		t.Fatalf("ties should order by user id: %#v", top)
	}
}

func TestFeedTracksXPGained(t *testing.T) {
	s := NewSkipList()
	feed := Feed(s)
	ctx := context.Background()
	feed(ctx, core.NewXPGained("u1", core.EventLogin, 10, 10))
	feed(ctx, core.NewXPGained("u1", core.EventPositionAdded, 40, 50))
	feed(ctx, core.NewLevelUp("u2", 9))

	e, ok := s.Get("u1")
	if !ok || e.TotalXP != 50 {
		t.Fatalf("unexpected entry %#v", e)
	}
	if _, ok := s.Get("u2"); ok {
		t.Fatal("level_up must not create entries")
	}

	Seed(s, []core.State{{UserID: "u3", TotalXP: 500}})
	if r, _ := s.Rank("u3"); r != 1 {
		t.Fatalf("seeded user should lead, rank %d", r)
	}
}
