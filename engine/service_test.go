package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	mem "finquest/adapters/memory"
	"finquest/core"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newTestService(now *time.Time) (*GamifyService, *mem.Store) {
	store := mem.New()
	bus := NewEventBus(DispatchSync)
	svc := NewGamifyService(store, bus, core.DefaultEngine(), WithClock(func() time.Time { return *now }))
	return svc, store
}

func TestProcessEventPublishesNotices(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	svc, _ := newTestService(&now)

	var got []core.NoticeType
	svc.SubscribeAll(func(_ context.Context, n core.Notice) { got = append(got, n.Type) })

	res, err := svc.ProcessEvent(context.Background(), " Alice ", core.Login{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome.XPGained != 10 || res.State.UserID != "alice" || res.State.TotalXP != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	want := []core.NoticeType{core.NoticeXPGained, core.NoticeStreakIncremented, core.NoticeBadgeUnlocked}
	if len(got) != len(want) {
		t.Fatalf("got notices %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got notices %v, want %v", got, want)
		}
	}
}

func TestProcessEventLevelUpAcrossDays(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	svc, _ := newTestService(&now)
	ctx := context.Background()

	levelUps := 0
	svc.Subscribe(core.NoticeLevelUp, func(context.Context, core.Notice) { levelUps++ })

	for i := 0; i < 3; i++ {
		if _, err := svc.ProcessEvent(ctx, "bob", core.PositionAdded{PositionID: "p"}); err != nil {
			t.Fatal(err)
		}
	}
	now = now.Add(2 * time.Hour)
	res, err := svc.ProcessEvent(ctx, "bob", core.Login{})
	if err != nil {
		t.Fatal(err)
	}
	if res.State.CurrentStreak != 2 || !res.Outcome.StreakIncremented {
		t.Fatalf("expected streak to grow on the next day, got %+v", res.Outcome)
	}
	if res.State.Level != 2 || levelUps != 1 {
		t.Fatalf("expected a single level up, got level %d with %d notices", res.State.Level, levelUps)
	}
}

func TestProcessEventHonoursLocation(t *testing.T) {
	// 23:30 UTC on the 10th is already the 11th in UTC+10.
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	svc := NewGamifyService(mem.New(), NewEventBus(DispatchSync), core.DefaultEngine(),
		WithClock(fixedClock(now)), WithLocation(time.FixedZone("UTC+10", 10*3600)))

	res, err := svc.ProcessEvent(context.Background(), "u", core.Login{})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.State.LastCheckIn.String(); got != "2025-03-11" {
		t.Fatalf("got check-in day %s", got)
	}
}

func TestProcessEventValidationLeavesStateUntouched(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	svc, store := newTestService(&now)
	ctx := context.Background()

	if _, err := svc.ProcessEvent(ctx, "u", core.Login{}); err != nil {
		t.Fatal(err)
	}
	published := 0
	svc.SubscribeAll(func(context.Context, core.Notice) { published++ })

	bad := []core.Event{nil, core.QuizCompleted{Score: 101, CompletedAt: now}, core.ModuleCompleted{}}
	for _, ev := range bad {
		_, err := svc.ProcessEvent(ctx, "u", ev)
		if !core.IsValidationError(err) {
			t.Fatalf("expected validation error for %#v, got %v", ev, err)
		}
	}
	if _, err := svc.ProcessEvent(ctx, "  ", core.Login{}); err == nil {
		t.Fatal("expected empty user error")
	}

	st, _ := store.GetState(ctx, "u")
	if st.TotalXP != 10 || published != 0 {
		t.Fatalf("state mutated or notices published: %+v, %d", st, published)
	}
}

type failingStorage struct{ mem.Store }

func (f *failingStorage) Update(context.Context, core.UserID, func(core.State) (core.State, error)) (core.State, error) {
	return core.State{}, errors.New("disk full")
}

func TestProcessEventWrapsStorageErrors(t *testing.T) {
	svc := NewGamifyService(&failingStorage{}, NewEventBus(DispatchSync), core.DefaultEngine())
	_, err := svc.ProcessEvent(context.Background(), "u", core.Login{})
	if err == nil || core.IsValidationError(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestBadgesCatalog(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	svc, store := newTestService(&now)
	ctx := context.Background()

	if _, err := store.Update(ctx, "u", func(st core.State) (core.State, error) {
		st.Badges = append(st.Badges, core.Badge{Code: "beta_tester"})
		return st, nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ProcessEvent(ctx, "u", core.Login{}); err != nil {
		t.Fatal(err)
	}

	list, err := svc.Badges(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	catalog := core.DefaultEngine().Catalog()
	if len(list) != len(catalog)+1 {
		t.Fatalf("got %d badges", len(list))
	}
	earned := map[string]bool{}
	for _, b := range list {
		earned[b.Code] = b.Earned
	}
	if !earned[core.BadgeDay1] || !earned["beta_tester"] || earned[core.BadgeStreak3] {
		t.Fatalf("unexpected earned flags %v", earned)
	}
}

func TestProcessorBindsUser(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	svc, _ := newTestService(&now)
	p := Bind(svc, "carol")
	ctx := context.Background()

	if _, err := p.SendEvent(ctx, core.ModuleCompleted{ModuleID: "m1", FirstTime: true}); err != nil {
		t.Fatal(err)
	}
	st, err := p.GetState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.UserID != "carol" || st.TotalXP != 50 || st.Counters.ModulesCompleted != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
}
