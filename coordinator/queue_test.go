package coordinator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finquest/core"
)

func TestNotificationsFor(t *testing.T) {
	ns := NotificationsFor(core.Outcome{
		EventType:         core.EventQuizCompleted,
		XPGained:          12,
		LevelUp:           true,
		StreakIncremented: true,
		NewBadges:         []core.Badge{{Code: "streak3"}, {Code: "quiz_champ"}},
		Level:             2,
		CurrentStreak:     3,
	})
	require.Len(t, ns, 4)
	assert.Equal(t, KindXPToast, ns[0].Kind)
	assert.Equal(t, KindStreakToast, ns[1].Kind)
	assert.Equal(t, int64(3), ns[1].Streak)
	assert.Equal(t, KindLevelUpToast, ns[2].Kind)
	assert.Equal(t, KindBadgeModal, ns[3].Kind)
	assert.Len(t, ns[3].Badges, 2)

	assert.Empty(t, NotificationsFor(core.Outcome{EventType: core.EventLogin}))
}

func TestQueueDeliversInOrderAndDrainsOnClose(t *testing.T) {
	var mu sync.Mutex
	var got []int64
	q := NewQueue(NotifierFuncs{XPToast: func(n int64, _ core.EventType) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	}}, nil)

	for i := int64(1); i <= 500; i++ {
		require.True(t, q.Push(Notification{Kind: KindXPToast, XP: i}))
	}
	q.Close()
	assert.False(t, q.Push(Notification{Kind: KindXPToast, XP: 1}))
	assert.Zero(t, q.Len())

	require.Len(t, got, 500)
	for i, n := range got {
		assert.Equal(t, int64(i+1), n)
	}
}

func TestQueueConcurrentProducersLoseNothing(t *testing.T) {
	var mu sync.Mutex
	count := 0
	q := NewQueue(NotifierFuncs{StreakToast: func(int64) {
		mu.Lock()
		count++
		mu.Unlock()
	}}, nil)
	defer q.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(Notification{Kind: KindStreakToast})
			}
		}()
	}
	wg.Wait()
	q.Flush()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 800, count)
}

func TestQueueSurvivesPanickingNotifier(t *testing.T) {
	levels := []int64{}
	q := NewQueue(NotifierFuncs{
		XPToast:      func(int64, core.EventType) { panic("boom") },
		LevelUpToast: func(l int64) { levels = append(levels, l) },
	}, nil)
	q.Push(Notification{Kind: KindXPToast, XP: 1}, Notification{Kind: KindLevelUpToast, Level: 4})
	q.Close()
	assert.Equal(t, []int64{4}, levels)
}
