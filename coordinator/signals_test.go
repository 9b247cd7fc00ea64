package coordinator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSignalsRaiseAndUnsubscribe(t *testing.T) {
	s := NewSignals()
	var got []Signal
	unsub := s.Subscribe(SignalLogin, func(sig Signal) { got = append(got, sig) })
	s.Subscribe("other", func(Signal) { t.Fatal("wrong signal delivered") })

	a := s.Raise(SignalLogin)
	b := s.Raise(SignalLogin)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, got, 2)

	unsub()
	s.Raise(SignalLogin)
	assert.Len(t, got, 2)
	assert.Zero(t, s.Subscribers(SignalLogin))
}

func TestSeenSetEvictsOldest(t *testing.T) {
	seen := newSeenSet(2)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	assert.True(t, seen.add(a))
	assert.False(t, seen.add(a))
	assert.True(t, seen.add(b))
	assert.True(t, seen.add(c))
	assert.True(t, seen.add(a))
	assert.False(t, seen.add(c))
}

func TestSeenSetIgnoresNilID(t *testing.T) {
	seen := newSeenSet(2)
	assert.True(t, seen.add(uuid.Nil))
	assert.True(t, seen.add(uuid.Nil))
	assert.Empty(t, seen.ids)
}

func TestDeliverStampsMissingID(t *testing.T) {
	s := NewSignals()
	var ids []uuid.UUID
	s.Subscribe(SignalLogin, func(sig Signal) { ids = append(ids, sig.ID) })

	s.Deliver(Signal{Name: SignalLogin})
	s.Deliver(Signal{Name: SignalLogin})
	if assert.Len(t, ids, 2) {
		assert.NotEqual(t, uuid.Nil, ids[0])
		assert.NotEqual(t, ids[0], ids[1])
	}
}
