package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-git-analyzer-ollama/internal/modest"
)

const (
	testTapA ID = 1
	testTapB ID = 2
)

func newTestObservable(t *testing.T) (*modest.Engine, *Observable) {
	t.Helper()
	engine := modest.NewEngine(modest.Config{PoolSize: 4})
	ob := NewObservable(engine)
	ob.Start()
	t.Cleanup(func() {
		ob.Stop()
		engine.Stop()
	})
	return engine, ob
}

func TestObservableDeliversToRegisteredObserver(t *testing.T) {
	_, ob := newTestObservable(t)

	received := make(chan Event, 1)
	ob.RegisterObserver(ObserverFunc(func(e Event) { received <- e }), testTapA)

	ob.Schedule(NewEvent(testTapA, "payload"), testTapA, false)

	select {
	case e := <-received:
		assert.Equal(t, "payload", e.Details())
		assert.Equal(t, testTapA, e.ID())
	case <-time.After(time.Second):
		t.Fatal("observer never received event")
	}
}

func TestObservableUnregisterStopsDelivery(t *testing.T) {
	_, ob := newTestObservable(t)

	received := make(chan Event, 4)
	observer := ObserverFunc(func(e Event) { received <- e })
	ob.RegisterObserver(observer, testTapA)
	ob.UnregisterObserver(observer, testTapA)

	ob.Schedule(NewEvent(testTapA, "payload"), testTapA, false)

	select {
	case <-received:
		t.Fatal("unregistered observer should not have received the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestObservableTapFansOutAcrossGraph(t *testing.T) {
	_, ob := newTestObservable(t)

	gotA := make(chan Event, 1)
	gotB := make(chan Event, 1)
	ob.RegisterObserver(ObserverFunc(func(e Event) { gotA <- e }), testTapA)
	ob.RegisterObserver(ObserverFunc(func(e Event) { gotB <- e }), testTapB)
	ob.AddTap(testTapA, testTapB)

	ob.Schedule(NewEvent(testTapA, "fanned"), testTapA, false)

	for _, ch := range []chan Event{gotA, gotB} {
		select {
		case e := <-ch:
			assert.Equal(t, "fanned", e.Details())
		case <-time.After(time.Second):
			t.Fatal("tap target never received the fanned-out event")
		}
	}
}

func TestObservableSequenceIDIsMonotonic(t *testing.T) {
	_, ob := newTestObservable(t)

	var seqs []uint64
	done := make(chan struct{}, 3)
	ob.RegisterObserver(ObserverFunc(func(e Event) {
		seqs = append(seqs, e.SequenceID())
		done <- struct{}{}
	}), testTapA)

	for i := 0; i < 3; i++ {
		ob.Schedule(NewEvent(testTapA, i), testTapA, false)
	}
	for i := 0; i < 3; i++ {
		<-done
	}

	require.Len(t, seqs, 3)
	assert.True(t, seqs[0] < seqs[1] && seqs[1] < seqs[2])
}

func TestObservableAsyncScheduleDeliversEventually(t *testing.T) {
	_, ob := newTestObservable(t)

	received := make(chan Event, 1)
	ob.RegisterObserver(ObserverFunc(func(e Event) { received <- e }), testTapA)

	ob.Schedule(NewEvent(testTapA, "async"), testTapA, true)

	select {
	case e := <-received:
		assert.Equal(t, "async", e.Details())
	case <-time.After(time.Second):
		t.Fatal("async-scheduled event was never drained")
	}
}

func TestObservableStartIsIdempotent(t *testing.T) {
	engine := modest.NewEngine(modest.Config{PoolSize: 2})
	defer engine.Stop()
	ob := NewObservable(engine)

	ob.Start()
	ob.Start()
	assert.Eventually(t, func() bool { return engine.LiveCount() == 1 }, time.Second, time.Millisecond)

	ob.Stop()
	ob.Stop()
	assert.Equal(t, 0, engine.LiveCount())
}
