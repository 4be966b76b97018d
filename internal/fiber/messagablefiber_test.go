package fiber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagableFiberPingPong(t *testing.T) {
	s := NewScheduler(4, 0)
	defer s.Stop()
	center := NewMessageCenter()

	var pongID ID
	pongReady := make(chan struct{})
	pongDone := make(chan struct{})
	var pong *MessagableFiber
	pong, err := NewMessagableFiber(s, center, func(ctx *Context, mf *MessagableFiber) {
		pongID = ctx.ID()
		close(pongReady)
		for {
			msgs := mf.GetMessages()
			if len(msgs) == 0 {
				ctx.Yield()
				continue
			}
			for _, m := range msgs {
				if m == "ping" {
					close(pongDone)
					return
				}
			}
		}
	})
	require.NoError(t, err)
	<-pongReady

	pingDone := make(chan struct{})
	_, err = NewMessagableFiber(s, center, func(ctx *Context, mf *MessagableFiber) {
		mf.SendMessage(pongID, "ping")
		close(pingDone)
	})
	require.NoError(t, err)

	select {
	case <-pingDone:
	case <-time.After(time.Second):
		t.Fatal("ping fiber never sent")
	}
	select {
	case <-pongDone:
	case <-time.After(time.Second):
		t.Fatal("pong fiber never received ping")
	}
	_ = pong
}

func TestMessageCenterSendUnknownIDReturnsFalse(t *testing.T) {
	center := NewMessageCenter()
	assert.False(t, center.Send(ID(42), "hello"))
}

func TestMessagableFiberGetMessagesDoubleBuffersInOrder(t *testing.T) {
	s := NewScheduler(2, 0)
	defer s.Stop()
	center := NewMessageCenter()

	ready := make(chan struct{})
	var id ID
	got := make(chan []Message, 1)
	_, err := NewMessagableFiber(s, center, func(ctx *Context, mf *MessagableFiber) {
		id = ctx.ID()
		close(ready)
		for {
			msgs := mf.GetMessages()
			if len(msgs) == 0 {
				ctx.Yield()
				continue
			}
			got <- msgs
			return
		}
	})
	require.NoError(t, err)
	<-ready

	assert.True(t, center.Send(id, 1))
	assert.True(t, center.Send(id, 2))
	assert.True(t, center.Send(id, 3))

	select {
	case msgs := <-got:
		assert.Equal(t, []Message{1, 2, 3}, msgs)
	case <-time.After(time.Second):
		t.Fatal("fiber never received its batch")
	}
}

// TestMessagableFiberPingPongUnderLoad drives many rapid round trips
// between two fibers so a message has a real chance to arrive in the
// window between a fiber deciding it can sleep and the scheduler
// committing that decision. Before the canSleep recheck was moved
// under the scheduler lock, this reliably lost a reply in that window
// and hung instead of completing.
func TestMessagableFiberPingPongUnderLoad(t *testing.T) {
	const rounds = 10000

	s := NewScheduler(4, 0)
	defer s.Stop()
	center := NewMessageCenter()

	var pongID ID
	pongReady := make(chan struct{})
	_, err := NewMessagableFiber(s, center, func(ctx *Context, mf *MessagableFiber) {
		pongID = ctx.ID()
		close(pongReady)
		seen := 0
		for seen < rounds {
			msgs := mf.GetMessages()
			if len(msgs) == 0 {
				ctx.Yield()
				continue
			}
			for _, m := range msgs {
				mf.SendMessage(m.(ID), "pong")
				seen++
			}
		}
	})
	require.NoError(t, err)
	<-pongReady

	done := make(chan struct{})
	_, err = NewMessagableFiber(s, center, func(ctx *Context, mf *MessagableFiber) {
		pingID := ctx.ID()
		for i := 0; i < rounds; i++ {
			mf.SendMessage(pongID, pingID)
		}
		received := 0
		for received < rounds {
			msgs := mf.GetMessages()
			if len(msgs) == 0 {
				ctx.Yield()
				continue
			}
			received += len(msgs)
		}
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("ping-pong under load did not complete all rounds before timing out")
	}
}

func TestMessagableFiberUnregisteredAfterExit(t *testing.T) {
	s := NewScheduler(1, 0)
	defer s.Stop()
	center := NewMessageCenter()

	done := make(chan struct{})
	var id ID
	mf, err := NewMessagableFiber(s, center, func(ctx *Context, self *MessagableFiber) {
		id = ctx.ID()
		close(done)
	})
	require.NoError(t, err)
	<-done
	_ = mf

	assert.Eventually(t, func() bool {
		return !center.Send(id, "too late")
	}, time.Second, time.Millisecond)
}
