// File: internal/progress/registry_test.go
package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishReachesSubscriber(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	defer r.Shutdown()

	events, cancel := r.Subscribe("s1")
	defer cancel()

	r.Publish(schemas.NewEvent("s1", schemas.EventLog, schemas.LogPayload{Text: "hello"}))

	select {
	case ev := <-events:
		assert.Equal(t, schemas.EventLog, ev.Kind)
		assert.Equal(t, "s1", ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("event never arrived")
	}
}

func TestPublishWithoutSubscriberDoesNotBlock(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	defer r.Shutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			r.Publish(schemas.NewEvent("nobody-listening", schemas.EventLog, nil))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no subscriber")
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	defer r.Shutdown()

	events, cancel := r.Subscribe("s1")
	defer cancel()

	// Overflow the buffer without draining; publishing must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			r.Publish(schemas.NewEvent("s1", schemas.EventLog, nil))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	defer r.Shutdown()

	events, cancel := r.Subscribe("s1")
	cancel()
	// Cancel is safe to call twice.
	cancel()

	_, open := <-events
	assert.False(t, open)

	// Publishing after unsubscribe is a no-op.
	r.Publish(schemas.NewEvent("s1", schemas.EventLog, nil))
}

func TestCloseAfterTearsDownSession(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	defer r.Shutdown()

	events, cancel := r.Subscribe("s1")
	defer cancel()

	r.Publish(schemas.NewEvent("s1", schemas.EventStatus, nil))
	r.CloseAfter("s1", 20*time.Millisecond)

	// The pre-teardown event is still delivered, then the channel closes.
	ev, open := <-events
	require.True(t, open)
	assert.Equal(t, schemas.EventStatus, ev.Kind)

	select {
	case _, open := <-events:
		assert.False(t, open, "channel should be closed after the grace period")
	case <-time.After(2 * time.Second):
		t.Fatal("channel never closed")
	}
}

func TestSubscribeAfterTeardownGetsClosedChannel(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	defer r.Shutdown()

	r.CloseAfter("gone", 0)
	require.Eventually(t, func() bool {
		r.mu.Lock()
		_, ok := r.sessions["gone"]
		r.mu.Unlock()
		return !ok
	}, time.Second, 5*time.Millisecond)

	// A brand new subscription recreates the session; that is fine, it just
	// sees no history.
	events, cancel := r.Subscribe("gone")
	defer cancel()
	r.Publish(schemas.NewEvent("gone", schemas.EventLog, nil))

	select {
	case ev := <-events:
		assert.Equal(t, schemas.EventLog, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("resubscription did not receive events")
	}
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	defer r.Shutdown()

	a, cancelA := r.Subscribe("s1")
	defer cancelA()
	b, cancelB := r.Subscribe("s1")
	defer cancelB()

	r.Publish(schemas.NewEvent("s1", schemas.EventScore, nil))

	for _, ch := range []<-chan schemas.Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, schemas.EventScore, ev.Kind)
		case <-time.After(time.Second):
			t.Fatal("a subscriber missed the broadcast")
		}
	}
}
