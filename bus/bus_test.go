package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ledValue   = T("hal", "cap", "io", "led", "led", "value")
	knobValue  = T("hal", "cap", "io", "encoder", "knob", "value")
	btnPressed = T("hal", "cap", "io", "button", "button", "event", "pressed")
	ledSet     = T("hal", "cap", "io", "led", "led", "control", "set")
)

// recv returns the next payload or fails after a short wait.
func recv(t *testing.T, s *Subscription) any {
	t.Helper()
	select {
	case m := <-s.Channel():
		return m.Payload
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("nothing on %v", s.Topic())
		return nil
	}
}

func quiet(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case m := <-s.Channel():
		t.Fatalf("unexpected %v on %v", m.Payload, s.Topic())
	case <-time.After(30 * time.Millisecond):
	}
}

// drain collects exactly n payloads, in any order.
func drain(t *testing.T, s *Subscription, n int) []any {
	t.Helper()
	var out []any
	for len(out) < n {
		out = append(out, recv(t, s))
	}
	quiet(t, s)
	return out
}

func TestPublishSubscribe(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("lesson")
	s := c.Subscribe(ledValue)

	c.Publish(c.NewMessage(ledValue, true, false))
	assert.Equal(t, true, recv(t, s))
	c.Publish(c.NewMessage(knobValue, 3, false))
	quiet(t, s)
}

func TestMatch(t *testing.T) {
	cases := []struct {
		filter Topic
		topic  Topic
		want   bool
	}{
		{T("hal", "cap", "+", "+", "+", "control", "+"), ledSet, true},
		{T("hal", "cap", "+", "+", "+", "control", "+"), ledValue, false},
		{T("hal", "cap", "#"), btnPressed, true},
		{T("hal", "#"), T("hal"), true},
		{T("#"), knobValue, true},
		{T("hal", "cap", "io", "button", "button", "event", "#"), btnPressed, true},
		{T("hal", "cap", "io", "button", "button", "event"), btnPressed, false},
		{T("hal", "+", "io"), T("hal", "io"), false},
		{T("pins", 17), T("pins", 17), true},
		{T("pins", 17), T("pins", "17"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Match(tc.filter, tc.topic), "%v ~ %v", tc.filter, tc.topic)
	}
}

func TestWildcardDelivery(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("status")
	all := c.Subscribe(T("hal", "cap", "#"))
	values := c.Subscribe(T("hal", "cap", "io", "+", "+", "value"))
	buttons := c.Subscribe(T("hal", "cap", "io", "button", "+", "event", "#"))

	c.Publish(c.NewMessage(ledValue, "led", false))
	c.Publish(c.NewMessage(btnPressed, "press", false))
	c.Publish(c.NewMessage(T("hal", "state"), "ready", false))

	assert.ElementsMatch(t, []any{"led", "press"}, drain(t, all, 2))
	assert.Equal(t, []any{"led"}, drain(t, values, 1))
	assert.Equal(t, []any{"press"}, drain(t, buttons, 1))
}

func TestRetained(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("hal")
	c.Publish(c.NewMessage(T("hal", "state"), "ready", true))
	c.Publish(c.NewMessage(ledValue, "off", true))
	c.Publish(c.NewMessage(knobValue, 0, true))
	c.Publish(c.NewMessage(btnPressed, "press", false)) // events are not kept

	late := b.NewConnection("late")
	assert.ElementsMatch(t, []any{"off", 0}, drain(t, late.Subscribe(T("hal", "cap", "#")), 2))
	assert.Equal(t, []any{"ready"}, drain(t, late.Subscribe(T("hal", "+")), 1))

	// A newer retained value replaces the old one; nil clears it.
	c.Publish(c.NewMessage(ledValue, "on", true))
	c.Publish(c.NewMessage(knobValue, nil, true))
	assert.Equal(t, []any{"on"}, drain(t, late.Subscribe(T("hal", "cap", "#")), 1))
}

func TestRequestWait(t *testing.T) {
	b := NewBus(8)
	lesson := b.NewConnection("lesson")
	hal := b.NewConnection("hal")
	ctrl := hal.Subscribe(T("hal", "cap", "+", "+", "+", "control", "+"))
	defer ctrl.Unsubscribe()

	go func() {
		if m, ok := <-ctrl.Channel(); ok {
			hal.Reply(m, "ok", false)
		}
	}()

	req := lesson.NewMessage(ledSet, true, false)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := lesson.RequestWait(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Payload)
	assert.Equal(t, req.ReplyTo, reply.Topic)
	assert.Equal(t, "_reply", req.ReplyTo.At(0))
}

func TestRequestWaitTimesOut(t *testing.T) {
	b := NewBus(8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.NewConnection("lesson").RequestWait(ctx, b.NewMessage(ledSet, nil, false))
	assert.ErrorIs(t, err, ErrNoReply)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// A retained request is answered by a responder that subscribes later,
// which is how lessons configure a HAL that is still starting.
func TestRetainedRequestAnsweredLate(t *testing.T) {
	b := NewBus(8)
	lesson := b.NewConnection("lesson")
	req := lesson.NewMessage(T("config", "hal"), "devices", true)
	replies := lesson.Request(req)
	defer replies.Unsubscribe()

	hal := b.NewConnection("hal")
	cfg := hal.Subscribe(T("config", "hal"))
	m := <-cfg.Channel()
	require.True(t, m.CanReply())
	hal.Reply(m, "applied", false)
	assert.Equal(t, "applied", recv(t, replies))

	// Reply without ReplyTo is a no-op.
	hal.Reply(hal.NewMessage(T("config", "hal"), nil, false), "x", false)
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("lesson")
	s := c.Subscribe(knobValue)
	for i := 1; i <= 3; i++ {
		c.Publish(c.NewMessage(knobValue, i, false))
	}
	assert.Equal(t, []any{2, 3}, drain(t, s, 2))
}

func TestUnsubscribeAndDisconnect(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("lesson")
	s := c.Subscribe(T("hal", "state"))
	s.Unsubscribe()
	s.Unsubscribe()
	_, open := <-s.Channel()
	assert.False(t, open)
	c.Publish(c.NewMessage(T("hal", "state"), "ready", false)) // must not hit the closed channel

	s1 := c.Subscribe(T("hal", "#"))
	s2 := c.Subscribe(T("config", "hal"))
	c.Disconnect()
	for _, s := range []*Subscription{s1, s2} {
		_, open := <-s.Channel()
		assert.False(t, open, "%v", s.Topic())
	}
	s1.Unsubscribe()
}

func TestTopicHelpers(t *testing.T) {
	base := T("hal", "cap", "io", "led", "led0")
	ctrl := base.Append("control", "set")
	assert.Equal(t, 5, base.Len())
	assert.Equal(t, 7, ctrl.Len())
	assert.Equal(t, "set", ctrl.At(6))
	assert.Nil(t, ctrl.At(7))
	assert.Equal(t, "pins/17", T("pins", 17).String())
	assert.Panics(t, func() { T([]byte{1}) })
}
