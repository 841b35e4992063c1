package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerFiresAndStops(t *testing.T) {
	out := make(chan PollReq, 4)
	p := NewPoller(out)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); p.Run(ctx) }()
	defer func() { cancel(); <-done }()

	addr := CapAddr{Domain: "io", Kind: "counter", Name: "timer"}
	p.Upsert(addr, "read", 5*time.Millisecond)
	p.Upsert(addr, "", time.Millisecond) // ignored
	p.Upsert(addr, "read", 0)            // ignored
	require.Equal(t, 1, p.Len())

	select {
	case r := <-out:
		assert.Equal(t, addr, r.Addr)
		assert.Equal(t, "read", r.Verb)
		assert.Equal(t, 5*time.Millisecond, r.Every)
	case <-time.After(time.Second):
		t.Fatal("poller never fired")
	}

	p.Stop(addr, "read")
	assert.Zero(t, p.Len())
	// Let an in-flight fire land, drain it, then expect silence.
	time.Sleep(10 * time.Millisecond)
	for len(out) > 0 {
		<-out
	}
	select {
	case r := <-out:
		t.Fatalf("unexpected poll after stop: %+v", r)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestPollerUpsertReschedules(t *testing.T) {
	out := make(chan PollReq, 1)
	p := NewPoller(out)
	addr := CapAddr{Domain: "io", Kind: "encoder", Name: "knob"}
	// Registered before Run: starts with it.
	p.Upsert(addr, "read", time.Hour)
	p.Upsert(addr, "read", 2*time.Millisecond)
	assert.Equal(t, 1, p.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); p.Run(ctx) }()

	select {
	case r := <-out:
		assert.Equal(t, 2*time.Millisecond, r.Every)
	case <-time.After(time.Second):
		t.Fatal("replaced schedule never fired")
	}
	cancel()
	<-done
}
