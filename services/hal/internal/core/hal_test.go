package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"tinygo.org/x/drivers"

	"superkit-go/bus"
	"superkit-go/errcode"
	"superkit-go/types"
	"superkit-go/x/logx"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

// ---- fakes ----

type nopRegistry struct{}

func (nopRegistry) ClaimPin(string, int, PinFunc) (PinHandle, error) { return nil, errcode.Unsupported }
func (nopRegistry) ReleasePin(string, int)                          {}
func (nopRegistry) SubscribeGPIOEdges(string, int, Edge, time.Duration, bool, int) (GPIOEdgeStream, error) {
	return nil, errcode.Unsupported
}
func (nopRegistry) ClaimI2C(string, ResourceID) (drivers.I2C, error) { return nil, errcode.UnknownBus }
func (nopRegistry) ReleaseI2C(string, ResourceID)                    {}

type counterParams struct {
	PollEvery time.Duration
	FailInit  bool
}

type counterDev struct {
	id     string
	p      counterParams
	pub    EventEmitter
	n      atomic.Int32
	closed atomic.Bool
}

var (
	devsMu sync.Mutex
	devs   = map[string]*counterDev{}
)

func init() {
	RegisterBuilder("test_counter", BuilderFunc(func(_ context.Context, in BuilderInput) (Device, error) {
		p, err := Params[counterParams](in.Params)
		if err != nil {
			return nil, err
		}
		d := &counterDev{id: in.ID, p: p, pub: in.Res.Pub}
		devsMu.Lock()
		devs[in.ID] = d
		devsMu.Unlock()
		return d, nil
	}))
}

func devByID(id string) *counterDev {
	devsMu.Lock()
	defer devsMu.Unlock()
	return devs[id]
}

func (d *counterDev) ID() string { return d.id }
func (d *counterDev) Capabilities() []CapabilitySpec {
	return []CapabilitySpec{{
		Kind:      types.KindCounter,
		Info:      types.Info{SchemaVersion: 1, Driver: "test_counter"},
		PollEvery: d.p.PollEvery,
	}}
}
func (d *counterDev) Init(context.Context) error {
	if d.p.FailInit {
		return errcode.IOError
	}
	return nil
}
func (d *counterDev) Close() error { d.closed.Store(true); return nil }

func (d *counterDev) Control(addr CapAddr, verb string, payload any) (EnqueueResult, error) {
	switch verb {
	case "read":
		d.pub.Emit(Event{Addr: addr, Payload: types.CounterValue{Count: uint64(d.n.Load())}})
		return Accepted(), nil
	case "inc":
		d.n.Add(1)
		d.pub.Emit(Event{Addr: addr, Payload: types.CounterValue{Count: uint64(d.n.Load())}})
		return Accepted(), nil
	case "tick":
		d.pub.Emit(Event{Addr: addr, EventTag: "tick", Payload: d.n.Load()})
		return Accepted(), nil
	case "fail":
		d.pub.Emit(Event{Addr: addr, Err: string(errcode.IOError)})
		return Accepted(), nil
	case "boom":
		return EnqueueResult{}, errcode.Timeout
	case "busy":
		return EnqueueResult{}, nil
	case "later":
		code, _ := payload.(errcode.Code)
		done := make(chan errcode.Code, 1)
		go func() {
			time.Sleep(20 * time.Millisecond)
			d.n.Add(1)
			done <- code
		}()
		return Pending(done), nil
	default:
		return Rejected(errcode.Unsupported), nil
	}
}

// ---- harness ----

type harness struct {
	t      *testing.T
	conn   *bus.Connection
	cancel context.CancelFunc
	done   chan struct{}
}

func startHAL(t *testing.T) *harness {
	t.Helper()
	b := bus.NewBus(16)
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHAL(b.NewConnection("hal"), Resources{Reg: nopRegistry{}}, logx.Nop())
	done := make(chan struct{})
	go func() { defer close(done); h.Run(ctx) }()
	hs := &harness{t: t, conn: b.NewConnection("test"), cancel: cancel, done: done}
	t.Cleanup(hs.stop)
	// Requests are not retained; the HAL must be subscribed before any is sent.
	hs.waitRetained(TopicHALState(), isState("idle"))
	return hs
}

func (hs *harness) stop() {
	hs.cancel()
	<-hs.done
}

func (hs *harness) request(topic bus.Topic, payload any) any {
	hs.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := hs.conn.RequestWait(ctx, hs.conn.NewMessage(topic, payload, false))
	require.NoError(hs.t, err)
	return m.Payload
}

func (hs *harness) waitRetained(topic bus.Topic, pred func(any) bool) any {
	hs.t.Helper()
	sub := hs.conn.Subscribe(topic)
	defer hs.conn.Unsubscribe(sub)
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if pred(m.Payload) {
				return m.Payload
			}
		case <-deadline:
			hs.t.Fatalf("timeout waiting on %s", topic)
			return nil
		}
	}
}

func (hs *harness) configure(devices ...types.HALDevice) {
	hs.t.Helper()
	got := hs.request(TopicConfigHAL(), types.HALConfig{Devices: devices})
	require.Equal(hs.t, types.OKReply{OK: true}, got)
}

func isState(level string) func(any) bool {
	return func(v any) bool { s, ok := v.(types.HALState); return ok && s.Level == level }
}

// ---- tests ----

func TestControlBeforeConfigIsRejected(t *testing.T) {
	hs := startHAL(t)

	got := hs.request(CapCtrl("io", "counter", "c1", "read"), nil)
	assert.Equal(t, types.ErrorReply{OK: false, Error: string(errcode.HALNotReady)}, got)
}

func TestConfigRegistersCapabilities(t *testing.T) {
	hs := startHAL(t)
	hs.configure(
		types.HALDevice{ID: "c1", Type: "test_counter", Params: counterParams{}},
		types.HALDevice{ID: "ghost", Type: "no_such_type"},
		types.HALDevice{ID: "bad", Type: "test_counter", Params: "not params"},
		types.HALDevice{ID: "broken", Type: "test_counter", Params: counterParams{FailInit: true}},
	)
	hs.waitRetained(TopicHALState(), isState("ready"))

	info := hs.waitRetained(CapInfo("io", "counter", "c1"), func(any) bool { return true })
	assert.Equal(t, "test_counter", info.(types.Info).Driver)
	st := hs.waitRetained(CapStatus("io", "counter", "c1"), func(any) bool { return true })
	assert.Equal(t, types.LinkDown, st.(types.CapabilityStatus).Link)

	assert.True(t, devByID("broken").closed.Load(), "failed init must release resources")

	got := hs.request(CapCtrl("io", "counter", "ghost", "read"), nil)
	assert.Equal(t, types.ErrorReply{Error: string(errcode.UnknownCapability)}, got)
}

func TestControlPublishesValueAndStatus(t *testing.T) {
	hs := startHAL(t)
	hs.configure(types.HALDevice{ID: "c2", Type: "test_counter", Params: counterParams{}})

	assert.Equal(t, types.OKReply{OK: true}, hs.request(CapCtrl("io", "counter", "c2", "inc"), nil))
	v := hs.waitRetained(CapValue("io", "counter", "c2"), func(any) bool { return true })
	assert.Equal(t, types.CounterValue{Count: 1}, v)
	hs.waitRetained(CapStatus("io", "counter", "c2"), func(v any) bool {
		return v.(types.CapabilityStatus).Link == types.LinkUp
	})

	assert.Equal(t, types.ErrorReply{Error: "unsupported"}, hs.request(CapCtrl("io", "counter", "c2", "nope"), nil))
	assert.Equal(t, types.ErrorReply{Error: "timeout"}, hs.request(CapCtrl("io", "counter", "c2", "boom"), nil))
	assert.Equal(t, types.ErrorReply{Error: "busy"}, hs.request(CapCtrl("io", "counter", "c2", "busy"), nil))
}

func TestDeferredControlRepliesOnCompletion(t *testing.T) {
	hs := startHAL(t)
	hs.configure(types.HALDevice{ID: "c7", Type: "test_counter", Params: counterParams{}})

	assert.Equal(t, types.OKReply{OK: true}, hs.request(CapCtrl("io", "counter", "c7", "later"), errcode.OK))
	assert.EqualValues(t, 1, devByID("c7").n.Load(), "reply sent before the work finished")

	got := hs.request(CapCtrl("io", "counter", "c7", "later"), errcode.IOError)
	assert.Equal(t, types.ErrorReply{Error: "io_error"}, got)
}

func TestTaggedEventsAndDegradedStatus(t *testing.T) {
	hs := startHAL(t)
	hs.configure(types.HALDevice{ID: "c3", Type: "test_counter", Params: counterParams{}})

	evSub := hs.conn.Subscribe(CapEventTagged("io", "counter", "c3", "tick"))
	defer hs.conn.Unsubscribe(evSub)
	hs.request(CapCtrl("io", "counter", "c3", "tick"), nil)
	select {
	case m := <-evSub.Channel():
		assert.False(t, m.Retained)
		assert.Equal(t, int32(0), m.Payload)
	case <-time.After(time.Second):
		t.Fatal("no tick event")
	}

	hs.request(CapCtrl("io", "counter", "c3", "fail"), nil)
	hs.waitRetained(CapStatus("io", "counter", "c3"), func(v any) bool {
		s := v.(types.CapabilityStatus)
		return s.Link == types.LinkDegraded && s.Error == "io_error"
	})
}

func TestPollingIssuesReads(t *testing.T) {
	hs := startHAL(t)
	hs.configure(types.HALDevice{ID: "c4", Type: "test_counter", Params: counterParams{PollEvery: 5 * time.Millisecond}})
	hs.request(CapCtrl("io", "counter", "c4", "inc"), nil)
	hs.request(CapCtrl("io", "counter", "c4", "inc"), nil)

	// Values keep arriving without further controls.
	sub := hs.conn.Subscribe(CapValue("io", "counter", "c4"))
	defer hs.conn.Unsubscribe(sub)
	seen := 0
	deadline := time.After(time.Second)
	for seen < 3 {
		select {
		case m := <-sub.Channel():
			if m.Payload == (types.CounterValue{Count: 2}) {
				seen++
			}
		case <-deadline:
			t.Fatalf("saw %d polled values", seen)
		}
	}
}

func TestStopClosesDevices(t *testing.T) {
	hs := startHAL(t)
	hs.configure(types.HALDevice{ID: "c5", Type: "test_counter", Params: counterParams{}})
	hs.stop()

	assert.True(t, devByID("c5").closed.Load())
	hs.waitRetained(TopicHALState(), isState("stopped"))
}

func TestDuplicateConfigIsIdempotent(t *testing.T) {
	hs := startHAL(t)
	hs.configure(types.HALDevice{ID: "c6", Type: "test_counter", Params: counterParams{}})
	first := devByID("c6")
	hs.configure(types.HALDevice{ID: "c6", Type: "test_counter", Params: counterParams{}})
	assert.Same(t, first, devByID("c6"), "existing device must not be rebuilt")
}

func TestEmitDropsWhenQueueFull(t *testing.T) {
	h := NewHAL(bus.NewBus(4).NewConnection("hal"), Resources{}, logx.Nop())
	for i := 0; i < eventQueueLen; i++ {
		require.True(t, h.Emit(Event{}))
	}
	assert.False(t, h.Emit(Event{}))
	assert.EqualValues(t, 1, h.EmitDrops())
}

func TestAsAndParams(t *testing.T) {
	v, code := As[types.LEDSet](types.LEDSet{On: true})
	assert.Empty(t, code)
	assert.True(t, v.On)

	v, code = As[types.LEDSet](&types.LEDSet{On: true})
	assert.Empty(t, code)
	assert.True(t, v.On)

	_, code = As[types.LEDSet]("on")
	assert.Equal(t, errcode.InvalidPayload, code)

	v, code = As[types.LEDSet](nil)
	assert.Empty(t, code)
	assert.False(t, v.On)

	_, err := Params[counterParams](42)
	assert.ErrorIs(t, err, errcode.InvalidParams)
}
