package core

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"superkit-go/bus"
	"superkit-go/errcode"
	"superkit-go/services/metrics"
	"superkit-go/types"
	"superkit-go/x/timex"
)

const (
	eventQueueLen = 64
	pollQueueLen  = 8
)

type HAL struct {
	conn *bus.Connection
	res  Resources
	log  zerolog.Logger

	// Device registry in build order; closed in reverse.
	dev   map[string]Device
	order []string

	// Capability index: address -> devID
	capIndex map[CapAddr]string

	// Single-threaded publication of device events
	evCh  chan Event
	drops atomic.Uint64

	pollCh chan PollReq
	poller *Poller

	// Replies waiting on a device's Done channel.
	pending sync.WaitGroup
}

func NewHAL(conn *bus.Connection, res Resources, log zerolog.Logger) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		log:      log,
		dev:      map[string]Device{},
		capIndex: map[CapAddr]string{},
		evCh:     make(chan Event, eventQueueLen),
		pollCh:   make(chan PollReq, pollQueueLen),
	}
	h.poller = NewPoller(h.pollCh)
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

// Run serves config and controls until ctx ends, then closes every device
// and publishes hal/state=stopped.
func (h *HAL) Run(ctx context.Context) {
	cfgSub := h.conn.Subscribe(TopicConfigHAL())
	ctrlSub := h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(cfgSub)
	defer h.conn.Unsubscribe(ctrlSub)

	pollCtx, stopPoll := context.WithCancel(ctx)
	pollDone := make(chan struct{})
	go func() { defer close(pollDone); h.poller.Run(pollCtx) }()

	h.pubHALState("idle", "awaiting_config")
	ready := false
	for {
		select {
		case <-ctx.Done():
			stopPoll()
			<-pollDone
			h.closeAll()
			h.pending.Wait()
			h.pubHALState("stopped", "context_cancelled")
			return
		case msg := <-cfgSub.Channel():
			if msg.Payload == nil {
				continue // retained config cleared
			}
			cfg, code := As[types.HALConfig](msg.Payload)
			if code != "" {
				h.log.Warn().Str("topic", msg.Topic.String()).Msg("ignoring config with unexpected payload")
				h.replyErr(msg, code)
				continue
			}
			// applyConfig is additive and idempotent for existing devices.
			h.applyConfig(ctx, cfg)
			if !ready {
				ready = true
				h.pubHALState("ready", "")
			}
			h.replyOK(msg)
		case m := <-ctrlSub.Channel():
			if !ready {
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m)
		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		case pr := <-h.pollCh:
			h.handlePoll(pr)
		}
	}
}

func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for _, dc := range cfg.Devices {
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		l := h.log.With().Str("device", dc.ID).Str("type", dc.Type).Logger()
		b, ok := LookupBuilder(dc.Type)
		if !ok {
			l.Error().Msg("no builder for device type")
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{ID: dc.ID, Type: dc.Type, Params: dc.Params, Res: h.res})
		if err != nil {
			l.Error().Err(err).Msg("build failed")
			continue
		}
		if err := dev.Init(ctx); err != nil {
			l.Error().Err(err).Msg("init failed")
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev
		h.order = append(h.order, dev.ID())

		// Register capabilities, publish retained info + initial status:down.
		for _, cs := range dev.Capabilities() {
			addr := h.resolve(dev.ID(), cs)
			h.capIndex[addr] = dev.ID()
			k := string(addr.Kind)

			h.conn.Publish(h.conn.NewMessage(CapInfo(addr.Domain, k, addr.Name), cs.Info, true))
			h.conn.Publish(h.conn.NewMessage(
				CapStatus(addr.Domain, k, addr.Name),
				types.CapabilityStatus{Link: types.LinkDown, TSms: timex.NowMs()},
				true,
			))
			if cs.PollEvery > 0 {
				h.poller.Upsert(addr, "read", cs.PollEvery)
			}
			l.Debug().Str("cap", CapBase(addr.Domain, k, addr.Name).String()).Msg("capability registered")
		}
		l.Info().Msg("device ready")
	}
	metrics.HALDevices(len(h.dev))
}

func (h *HAL) resolve(devID string, cs CapabilitySpec) CapAddr {
	a := CapAddr{Domain: cs.Domain, Kind: cs.Kind, Name: cs.Name}
	if a.Domain == "" {
		a.Domain = defaultDomainFor(cs.Kind)
	}
	if a.Name == "" {
		a.Name = devID
	}
	return a
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() != 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, ok1 := msg.Topic.At(2).(string)
	kind, ok2 := msg.Topic.At(3).(string)
	name, ok3 := msg.Topic.At(4).(string)
	verb, ok4 := msg.Topic.At(6).(string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}

	addr := CapAddr{Domain: domain, Kind: types.Kind(kind), Name: name}
	dev := h.dev[h.capIndex[addr]]
	if dev == nil {
		metrics.HALControl(kind, verb, string(errcode.UnknownCapability))
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}

	res, err := dev.Control(addr, verb, msg.Payload)
	if err != nil {
		metrics.HALControl(kind, verb, string(errcode.Of(err)))
		h.replyFromError(msg, err)
		return
	}
	if res.OK && res.Done != nil {
		h.pending.Add(1)
		go func() {
			defer h.pending.Done()
			h.finishControl(msg, kind, verb, <-res.Done)
		}()
		return
	}
	if res.OK {
		h.finishControl(msg, kind, verb, errcode.OK)
		return
	}
	code := res.Error
	if code == "" {
		code = errcode.Busy
	}
	metrics.HALControl(kind, verb, string(code))
	h.replyErr(msg, code)
}

func (h *HAL) finishControl(msg *bus.Message, kind, verb string, code errcode.Code) {
	metrics.HALControl(kind, verb, string(code))
	if code == errcode.OK {
		h.replyOK(msg)
		return
	}
	h.replyErr(msg, code)
}

func (h *HAL) handlePoll(pr PollReq) {
	dev := h.dev[h.capIndex[pr.Addr]]
	if dev == nil {
		h.poller.Stop(pr.Addr, pr.Verb)
		return
	}
	if res, err := dev.Control(pr.Addr, pr.Verb, nil); err != nil || !res.OK {
		h.log.Debug().Err(err).Str("code", string(res.Error)).Str("device", dev.ID()).Msg("poll rejected")
	}
}

func (h *HAL) handleEvent(ev Event) {
	d, k, n := ev.Addr.Domain, string(ev.Addr.Kind), ev.Addr.Name
	if ev.TSms == 0 {
		ev.TSms = timex.NowMs()
	}

	// Error: retained status:degraded only.
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			CapStatus(d, k, n),
			types.CapabilityStatus{Link: types.LinkDegraded, TSms: ev.TSms, Error: ev.Err},
			true,
		))
		metrics.HALPublished(k, "status")
		return
	}

	switch {
	case ev.IsEvent || ev.EventTag != "":
		topic := CapEvent(d, k, n)
		if ev.EventTag != "" {
			topic = CapEventTagged(d, k, n, ev.EventTag)
		}
		h.conn.Publish(h.conn.NewMessage(topic, ev.Payload, false))
		metrics.HALPublished(k, "event")
	default:
		h.conn.Publish(h.conn.NewMessage(CapValue(d, k, n), ev.Payload, true))
		metrics.HALPublished(k, "value")
	}
	h.conn.Publish(h.conn.NewMessage(
		CapStatus(d, k, n),
		types.CapabilityStatus{Link: types.LinkUp, TSms: ev.TSms},
		true,
	))
}

func (h *HAL) closeAll() {
	for i := len(h.order) - 1; i >= 0; i-- {
		id := h.order[i]
		if err := h.dev[id].Close(); err != nil {
			h.log.Warn().Err(err).Str("device", id).Msg("close failed")
		}
	}
	// Drain what devices emitted while closing so final values are visible.
	for {
		select {
		case ev := <-h.evCh:
			h.handleEvent(ev)
		default:
			h.dev = map[string]Device{}
			h.order = nil
			h.capIndex = map[CapAddr]string{}
			metrics.HALDevices(0)
			return
		}
	}
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		TopicHALState(),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

func defaultDomainFor(kind types.Kind) string {
	switch kind {
	case types.KindSwitch:
		return "power"
	default:
		return "io"
	}
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		h.drops.Add(1)
		metrics.HALEmitDropped()
		return false
	}
}

// EmitDrops reports how many device events were dropped under pressure.
func (h *HAL) EmitDrops() uint64 { return h.drops.Load() }
