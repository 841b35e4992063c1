package core

import (
	"context"
	"sync"
	"time"
)

// PollReq asks the HAL to issue Verb on a capability.
type PollReq struct {
	Addr  CapAddr
	Verb  string
	Every time.Duration
}

type pollKey struct {
	addr CapAddr
	verb string
}

type schedule struct {
	every time.Duration
	stop  chan struct{}
}

// Poller fires periodic controls into out, one ticker per schedule. A fire
// that finds out full is dropped; the next tick retries.
type Poller struct {
	out chan<- PollReq

	mu    sync.Mutex
	items map[pollKey]*schedule
	done  <-chan struct{} // nil until Run
	wg    sync.WaitGroup
}

func NewPoller(out chan<- PollReq) *Poller {
	return &Poller{out: out, items: map[pollKey]*schedule{}}
}

// Upsert adds a schedule or replaces its interval. Schedules added before
// Run start with it.
func (p *Poller) Upsert(addr CapAddr, verb string, every time.Duration) {
	if every <= 0 || verb == "" {
		return
	}
	k := pollKey{addr: addr, verb: verb}
	s := &schedule{every: every, stop: make(chan struct{})}

	p.mu.Lock()
	defer p.mu.Unlock()
	if old := p.items[k]; old != nil {
		close(old.stop)
	}
	p.items[k] = s
	if p.done != nil {
		p.start(k, s)
	}
}

func (p *Poller) Stop(addr CapAddr, verb string) {
	k := pollKey{addr: addr, verb: verb}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.items[k]; s != nil {
		close(s.stop)
		delete(p.items, k)
	}
}

// Len reports the number of active schedules.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Run starts the tickers and blocks until ctx ends and they have exited.
func (p *Poller) Run(ctx context.Context) {
	p.mu.Lock()
	p.done = ctx.Done()
	for k, s := range p.items {
		p.start(k, s)
	}
	p.mu.Unlock()

	<-ctx.Done()
	p.wg.Wait()
}

// caller holds mu
func (p *Poller) start(k pollKey, s *schedule) {
	done := p.done
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(s.every)
		defer t.Stop()
		req := PollReq{Addr: k.addr, Verb: k.verb, Every: s.every}
		for {
			select {
			case <-done:
				return
			case <-s.stop:
				return
			case <-t.C:
				select {
				case p.out <- req:
				default:
				}
			}
		}
	}()
}
