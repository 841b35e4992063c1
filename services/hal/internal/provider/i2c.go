package provider

import (
	"fmt"
	"time"

	"tinygo.org/x/drivers"

	"superkit-go/errcode"
	"superkit-go/services/hal/internal/core"
)

// request posted to the per-bus worker
type i2cReq struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1); worker replies best-effort
}

// i2cOwner hosts a single worker goroutine per bus so devices sharing the
// bus never interleave transactions.
type i2cOwner struct {
	id   core.ResourceID
	hw   drivers.I2C
	reqs chan i2cReq
	quit chan struct{}
	done chan struct{}
}

func newI2COwner(id core.ResourceID, hw drivers.I2C) *i2cOwner {
	o := &i2cOwner{
		id:   id,
		hw:   hw,
		reqs: make(chan i2cReq, 16),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *i2cOwner) loop() {
	defer close(o.done)
	for {
		select {
		case req := <-o.reqs:
			err := o.hw.Tx(req.addr, req.w, req.r)
			select {
			case req.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

func (o *i2cOwner) stop() {
	close(o.quit)
	<-o.done
}

// busI2C adapts the owner to drivers.I2C with a per-call deadline.
type busI2C struct {
	o       *i2cOwner
	timeout time.Duration
}

var _ drivers.I2C = (*busI2C)(nil)

func (d *busI2C) Tx(addr uint16, w, r []byte) error {
	req := i2cReq{addr: addr, w: w, r: r, done: make(chan error, 1)}
	t := time.NewTimer(d.timeout)
	defer t.Stop()

	select {
	case d.o.reqs <- req:
	case <-d.o.quit:
		return errcode.UnknownBus
	case <-t.C:
		return errcode.Busy
	}
	select {
	case err := <-req.done:
		if err != nil {
			return errcode.Wrap(errcode.IOError, fmt.Sprintf("i2c %s tx 0x%02x", d.o.id, addr), err)
		}
		return nil
	case <-t.C:
		return errcode.Timeout
	}
}

// ClaimI2C hands out a serialised view of the bus. Several devices may share
// a bus; the same device may not claim it twice.
func (r *Registry) ClaimI2C(devID string, id core.ResourceID) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.i2cOwners[id]
	if o == nil {
		if r.i2c == nil {
			return nil, errcode.UnknownBus
		}
		hw, ok := r.i2c.ByID(string(id))
		if !ok {
			return nil, &errcode.E{C: errcode.UnknownBus, Op: "claim", Msg: string(id)}
		}
		o = newI2COwner(id, hw)
		r.i2cOwners[id] = o
	}
	claims := r.i2cClaims[id]
	if claims == nil {
		claims = map[string]struct{}{}
		r.i2cClaims[id] = claims
	}
	if _, dup := claims[devID]; dup {
		return nil, &errcode.E{C: errcode.BusInUse, Op: "claim", Msg: fmt.Sprintf("%s already claimed by %s", id, devID)}
	}
	claims[devID] = struct{}{}
	return &busI2C{o: o, timeout: r.opt.I2CTimeout}, nil
}

// ReleaseI2C drops the claim; the bus worker stops with the last claim.
func (r *Registry) ReleaseI2C(devID string, id core.ResourceID) {
	r.mu.Lock()
	claims := r.i2cClaims[id]
	delete(claims, devID)
	var o *i2cOwner
	if len(claims) == 0 {
		o = r.i2cOwners[id]
		delete(r.i2cOwners, id)
		delete(r.i2cClaims, id)
	}
	r.mu.Unlock()
	if o != nil {
		o.stop()
	}
}
