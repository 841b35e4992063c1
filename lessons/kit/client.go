// Package kit is the lessons' side of the bus: it publishes device
// configuration to the HAL and wraps capability controls in typed calls.
package kit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"superkit-go/bus"
	"superkit-go/errcode"
	"superkit-go/services/hal"
	"superkit-go/types"
)

const defaultTimeout = 2 * time.Second

// ErrNotReady is returned when the HAL does not reach ready in time.
var ErrNotReady = errors.New("kit: hal not ready")

type Client struct {
	conn    *bus.Connection
	timeout time.Duration
}

// New wraps conn. Every control waits at most timeout for its reply;
// zero means two seconds.
func New(conn *bus.Connection, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{conn: conn, timeout: timeout}
}

func (c *Client) Conn() *bus.Connection { return c.conn }

// Configure publishes devs as the retained HAL config and waits for the HAL
// to apply it.
func (c *Client) Configure(ctx context.Context, devs []types.HALDevice) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msg := c.conn.NewMessage(hal.TopicConfig(), types.HALConfig{Devices: devs}, true)
	reply, err := c.conn.RequestWait(ctx, msg)
	if err != nil {
		return fmt.Errorf("configure hal: %w", err)
	}
	if err := replyErr(reply); err != nil {
		return fmt.Errorf("configure hal: %w", err)
	}
	return nil
}

// WaitReady blocks until hal/state reports ready.
func (c *Client) WaitReady(ctx context.Context) error {
	sub := c.conn.Subscribe(hal.TopicState())
	defer c.conn.Unsubscribe(sub)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
				return nil
			}
		}
	}
}

// Do sends a control and maps an error reply to its errcode.Code.
func (c *Client) Do(ctx context.Context, cap Cap, verb string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msg := c.conn.NewMessage(hal.CapCtrl(cap.Domain, string(cap.Kind), cap.Name, verb), payload, false)
	reply, err := c.conn.RequestWait(ctx, msg)
	if err != nil {
		return fmt.Errorf("%s %s: %w", cap, verb, err)
	}
	if err := replyErr(reply); err != nil {
		return fmt.Errorf("%s %s: %w", cap, verb, err)
	}
	return nil
}

func replyErr(m *bus.Message) error {
	switch r := m.Payload.(type) {
	case types.OKReply:
		return nil
	case types.ErrorReply:
		if r.OK {
			return nil
		}
		return errcode.Code(r.Error)
	default:
		return &errcode.E{C: errcode.Error, Op: "reply", Msg: fmt.Sprintf("unexpected %T", m.Payload)}
	}
}

// Cap addresses one capability.
type Cap struct {
	Domain string
	Kind   types.Kind
	Name   string
}

// IO is the usual address for kit parts.
func IO(kind types.Kind, name string) Cap { return Cap{Domain: "io", Kind: kind, Name: name} }

func (c Cap) String() string {
	return bus.T("hal", "cap", c.Domain, string(c.Kind), c.Name).String()
}

// Events subscribes to every event of cap, tagged or not.
func (c *Client) Events(cap Cap) *bus.Subscription {
	return c.conn.Subscribe(hal.CapEvent(cap.Domain, string(cap.Kind), cap.Name).Append("#"))
}

// Values subscribes to the retained value of cap.
func (c *Client) Values(cap Cap) *bus.Subscription {
	return c.conn.Subscribe(hal.CapValue(cap.Domain, string(cap.Kind), cap.Name))
}
