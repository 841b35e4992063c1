package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	assert.Equal(t, OK, Of(nil))
	assert.Equal(t, PinInUse, Of(PinInUse))
	assert.Equal(t, PinInUse, Of(fmt.Errorf("claim pin 17: %w", PinInUse)))
	assert.Equal(t, Timeout, Of(&E{C: Timeout, Op: "lcd.init"}))
	assert.Equal(t, Busy, Of(fmt.Errorf("ramp: %w", &E{C: Busy})))
	assert.Equal(t, Error, Of(errors.New("boom")))
}

func TestEError(t *testing.T) {
	e := &E{C: UnknownPin, Op: "claim", Msg: "pin 99", Err: errors.New("not exported")}
	assert.Equal(t, "claim: unknown_pin: pin 99: not exported", e.Error())
	assert.Equal(t, "busy", (&E{C: Busy}).Error())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(IOError, "write", nil))

	cause := errors.New("short write")
	err := Wrap(IOError, "hc595.latch", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, IOError, Of(err))
}

func TestMapDriverErr(t *testing.T) {
	assert.Equal(t, OK, MapDriverErr(nil))
	assert.Equal(t, Timeout, MapDriverErr(Timeout))
	assert.Equal(t, IOError, MapDriverErr(errors.New("i2c nack")))
}

func TestIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("led: %w", &E{C: PinInUse, Op: "claim"})
	assert.ErrorIs(t, err, PinInUse)
	assert.NotErrorIs(t, err, Busy)
}
