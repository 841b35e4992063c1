package hd44780

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ram decodes nibbles into commands and DDRAM writes the way the controller
// would once in 4-bit mode.
type ram struct {
	nibbles []byte
	rss     []bool
	cmds    []byte
	ddram   map[byte]byte
	addr    byte
}

func newRAM() *ram { return &ram{ddram: map[byte]byte{}} }

func (r *ram) WriteNibble(rs bool, n byte) error {
	r.nibbles = append(r.nibbles, n)
	r.rss = append(r.rss, rs)
	return nil
}

// decode skips the four init nibbles and pairs the rest.
func (r *ram) decode(t *testing.T) {
	t.Helper()
	require.GreaterOrEqual(t, len(r.nibbles), 4)
	assert.Equal(t, []byte{0x3, 0x3, 0x3, 0x2}, r.nibbles[:4])
	for i := 4; i+1 < len(r.nibbles); i += 2 {
		b := r.nibbles[i]<<4 | r.nibbles[i+1]
		if !r.rss[i] {
			r.cmds = append(r.cmds, b)
			switch {
			case b == cmdClear:
				r.ddram = map[byte]byte{}
				r.addr = 0
			case b&cmdSetDDRAM != 0:
				r.addr = b &^ cmdSetDDRAM
			}
			continue
		}
		r.ddram[r.addr] = b
		r.addr++
	}
}

func (r *ram) line(addr byte, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		c, ok := r.ddram[addr+byte(i)]
		if !ok {
			break
		}
		out = append(out, c)
	}
	return string(out)
}

func noSleep(time.Duration) {}

func TestInitSequence(t *testing.T) {
	r := newRAM()
	d := New(r, Config{Sleep: noSleep})
	require.NoError(t, d.Init())
	r.decode(t)
	assert.Equal(t, []byte{0x28, 0x0c, 0x06, 0x01}, r.cmds)
}

func TestPrintPlacesSecondLineAt0x40(t *testing.T) {
	r := newRAM()
	d := New(r, Config{Sleep: noSleep})
	require.NoError(t, d.Init())
	require.NoError(t, d.Print([]string{" LCD 1602 Test ", "123456789ABCDEFGHIJ", "dropped"}))
	r.decode(t)
	assert.Equal(t, " LCD 1602 Test ", r.line(0x00, 16))
	assert.Equal(t, "123456789ABCDEFG", r.line(0x40, 20), "truncated to 16 columns")
}

func TestPrintCountsRunesNotBytes(t *testing.T) {
	r := newRAM()
	d := New(r, Config{Sleep: noSleep})
	require.NoError(t, d.Init())
	require.NoError(t, d.Print([]string{"25°C café ±0.5°C!", "ok\tgo"}))
	r.decode(t)
	assert.Equal(t, "25?C caf? ?0.5?C", r.line(0x00, 16))
	assert.Equal(t, "ok?go", r.line(0x40, 5))
}

func TestSetCursorRange(t *testing.T) {
	d := New(newRAM(), Config{Sleep: noSleep})
	assert.ErrorIs(t, d.SetCursor(2, 0), ErrOutOfRange)
	assert.ErrorIs(t, d.SetCursor(0, 16), ErrOutOfRange)
	assert.NoError(t, d.SetCursor(1, 15))
}

type pinRec struct{ level bool }

func (p *pinRec) Set(v bool) { p.level = v }

type txRec struct{ writes [][]byte }

func (b *txRec) Tx(addr uint16, w, r []byte) error {
	b.writes = append(b.writes, append([]byte{byte(addr)}, w...))
	return nil
}

func TestGPIOBusDrivesDataLines(t *testing.T) {
	var p [6]pinRec
	g := NewGPIOBus(&p[0], &p[1], &p[2], &p[3], &p[4], &p[5])
	g.Pulse = 0
	require.NoError(t, g.WriteNibble(true, 0xA))
	assert.True(t, p[0].level, "rs")
	assert.False(t, p[1].level, "e returns low")
	assert.Equal(t, []bool{false, true, false, true}, []bool{p[2].level, p[3].level, p[4].level, p[5].level})
}

func TestI2CBusFraming(t *testing.T) {
	rec := &txRec{}
	b := NewI2CBus(rec, 0)
	require.NoError(t, b.WriteNibble(true, 0x4))
	require.Len(t, rec.writes, 1)
	assert.Equal(t, []byte{0x27, 0x4D, 0x49}, rec.writes[0])

	require.NoError(t, b.SetBacklight(false))
	assert.Equal(t, []byte{0x27, 0x00}, rec.writes[1])
}
