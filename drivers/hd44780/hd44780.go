// Package hd44780 drives HD44780 character LCDs in 4-bit mode, either wired
// directly to GPIO (RS, E, D4..D7) or behind a PCF8574 I2C backpack.
//
// Only writes are supported; RW is tied low.
package hd44780

import (
	"errors"
	"time"
)

// Commands.
const (
	cmdClear       = 0x01
	cmdHome        = 0x02
	cmdEntryMode   = 0x04
	cmdDisplayCtrl = 0x08
	cmdFunctionSet = 0x20
	cmdSetDDRAM    = 0x80

	entryIncrement = 0x02
	displayOn      = 0x04
	function2Lines = 0x08
)

// Row start addresses in DDRAM. 16x2 modules use the first two.
var rowOffsets = [4]byte{0x00, 0x40, 0x14, 0x54}

var ErrOutOfRange = errors.New("hd44780: cursor out of range")

// Bus moves one nibble (low four bits) with the given RS level and strobes E.
type Bus interface {
	WriteNibble(rs bool, nibble byte) error
}

type Config struct {
	Cols, Rows int // default 16x2
	// Sleep is used for controller timing. Default time.Sleep.
	Sleep func(time.Duration)
}

type Device struct {
	bus        Bus
	cols, rows int
	sleep      func(time.Duration)
}

func New(bus Bus, cfg Config) *Device {
	if cfg.Cols <= 0 {
		cfg.Cols = 16
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 2
	}
	if cfg.Rows > len(rowOffsets) {
		cfg.Rows = len(rowOffsets)
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Device{bus: bus, cols: cfg.Cols, rows: cfg.Rows, sleep: cfg.Sleep}
}

func (d *Device) Size() (cols, rows int) { return d.cols, d.rows }

// Init runs the 4-bit initialisation by instruction, then sets two lines,
// display on with no cursor, and left-to-right entry.
func (d *Device) Init() error {
	d.sleep(50 * time.Millisecond)
	for _, wait := range []time.Duration{4100 * time.Microsecond, 100 * time.Microsecond, 100 * time.Microsecond} {
		if err := d.bus.WriteNibble(false, 0x3); err != nil {
			return err
		}
		d.sleep(wait)
	}
	if err := d.bus.WriteNibble(false, 0x2); err != nil {
		return err
	}
	d.sleep(100 * time.Microsecond)

	for _, c := range []byte{
		cmdFunctionSet | function2Lines,
		cmdDisplayCtrl | displayOn,
		cmdEntryMode | entryIncrement,
	} {
		if err := d.Command(c); err != nil {
			return err
		}
	}
	return d.Clear()
}

// Command sends an instruction byte.
func (d *Device) Command(c byte) error {
	if err := d.send(false, c); err != nil {
		return err
	}
	if c == cmdClear || c == cmdHome {
		d.sleep(1600 * time.Microsecond)
	}
	return nil
}

func (d *Device) Clear() error { return d.Command(cmdClear) }
func (d *Device) Home() error  { return d.Command(cmdHome) }

func (d *Device) SetCursor(row, col int) error {
	if row < 0 || row >= d.rows || col < 0 || col >= d.cols {
		return ErrOutOfRange
	}
	return d.Command(cmdSetDDRAM | (rowOffsets[row] + byte(col)))
}

// Write sends bytes to DDRAM at the cursor.
func (d *Device) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := d.send(true, b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// Print clears the display and writes one line per row, truncated to the
// width in characters. Extra lines are dropped. Runes outside printable
// ASCII show as '?'; the character ROM has no safe mapping for them.
func (d *Device) Print(lines []string) error {
	if err := d.Clear(); err != nil {
		return err
	}
	for row, s := range lines {
		if row >= d.rows {
			break
		}
		if err := d.SetCursor(row, 0); err != nil {
			return err
		}
		if _, err := d.Write(ROMText(s, d.cols)); err != nil {
			return err
		}
	}
	return nil
}

// ROMText converts up to n runes of s to display codes.
func ROMText(s string, n int) []byte {
	out := make([]byte, 0, max(n, 0))
	for _, r := range s {
		if len(out) >= n {
			break
		}
		if r < 0x20 || r > 0x7e {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out
}

func (d *Device) send(rs bool, b byte) error {
	if err := d.bus.WriteNibble(rs, b>>4); err != nil {
		return err
	}
	if err := d.bus.WriteNibble(rs, b&0x0f); err != nil {
		return err
	}
	d.sleep(40 * time.Microsecond)
	return nil
}
