// Package sevenseg holds segment patterns for a common-cathode seven
// segment display wired a..g to bits 0..6 and the decimal point to bit 7.
package sevenseg

// DP lights the decimal point.
const DP byte = 0x80

// Hex are the digits 0..F.
var Hex = [16]byte{
	0x3f, 0x06, 0x5b, 0x4f, 0x66, 0x6d, 0x7d, 0x07,
	0x7f, 0x6f, 0x77, 0x7c, 0x39, 0x5e, 0x79, 0x71,
}

// Dice are the faces 1..6.
var Dice = [6]byte{0x06, 0x5b, 0x4f, 0x66, 0x6d, 0x7d}

// Digit returns the pattern for v in 0..15.
func Digit(v int) (byte, bool) {
	if v < 0 || v >= len(Hex) {
		return 0, false
	}
	return Hex[v], true
}

// Face returns the pattern for a die showing n in 1..6.
func Face(n int) (byte, bool) {
	if n < 1 || n > len(Dice) {
		return 0, false
	}
	return Dice[n-1], true
}

// Decode maps a pattern back to its hex digit, ignoring the decimal point.
func Decode(b byte) (int, bool) {
	b &^= DP
	for i, p := range Hex {
		if p == b {
			return i, true
		}
	}
	return 0, false
}
