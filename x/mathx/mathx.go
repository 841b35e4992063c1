// Package mathx holds the integer scaling used for duty cycles and colours.
package mathx

import "golang.org/x/exp/constraints"

// Clamp bounds v to the closed range spanned by a and b, in either order.
func Clamp[T constraints.Ordered](v, a, b T) T {
	return max(min(a, b), min(v, max(a, b)))
}

// RoundDiv divides with round-half-up; a zero divisor yields zero.
func RoundDiv[T constraints.Unsigned](n, d T) T {
	if d == 0 {
		return 0
	}
	return (n + d/2) / d
}

// Rescale maps x from [0, span] onto [0, top]. x beyond span gives top.
func Rescale(x, span, top uint16) uint16 {
	if span == 0 {
		return 0
	}
	x = min(x, span)
	return uint16(RoundDiv(uint32(x)*uint32(top), uint32(span)))
}

// ScaleByte maps a colour channel 0..255 onto 0..top.
func ScaleByte(b uint8, top uint16) uint16 { return Rescale(uint16(b), 255, top) }

// Percent maps 0..100 onto 0..top.
func Percent(p uint8, top uint16) uint16 { return Rescale(uint16(p), 100, top) }
