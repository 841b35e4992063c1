package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(5, 0, 10))
	assert.Equal(t, 0, Clamp(-3, 0, 10))
	assert.Equal(t, 10, Clamp(42, 10, 0))
	assert.Equal(t, int32(7), Clamp(int32(7), 10, 0))
}

func TestRoundDiv(t *testing.T) {
	assert.Equal(t, uint32(3), RoundDiv(uint32(5), 2))
	assert.Equal(t, uint32(2), RoundDiv(uint32(7), 3))
	assert.Equal(t, uint32(0), RoundDiv(uint32(7), 0))
}

func TestRescale(t *testing.T) {
	cases := []struct {
		name         string
		x, span, top uint16
		want         uint16
	}{
		{"zero", 0, 255, 1000, 0},
		{"full", 255, 255, 1000, 1000},
		{"half byte", 0x7F, 255, 1000, 498},
		{"quarter byte", 0x3F, 255, 1000, 247},
		{"four percent", 4, 100, 1000, 40},
		{"over span", 250, 100, 1000, 1000},
		{"empty span", 3, 0, 1000, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Rescale(tc.x, tc.span, tc.top), tc.name)
	}
	assert.Equal(t, uint16(1000), ScaleByte(0xFF, 1000))
	assert.Equal(t, uint16(500), Percent(50, 1000))
}
