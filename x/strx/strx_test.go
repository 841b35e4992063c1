package strx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "io", Coalesce("", "io"))
	assert.Equal(t, "power", Coalesce("power", "io"))
}

func TestFit(t *testing.T) {
	assert.Equal(t, "abc  ", Fit("abc", 5))
	assert.Equal(t, "abcde", Fit("abcdefgh", 5))
	assert.Equal(t, "", Fit("abc", 0))
}

func TestLines(t *testing.T) {
	assert.Equal(t, []string{" LCD 1602 Test ", "123456789ABCDEF"}, Lines(" LCD 1602 Test \n123456789ABCDEF", 2))
	assert.Equal(t, []string{"a", "b"}, Lines("a\nb\nc", 2))
	assert.Equal(t, []string{"only"}, Lines("only", 2))
}
