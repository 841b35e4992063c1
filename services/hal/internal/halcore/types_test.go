package halcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdgeNames(t *testing.T) {
	for _, e := range []Edge{EdgeNone, EdgeRising, EdgeFalling, EdgeBoth} {
		assert.Equal(t, e, ParseEdge(e.String()))
	}
	assert.Equal(t, EdgeNone, ParseEdge("sideways"))
	assert.Equal(t, "none", Edge(9).String())
}

func TestPullNames(t *testing.T) {
	for _, p := range []Pull{PullNone, PullUp, PullDown} {
		assert.Equal(t, p, ParsePull(p.String()))
	}
	assert.Equal(t, PullNone, ParsePull(""))
	assert.Equal(t, "up", PullUp.String())
}
