// Package lessons holds the Super Starter Kit lessons. Each lesson declares
// the HAL devices it needs, then drives them over the bus until its context
// ends or it finishes by itself.
package lessons

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"superkit-go/lessons/kit"
	"superkit-go/types"
	"superkit-go/x/timex"
)

// Lesson is one run of a lesson. Params returns a pointer to the lesson's
// parameters, filled with defaults, for config overrides to decode into.
type Lesson interface {
	Params() any
	Devices() []types.HALDevice
	Run(ctx context.Context, env *Env) error
}

// Cleaner is implemented by lessons that leave outputs in a known state
// once Run returns. The context is fresh; the run's context may be done.
type Cleaner interface {
	Cleanup(ctx context.Context, env *Env) error
}

type Entry struct {
	Name  string // e.g. "01_LED"
	Title string
	New   func() Lesson
}

var (
	regMu sync.RWMutex
	reg   = map[string]Entry{}
)

// Register adds a lesson; duplicate names panic.
func Register(e Entry) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := reg[e.Name]; dup {
		panic(fmt.Sprintf("lessons: duplicate lesson %q", e.Name))
	}
	reg[e.Name] = e
}

func Lookup(name string) (Entry, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	e, ok := reg[name]
	return e, ok
}

// All returns every lesson ordered by name.
func All() []Entry {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]Entry, 0, len(reg))
	for _, e := range reg {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Env is what a running lesson gets to work with.
type Env struct {
	Kit   *kit.Client
	Out   io.Writer // narration, normally stdout
	Log   zerolog.Logger
	Model string
	Rand  *rand.Rand
}

// Say writes one line of narration.
func (e *Env) Say(format string, args ...any) {
	fmt.Fprintf(e.Out, format+"\n", args...)
}

// Sleep waits ms milliseconds; false means the lesson should stop.
func (e *Env) Sleep(ctx context.Context, ms uint32) bool {
	return timex.Sleep(ctx, time.Duration(ms)*time.Millisecond)
}
