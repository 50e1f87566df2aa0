package testutil

import (
	"strconv"
	"sync"
	"time"

	"fim-go/internal/fim"
)

// RunTime is the instant FixedClock starts at. It is later than BaseTime, so
// files written at BaseTime are never newer than the run that scans them.
var RunTime = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

var (
	_ fim.Clock       = (*StubClock)(nil)
	_ fim.IDGenerator = (*StubIDGenerator)(nil)
)

// StubClock is a run clock that only moves when a test moves it.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to RunTime.
func FixedClock() *StubClock {
	return NewStubClock(RunTime)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, so the next run starts later.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out run IDs "run-1", "run-2", ... and remembers them
// so tests can match history rows to the runs that produced them.
type StubIDGenerator struct {
	mu     sync.Mutex
	prefix string
	issued []string
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{prefix: "run-"}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.prefix + strconv.Itoa(len(g.issued)+1)
	g.issued = append(g.issued, id)
	return id
}

// Issued returns the IDs handed out so far, oldest first.
func (g *StubIDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}
