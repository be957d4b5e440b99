package irq

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// SoftLine is a Line driven from software. It models a level signal behind an
// edge detector: only a low-to-high change of the level raises an edge, and
// edges raised while nobody waits are latched (at most one).
type SoftLine struct {
	edges chan struct{}

	mu     sync.Mutex
	high   bool
	halt   chan struct{}
	halted bool
}

// NewSoftLine returns an idle SoftLine at low level.
func NewSoftLine() *SoftLine {
	return &SoftLine{
		edges: make(chan struct{}, 1),
		halt:  make(chan struct{}),
	}
}

// Trigger raises one edge without changing the level, like a short pulse.
func (l *SoftLine) Trigger() {
	select {
	case l.edges <- struct{}{}:
	default:
	}
}

// SetLevel drives the line. Going from low to high raises one edge.
func (l *SoftLine) SetLevel(high bool) {
	l.mu.Lock()
	rising := high && !l.high
	l.high = high
	l.mu.Unlock()
	if rising {
		l.Trigger()
	}
}

// Hold sets the level without raising an edge, like an input whose edge
// detection was armed after the signal had already risen.
func (l *SoftLine) Hold(high bool) {
	l.mu.Lock()
	l.high = high
	l.mu.Unlock()
}

// Read implements LevelReader.
func (l *SoftLine) Read() gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return gpio.Level(l.high)
}

// WaitForEdge implements Line.
func (l *SoftLine) WaitForEdge(timeout time.Duration) bool {
	l.mu.Lock()
	halt := l.halt
	l.mu.Unlock()

	var expired <-chan time.Time
	if timeout >= 0 {
		tm := time.NewTimer(timeout)
		defer tm.Stop()
		expired = tm.C
	}
	select {
	case <-l.edges:
		return true
	case <-halt:
		return false
	case <-expired:
		return false
	}
}

// Halt implements Line. Once halted the line stays halted.
func (l *SoftLine) Halt() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.halted {
		l.halted = true
		close(l.halt)
	}
	return nil
}

var _ LevelReader = (*SoftLine)(nil)
