// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package irq runs interrupt handlers on dedicated goroutines.
//
// A handler bound with Request runs on its own goroutine once per edge seen on
// the line. That goroutine may block (bus transactions are allowed), like a
// threaded interrupt handler.
//
// Lines that also report their level are treated as level-triggered sources
// seen through an edge detector: while the level stays high after the handler
// returns, or is already high when the thread starts, the handler runs again
// without waiting for an edge that will never come.
package irq

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Line is an interrupt source. periph's gpio.PinIn satisfies it.
type Line interface {
	// WaitForEdge blocks until an edge is seen, the timeout expires or Halt is
	// called. A negative timeout waits forever.
	WaitForEdge(timeout time.Duration) bool
	// Halt unblocks a pending WaitForEdge.
	Halt() error
}

// LevelReader is implemented by lines that can report their current level.
// periph's gpio.PinIn satisfies it.
type LevelReader interface {
	Read() gpio.Level
}

// Re-check period while a level-reporting line stays asserted without a new
// edge. It doubles after every failed handler call and resets after one that
// succeeded.
const (
	minLevelPoll = 5 * time.Millisecond
	maxLevelPoll = 500 * time.Millisecond
)

// Handler services one interrupt. It reports false when it could not do its
// work, for example because a bus transaction failed.
type Handler func() bool

// Thread is a handler bound to a Line.
type Thread struct {
	name    string
	line    Line
	handler Handler

	stopping atomic.Bool
	count    atomic.Uint64
	done     chan struct{}
	once     sync.Once
}

// Request starts a goroutine that calls handler once per edge on line.
func Request(line Line, name string, handler Handler) *Thread {
	t := &Thread{
		name:    name,
		line:    line,
		handler: handler,
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Thread) run() {
	defer close(t.done)

	wait := time.Duration(-1)
	if _, ok := t.line.(LevelReader); ok {
		wait = 0
	}
	poll := minLevelPoll
	for {
		edge := t.line.WaitForEdge(wait)
		if t.stopping.Load() {
			return
		}
		if !edge && !t.asserted() {
			wait, poll = -1, minLevelPoll
			continue
		}
		t.count.Add(1)
		ok := t.handler()

		switch {
		case !t.asserted():
			wait, poll = -1, minLevelPoll
		case ok:
			wait, poll = 0, minLevelPoll
		default:
			wait = poll
			if poll < maxLevelPoll {
				poll *= 2
			}
		}
	}
}

// asserted reports whether the line is still high. Lines that cannot report
// their level are never considered asserted.
func (t *Thread) asserted() bool {
	lr, ok := t.line.(LevelReader)
	return ok && lr.Read() == gpio.High
}

// Count returns how many times the handler has been invoked.
func (t *Thread) Count() uint64 {
	return t.count.Load()
}

// Free stops the thread and waits for an in-flight handler to return. The
// handler is never invoked after Free returns.
func (t *Thread) Free() {
	t.once.Do(func() {
		t.stopping.Store(true)
		if err := t.line.Halt(); err != nil {
			log.Printf("irq: %s: halt: %v", t.name, err)
		}
		<-t.done
	})
}

// OpenGPIO configures the named GPIO as an input that reports edges.
func OpenGPIO(name string, edge gpio.Edge) (gpio.PinIn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("irq pin %q not found", name)
	}
	if err := p.In(gpio.PullDown, edge); err != nil {
		return nil, fmt.Errorf("irq pin %s: configure input: %w", name, err)
	}
	return p, nil
}

// ParseEdge maps "rising", "falling" or "both" to a gpio.Edge.
func ParseEdge(s string) (gpio.Edge, error) {
	switch s {
	case "", "rising":
		return gpio.RisingEdge, nil
	case "falling":
		return gpio.FallingEdge, nil
	case "both":
		return gpio.BothEdges, nil
	}
	return gpio.NoEdge, fmt.Errorf("unknown edge %q", s)
}
