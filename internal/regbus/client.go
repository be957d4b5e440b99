// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package regbus issues register transactions against a sensor that sits on a
// register-addressed serial bus.
//
// The target does not support a combined address+read frame, so every read is
// two transactions: a 1-byte address-select write, then an n-byte read.
package regbus

import (
	"errors"
	"fmt"
	"sync"
)

// ErrShortTransfer is wrapped by BusError when a transaction moved fewer (or
// more) bytes than requested.
var ErrShortTransfer = errors.New("short transfer")

// Transport is one bus endpoint (one slave address on one bus).
// Read and Write each perform exactly one bus transaction.
type Transport interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
}

// BusError describes a failed bus transaction.
type BusError struct {
	Op   string // "write", "select" or "read"
	Reg  byte
	Want int
	Got  int
	Err  error
}

func (e *BusError) Error() string {
	if errors.Is(e.Err, ErrShortTransfer) {
		return fmt.Sprintf("regbus: %s reg 0x%02X: %v (want %d bytes, got %d)", e.Op, e.Reg, e.Err, e.Want, e.Got)
	}
	return fmt.Sprintf("regbus: %s reg 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// Client serialises register transactions on a Transport. The address-select
// write and the following read must never interleave with another caller's
// transaction, so every operation holds the client lock for its whole duration.
type Client struct {
	mu  sync.Mutex
	tr  Transport
	sel [1]byte
	wr  [2]byte
}

// NewClient wraps tr.
func NewClient(tr Transport) *Client {
	return &Client{tr: tr}
}

// Transport returns the underlying transport.
func (c *Client) Transport() Transport {
	return c.tr
}

// WriteRegister writes value to reg in a single 2-byte transaction.
func (c *Client) WriteRegister(reg, value byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wr[0], c.wr[1] = reg, value
	n, err := c.tr.Write(c.wr[:])
	if err != nil {
		return &BusError{Op: "write", Reg: reg, Want: 2, Got: n, Err: err}
	}
	if n != 2 {
		return &BusError{Op: "write", Reg: reg, Want: 2, Got: n, Err: ErrShortTransfer}
	}
	return nil
}

// ReadRegister reads a single register.
func (c *Client) ReadRegister(reg byte) (byte, error) {
	var b [1]byte
	if err := c.ReadBurstInto(reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBurst reads n consecutive registers starting at start.
func (c *Client) ReadBurst(start byte, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := c.ReadBurstInto(start, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBurstInto reads len(buf) consecutive registers starting at start into
// buf. It does not allocate.
func (c *Client) ReadBurstInto(start byte, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sel[0] = start
	n, err := c.tr.Write(c.sel[:])
	if err != nil {
		return &BusError{Op: "select", Reg: start, Want: 1, Got: n, Err: err}
	}
	if n != 1 {
		return &BusError{Op: "select", Reg: start, Want: 1, Got: n, Err: ErrShortTransfer}
	}

	n, err = c.tr.Read(buf)
	if err != nil {
		return &BusError{Op: "read", Reg: start, Want: len(buf), Got: n, Err: err}
	}
	if n != len(buf) {
		return &BusError{Op: "read", Reg: start, Want: len(buf), Got: n, Err: ErrShortTransfer}
	}
	return nil
}
