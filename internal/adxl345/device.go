// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package adxl345 implements the acquisition core of an ADXL345 accelerometer
// driven by its FIFO watermark interrupt.
//
// The interrupt handler drains the hardware FIFO into a bounded ring buffer
// and wakes blocked readers. Readers pop whole samples from the ring buffer;
// there is no synchronous register read on the read path.
package adxl345

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/adxl345_driver/internal/chardev"
	"github.com/relabs-tech/adxl345_driver/internal/metrics"
	"github.com/relabs-tech/adxl345_driver/internal/ring"
)

var (
	// ErrInvalidArgument is returned for out-of-range control arguments and
	// for reads too small for the configured mode. Device state is unchanged.
	ErrInvalidArgument = errors.New("adxl345: invalid argument")
	// ErrInterrupted is returned when a blocked read is cancelled.
	ErrInterrupted = errors.New("adxl345: interrupted")
	// ErrUnsupportedCommand is returned for unknown control commands.
	ErrUnsupportedCommand = errors.New("adxl345: unsupported command")
)

// Control commands.
const (
	CmdSetAxis     chardev.Command = 0x4101
	CmdSetReadMode chardev.Command = 0x4102
)

// RingCapacity is the number of samples buffered between the interrupt
// handler and readers.
const RingCapacity = 64

// ReadMode selects what Read returns.
type ReadMode int32

const (
	// ModeTriaxial returns whole 6-byte X,Y,Z samples.
	ModeTriaxial ReadMode = 0
	// ModeSingleAxis returns the 2-byte reading of the selected axis per sample.
	ModeSingleAxis ReadMode = 1
)

func (m ReadMode) String() string {
	switch m {
	case ModeTriaxial:
		return "triaxial"
	case ModeSingleAxis:
		return "axis"
	}
	return fmt.Sprintf("mode(%d)", int32(m))
}

// ParseReadMode maps "triaxial" or "axis" to a ReadMode.
func ParseReadMode(s string) (ReadMode, error) {
	switch s {
	case "", "triaxial":
		return ModeTriaxial, nil
	case "axis", "single_axis":
		return ModeSingleAxis, nil
	}
	return 0, fmt.Errorf("%w: read mode %q", ErrInvalidArgument, s)
}

// Bus is the register protocol the device needs. *regbus.Client implements it.
type Bus interface {
	RegisterReader
	RegisterWriter
	ReadBurstInto(start byte, buf []byte) error
}

// Options configure a Device.
type Options struct {
	Mode         ReadMode
	Axis         Axis
	RingCapacity int
}

// Stats is a snapshot of device counters.
type Stats struct {
	Name       string `json:"name"`
	Axis       string `json:"axis"`
	Mode       string `json:"mode"`
	Queued     int    `json:"queued"`
	Capacity   int    `json:"capacity"`
	Interrupts uint64 `json:"interrupts"`
	Pushed     uint64 `json:"pushed"`
	Dropped    uint64 `json:"dropped"`
	BusErrors  uint64 `json:"bus_errors"`
	Reads      uint64 `json:"reads"`
	Gone       bool   `json:"gone"`
}

// Device is one attached sensor.
type Device struct {
	name string
	bus  Bus

	axis atomic.Int32
	mode atomic.Int32

	// mu guards ring, wake and gone.
	mu      sync.Mutex
	ring    *ring.Buffer[Sample]
	wake    chan struct{}
	gone    bool
	readers sync.WaitGroup

	// Owned by the interrupt handler.
	scratch [SampleSize]byte

	interrupts atomic.Uint64
	pushed     atomic.Uint64
	busErrors  atomic.Uint64
	reads      atomic.Uint64

	mInterrupts prometheus.Counter
	mPushed     prometheus.Counter
	mDropped    prometheus.Counter
	mBusErrors  prometheus.Counter
	mQueued     prometheus.Gauge
}

// New allocates a device on bus. It does not touch the hardware.
func New(name string, bus Bus, opts Options) *Device {
	capacity := opts.RingCapacity
	if capacity <= 0 {
		capacity = RingCapacity
	}
	d := &Device{
		name:        name,
		bus:         bus,
		ring:        ring.New[Sample](capacity),
		wake:        make(chan struct{}),
		mInterrupts: metrics.Interrupts.WithLabelValues(name),
		mPushed:     metrics.SamplesPushed.WithLabelValues(name),
		mDropped:    metrics.SamplesDropped.WithLabelValues(name),
		mBusErrors:  metrics.BusErrors.WithLabelValues(name),
		mQueued:     metrics.Queued.WithLabelValues(name),
	}
	if opts.Axis.Valid() {
		d.axis.Store(int32(opts.Axis))
	}
	d.mode.Store(int32(opts.Mode))
	return d
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Axis returns the selected axis.
func (d *Device) Axis() Axis { return Axis(d.axis.Load()) }

// Mode returns the read mode.
func (d *Device) Mode() ReadMode { return ReadMode(d.mode.Load()) }

// SetAxis selects the axis returned in single-axis mode. Values other than
// 0, 1 and 2 are rejected and leave the previous axis in place.
func (d *Device) SetAxis(a Axis) error {
	if !a.Valid() {
		return fmt.Errorf("%w: axis %d", ErrInvalidArgument, int32(a))
	}
	d.axis.Store(int32(a))
	return nil
}

// SetReadMode switches between triaxial and single-axis reads.
func (d *Device) SetReadMode(m ReadMode) error {
	if m != ModeTriaxial && m != ModeSingleAxis {
		return fmt.Errorf("%w: read mode %d", ErrInvalidArgument, int32(m))
	}
	d.mode.Store(int32(m))
	return nil
}

// Control implements chardev.Device.
func (d *Device) Control(cmd chardev.Command, arg int) error {
	switch cmd {
	case CmdSetAxis:
		return d.SetAxis(Axis(arg))
	case CmdSetReadMode:
		return d.SetReadMode(ReadMode(arg))
	}
	return fmt.Errorf("%w: 0x%X", ErrUnsupportedCommand, uint32(cmd))
}

// Read blocks until samples are queued and copies as many whole samples as
// fit in p. It returns (0, io.EOF) once the device is torn down and wraps
// ErrInterrupted when ctx is cancelled while waiting.
//
// In triaxial mode each sample takes 6 bytes and p must hold at least one. In
// single-axis mode each sample yields the 2-byte reading of the selected axis;
// a 1-byte read returns only the most significant byte of one reading.
func (d *Device) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	mode := d.Mode()
	var want int
	switch mode {
	case ModeSingleAxis:
		want = len(p) / AxisSize
		if want == 0 {
			want = 1
		}
	default:
		if len(p) < SampleSize {
			return 0, fmt.Errorf("%w: %d-byte read is smaller than one %d-byte sample", ErrInvalidArgument, len(p), SampleSize)
		}
		want = len(p) / SampleSize
	}

	d.mu.Lock()
	if d.gone {
		d.mu.Unlock()
		return 0, io.EOF
	}
	d.readers.Add(1)
	defer d.readers.Done()

	for d.ring.IsEmpty() {
		wake := d.wake
		d.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}
		d.mu.Lock()
		if d.gone {
			d.mu.Unlock()
			return 0, io.EOF
		}
	}
	samples := make([]Sample, min(want, d.ring.Cap()))
	n := d.ring.PopUpTo(samples)
	queued := d.ring.Len()
	d.mu.Unlock()

	d.mQueued.Set(float64(queued))
	d.reads.Add(1)
	return encode(p, samples[:n], mode, d.Axis()), nil
}

func encode(p []byte, samples []Sample, mode ReadMode, axis Axis) int {
	if mode == ModeSingleAxis {
		if len(p) == 1 {
			p[0] = byte(uint16(samples[0].Axis(axis)) >> 8)
			return 1
		}
		for i, s := range samples {
			binary.LittleEndian.PutUint16(p[i*AxisSize:], uint16(s.Axis(axis)))
		}
		return len(samples) * AxisSize
	}
	for i, s := range samples {
		s.Put(p[i*SampleSize:])
	}
	return len(samples) * SampleSize
}

// Teardown marks the device gone, releases every blocked reader with io.EOF
// and waits until no reader is left inside Read.
func (d *Device) Teardown() {
	d.mu.Lock()
	if d.gone {
		d.mu.Unlock()
		return
	}
	d.gone = true
	close(d.wake)
	d.mu.Unlock()

	d.readers.Wait()
}

// Gone reports whether Teardown has run.
func (d *Device) Gone() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gone
}

// wakeAll releases every reader blocked in Read.
func (d *Device) wakeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gone {
		return
	}
	close(d.wake)
	d.wake = make(chan struct{})
}

// ReadRegister reads one register through the device's bus client. The
// client serialises it against the interrupt handler's transactions.
func (d *Device) ReadRegister(reg byte) (byte, error) {
	return d.bus.ReadRegister(reg)
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	queued, capacity, dropped, gone := d.ring.Len(), d.ring.Cap(), d.ring.Dropped(), d.gone
	d.mu.Unlock()
	return Stats{
		Name:       d.name,
		Axis:       d.Axis().String(),
		Mode:       d.Mode().String(),
		Queued:     queued,
		Capacity:   capacity,
		Interrupts: d.interrupts.Load(),
		Pushed:     d.pushed.Load(),
		Dropped:    dropped,
		BusErrors:  d.busErrors.Load(),
		Reads:      d.reads.Load(),
		Gone:       gone,
	}
}

var _ chardev.Device = (*Device)(nil)
