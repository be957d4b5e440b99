// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim emulates an ADXL345 behind a register transport, including its
// 32-entry FIFO and watermark interrupt, with fault injection for tests.
package sim

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
	"github.com/relabs-tech/adxl345_driver/internal/irq"
)

// ErrInjected is returned by transactions failed on purpose.
var ErrInjected = errors.New("sim: injected bus fault")

// Sensor is a simulated ADXL345. It implements regbus.Transport.
type Sensor struct {
	mu       sync.Mutex
	regs     [0x40]byte
	sel      byte
	fifo     []adxl345.Sample
	line     *irq.SoftLine
	writes   []adxl345.Write
	overruns int
	closed   bool

	writeCount     int
	failWriteAt    int
	dataReads      int
	failDataAfter  int
	shortReads     bool
	failStatusRead bool

	rng   *rand.Rand
	phase float64
}

// New returns a sensor in its power-on state.
func New() *Sensor {
	s := &Sensor{
		fifo:          make([]adxl345.Sample, 0, adxl345.FIFODepth),
		failDataAfter: -1,
		rng:           rand.New(rand.NewSource(1)),
	}
	s.regs[adxl345.RegDevID] = adxl345.DeviceID
	s.regs[adxl345.RegBWRate] = 0x0A
	s.regs[adxl345.RegIntSource] = 0x02
	return s
}

// Seed reseeds the noise generator used by Run.
func (s *Sensor) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// AttachLine connects the INT1 pin to line. The line takes the current INT1
// level without an edge, as a GPIO armed while the pin is already high would.
func (s *Sensor) AttachLine(line *irq.SoftLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.line = line
	line.Hold(s.int1Locked())
}

// FailWriteAt makes the k-th register write transaction (1-indexed, counted
// from now) fail. Zero disables it.
func (s *Sensor) FailWriteAt(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCount = 0
	s.failWriteAt = k
}

// FailDataReadsAfter lets n data bursts succeed, then fails every following
// one. A negative n disables it.
func (s *Sensor) FailDataReadsAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataReads = 0
	s.failDataAfter = n
}

// FailStatusReads makes FIFO_STATUS reads fail.
func (s *Sensor) FailStatusReads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatusRead = fail
}

// ShortReads makes every read transaction return one byte less than asked.
func (s *Sensor) ShortReads(short bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortReads = short
}

// Write implements regbus.Transport. A 1-byte write selects a register, a
// longer write stores values starting at b[0].
func (s *Sensor) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch len(b) {
	case 0:
		return 0, nil
	case 1:
		s.sel = b[0] & 0x3F
		return 1, nil
	}

	s.writeCount++
	if s.failWriteAt > 0 && s.writeCount == s.failWriteAt {
		return 0, ErrInjected
	}
	reg := b[0] & 0x3F
	for i, v := range b[1:] {
		r := (reg + byte(i)) & 0x3F
		s.writes = append(s.writes, adxl345.Write{Reg: r, Value: v})
		s.store(r, v)
	}
	s.driveLineLocked()
	return len(b), nil
}

func (s *Sensor) store(reg, v byte) {
	switch reg {
	case adxl345.RegDevID, adxl345.RegIntSource, adxl345.RegFIFOStatus:
		return
	case adxl345.RegFIFOCtl:
		if v&0xC0 == adxl345.FIFOBypass {
			s.fifo = s.fifo[:0]
		}
	}
	s.regs[reg] = v
}

// Read implements regbus.Transport. Reads auto-increment from the selected
// register; a read starting at DATAX0 pops the oldest FIFO entry.
func (s *Sensor) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.sel {
	case adxl345.RegDataX0:
		if s.failDataAfter >= 0 && s.dataReads >= s.failDataAfter {
			return 0, ErrInjected
		}
		s.dataReads++
		if len(s.fifo) > 0 {
			head := s.fifo[0]
			copy(s.fifo, s.fifo[1:])
			s.fifo = s.fifo[:len(s.fifo)-1]
			head.Put(s.regs[adxl345.RegDataX0 : adxl345.RegDataX0+adxl345.SampleSize])
		}
	case adxl345.RegFIFOStatus:
		if s.failStatusRead {
			return 0, ErrInjected
		}
	}
	s.regs[adxl345.RegFIFOStatus] = byte(len(s.fifo)) & adxl345.FIFOEntriesMask
	if s.watermarkLocked() {
		s.regs[adxl345.RegIntSource] |= adxl345.IntWatermark
	} else {
		s.regs[adxl345.RegIntSource] &^= adxl345.IntWatermark
	}

	s.driveLineLocked()

	n := len(b)
	if s.shortReads && n > 0 {
		n--
	}
	for i := 0; i < n; i++ {
		b[i] = s.regs[(int(s.sel)+i)&0x3F]
	}
	return n, nil
}

// Close implements io.Closer.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Sensor) String() string { return "sim" }

// Closed reports whether Close was called.
func (s *Sensor) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Push stores samples in the hardware FIFO as the converter would. In stream
// mode a full FIFO discards its oldest entry. INT1 follows the watermark
// interrupt: it is high while enabled and the fill level is at or above the
// watermark, so the attached line sees an edge only when it rises.
func (s *Sensor) Push(samples ...adxl345.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, smp := range samples {
		if len(s.fifo) == adxl345.FIFODepth {
			s.overruns++
			copy(s.fifo, s.fifo[1:])
			s.fifo = s.fifo[:len(s.fifo)-1]
		}
		s.fifo = append(s.fifo, smp)
	}
	s.driveLineLocked()
}

func (s *Sensor) watermarkLocked() bool {
	wm := int(s.regs[adxl345.RegFIFOCtl] & 0x1F)
	return wm > 0 && len(s.fifo) >= wm
}

// int1Locked is the INT1 level.
func (s *Sensor) int1Locked() bool {
	return s.watermarkLocked() && s.regs[adxl345.RegIntEnable]&adxl345.IntWatermark != 0
}

func (s *Sensor) driveLineLocked() {
	if s.line != nil {
		s.line.SetLevel(s.int1Locked())
	}
}

// INT1 reports the INT1 level.
func (s *Sensor) INT1() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.int1Locked()
}

// RaiseInterrupt pulses INT1 once regardless of the FIFO level.
func (s *Sensor) RaiseInterrupt() {
	s.mu.Lock()
	line := s.line
	s.mu.Unlock()
	if line != nil {
		line.Trigger()
	}
}

// Writes returns the register writes seen so far.
func (s *Sensor) Writes() []adxl345.Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adxl345.Write(nil), s.writes...)
}

// Register returns the stored value of reg.
func (s *Sensor) Register(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg&0x3F]
}

// Pending returns the number of samples in the hardware FIFO.
func (s *Sensor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fifo)
}

// Overruns returns how many FIFO entries were discarded.
func (s *Sensor) Overruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}

// Measuring reports whether POWER_CTL has the measure bit set.
func (s *Sensor) Measuring() bool {
	return s.Register(adxl345.RegPowerCtl)&adxl345.PowerMeasure != 0
}

// DataRate returns the output data rate selected in BW_RATE.
func (s *Sensor) DataRate() float64 {
	code := s.Register(adxl345.RegBWRate) & 0x0F
	return 3200 / math.Pow(2, float64(0x0F-code))
}

// Run converts a sample every output-data-rate period while the sensor is
// measuring, until ctx is done. The signal is 1 g on Z with a slow tilt and
// a little noise.
func (s *Sensor) Run(ctx context.Context) {
	for {
		period := time.Duration(float64(time.Second) / s.DataRate())
		select {
		case <-ctx.Done():
			return
		case <-time.After(period):
		}
		if !s.Measuring() {
			continue
		}
		s.Push(s.next())
	}
}

func (s *Sensor) next() adxl345.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	const oneG = 256.0 // counts per g at ±2g, 10-bit
	s.phase += 0.01
	roll := 0.3 * math.Sin(s.phase)
	noise := func() float64 { return s.rng.NormFloat64() * 2 }
	return adxl345.Sample{
		X: int16(noise()),
		Y: int16(oneG*math.Sin(roll) + noise()),
		Z: int16(oneG*math.Cos(roll) + noise()),
	}
}
