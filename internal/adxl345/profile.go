// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adxl345

import (
	"errors"
	"fmt"
)

// ErrNotDevice is returned when DEVID does not read back as an ADXL345.
var ErrNotDevice = errors.New("adxl345: device ID does not match (0xE5)")

// RegisterWriter writes single registers.
type RegisterWriter interface {
	WriteRegister(reg, value byte) error
}

// RegisterReader reads single registers.
type RegisterReader interface {
	ReadRegister(reg byte) (byte, error)
}

// Write is one step of a configuration profile.
type Write struct {
	Reg   byte
	Value byte
}

// Profile is an ordered list of register writes. It is applied in order and
// any failing write invalidates the whole profile.
type Profile []Write

// DefaultWatermark is the FIFO fill level that raises the watermark interrupt.
const DefaultWatermark = 20

var rateCodes = map[int]byte{
	25:   0x08,
	50:   0x09,
	100:  0x0A,
	200:  0x0B,
	400:  0x0C,
	800:  0x0D,
	1600: 0x0E,
	3200: 0x0F,
}

var rangeCodes = map[int]byte{
	2:  0x00,
	4:  0x01,
	8:  0x02,
	16: 0x03,
}

// DefaultProfile is 100 Hz, watermark interrupt only, ±2g, stream mode with a
// watermark of 20 samples, then measurement enabled.
func DefaultProfile() Profile {
	p, _ := NewProfile(100, 2, DefaultWatermark)
	return p
}

// NewProfile builds the five-write profile for the given output data rate,
// range and watermark. POWER_CTL is always written last: interrupts and FIFO
// mode must be armed before measurement starts.
func NewProfile(rateHz, rangeG, watermark int) (Profile, error) {
	rate, ok := rateCodes[rateHz]
	if !ok {
		return nil, fmt.Errorf("adxl345: unsupported data rate %d Hz", rateHz)
	}
	rng, ok := rangeCodes[rangeG]
	if !ok {
		return nil, fmt.Errorf("adxl345: unsupported range ±%dg", rangeG)
	}
	if watermark < 1 || watermark > 31 {
		return nil, fmt.Errorf("adxl345: watermark %d out of range 1-31", watermark)
	}
	return Profile{
		{Reg: RegBWRate, Value: rate},
		{Reg: RegIntEnable, Value: IntWatermark},
		{Reg: RegDataFormat, Value: rng},
		{Reg: RegFIFOCtl, Value: FIFOStream | byte(watermark)},
		{Reg: RegPowerCtl, Value: PowerMeasure},
	}, nil
}

// ConfigurationError reports the profile step that failed (1-indexed).
type ConfigurationError struct {
	Step int
	Reg  byte
	Err  error
}

func (e *ConfigurationError) Error() string {
	name := RegisterName(e.Reg)
	if name == "" {
		name = fmt.Sprintf("0x%02X", e.Reg)
	}
	return fmt.Sprintf("adxl345: configure step %d (%s): %v", e.Step, name, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// CheckID checks that the device answers with the ADXL345 device ID.
func CheckID(r RegisterReader) error {
	id, err := r.ReadRegister(RegDevID)
	if err != nil {
		return fmt.Errorf("adxl345: read device ID: %w", err)
	}
	if id != DeviceID {
		return fmt.Errorf("%w: got 0x%02X", ErrNotDevice, id)
	}
	return nil
}

// Apply writes p in order and stops at the first failure. Writes after the
// failing one are never issued.
func Apply(w RegisterWriter, p Profile) error {
	for i, step := range p {
		if err := w.WriteRegister(step.Reg, step.Value); err != nil {
			return &ConfigurationError{Step: i + 1, Reg: step.Reg, Err: err}
		}
	}
	return nil
}

// Standby takes the sensor out of measurement mode.
func Standby(w RegisterWriter) error {
	if err := w.WriteRegister(RegPowerCtl, PowerStandby); err != nil {
		return fmt.Errorf("adxl345: standby: %w", err)
	}
	return nil
}
