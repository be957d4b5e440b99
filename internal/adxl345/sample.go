package adxl345

import (
	"encoding/binary"
	"fmt"
)

// SampleSize is the wire size of one triaxial sample (DATAX0..DATAZ1).
const SampleSize = 6

// AxisSize is the wire size of a single-axis reading.
const AxisSize = 2

// Axis selects one of the three measurement axes.
type Axis int32

const (
	AxisX Axis = 0
	AxisY Axis = 1
	AxisZ Axis = 2
)

// Valid reports whether a is X, Y or Z.
func (a Axis) Valid() bool {
	return a >= AxisX && a <= AxisZ
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", int32(a))
}

// Sample is one triaxial reading in raw counts.
type Sample struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// DecodeSample decodes a 6-byte DATAX0..DATAZ1 burst (little-endian).
func DecodeSample(b []byte) Sample {
	_ = b[5]
	return Sample{
		X: int16(binary.LittleEndian.Uint16(b[0:2])),
		Y: int16(binary.LittleEndian.Uint16(b[2:4])),
		Z: int16(binary.LittleEndian.Uint16(b[4:6])),
	}
}

// Put encodes s into b[0:6] in register order.
func (s Sample) Put(b []byte) {
	_ = b[5]
	binary.LittleEndian.PutUint16(b[0:2], uint16(s.X))
	binary.LittleEndian.PutUint16(b[2:4], uint16(s.Y))
	binary.LittleEndian.PutUint16(b[4:6], uint16(s.Z))
}

// Axis returns the reading for a.
func (s Sample) Axis(a Axis) int16 {
	switch a {
	case AxisY:
		return s.Y
	case AxisZ:
		return s.Z
	}
	return s.X
}

func (s Sample) String() string {
	return fmt.Sprintf("X:%d Y:%d Z:%d", s.X, s.Y, s.Z)
}

// CountsPerG is the scale of a raw count in the default 10-bit resolution
// for a ±rangeG setting: 1024 counts span the full range.
func CountsPerG(rangeG int) float64 {
	if rangeG <= 0 {
		rangeG = 2
	}
	return 512 / float64(rangeG)
}
