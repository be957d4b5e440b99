package adxl345

import (
	"fmt"
	"math"
)

// OffsetMilliGPerLSB is the scale of OFSX, OFSY and OFSZ.
const OffsetMilliGPerLSB = 15.6

// Offsets are the signed trim values of OFSX, OFSY and OFSZ. They are added
// to every converted sample.
type Offsets struct {
	X int8 `json:"x"`
	Y int8 `json:"y"`
	Z int8 `json:"z"`
}

// OffsetsForBias returns the trim that cancels a bias given in raw counts at
// ±rangeG.
func OffsetsForBias(bx, by, bz float64, rangeG int) Offsets {
	mgPerCount := 1000 / CountsPerG(rangeG)
	conv := func(b float64) int8 {
		v := math.Round(-b * mgPerCount / OffsetMilliGPerLSB)
		return int8(math.Max(math.MinInt8, math.Min(math.MaxInt8, v)))
	}
	return Offsets{X: conv(bx), Y: conv(by), Z: conv(bz)}
}

// Add returns o+d per axis, saturating at the int8 limits.
func (o Offsets) Add(d Offsets) Offsets {
	sat := func(a, b int8) int8 {
		v := int(a) + int(b)
		if v > math.MaxInt8 {
			return math.MaxInt8
		}
		if v < math.MinInt8 {
			return math.MinInt8
		}
		return int8(v)
	}
	return Offsets{X: sat(o.X, d.X), Y: sat(o.Y, d.Y), Z: sat(o.Z, d.Z)}
}

// ReadOffsets reads the current trim.
func ReadOffsets(r RegisterReader) (Offsets, error) {
	var v [3]byte
	for i, reg := range []byte{RegOfsX, RegOfsY, RegOfsZ} {
		b, err := r.ReadRegister(reg)
		if err != nil {
			return Offsets{}, fmt.Errorf("adxl345: read offset 0x%02X: %w", reg, err)
		}
		v[i] = b
	}
	return Offsets{X: int8(v[0]), Y: int8(v[1]), Z: int8(v[2])}, nil
}

// WriteOffsets writes OFSX, OFSY and OFSZ in order.
func WriteOffsets(w RegisterWriter, o Offsets) error {
	for _, wr := range []Write{{RegOfsX, byte(o.X)}, {RegOfsY, byte(o.Y)}, {RegOfsZ, byte(o.Z)}} {
		if err := w.WriteRegister(wr.Reg, wr.Value); err != nil {
			return fmt.Errorf("adxl345: write offset 0x%02X: %w", wr.Reg, err)
		}
	}
	return nil
}

// AdjustOffsets adds delta to the device's current trim and returns the
// trim now in effect.
func (d *Device) AdjustOffsets(delta Offsets) (Offsets, error) {
	cur, err := ReadOffsets(d.bus)
	if err != nil {
		return Offsets{}, err
	}
	next := cur.Add(delta)
	if err := WriteOffsets(d.bus, next); err != nil {
		return Offsets{}, err
	}
	return next, nil
}
