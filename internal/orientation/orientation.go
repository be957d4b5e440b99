package orientation

import (
	"math"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
)

// Pose is the tilt of the sensor relative to gravity, in degrees.
// An accelerometer alone cannot observe heading, so there is no yaw.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// Accel is an acceleration in g.
type Accel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the norm of a in g.
func (a Accel) Magnitude() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// ToG converts a raw sample taken at ±rangeG to g.
func ToG(s adxl345.Sample, rangeG int) Accel {
	k := adxl345.CountsPerG(rangeG)
	return Accel{X: float64(s.X) / k, Y: float64(s.Y) / k, Z: float64(s.Z) / k}
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// FromSample computes the tilt of a raw sample. Only ratios matter, so the
// range setting is irrelevant.
func FromSample(s adxl345.Sample) Pose {
	return ComputePoseFromAccel(float64(s.X), float64(s.Y), float64(s.Z))
}

// Mean averages a batch of samples, which smooths the tilt estimate of a
// drained FIFO. It returns the zero sample for an empty batch.
func Mean(batch []adxl345.Sample) adxl345.Sample {
	if len(batch) == 0 {
		return adxl345.Sample{}
	}
	var x, y, z int
	for _, s := range batch {
		x += int(s.X)
		y += int(s.Y)
		z += int(s.Z)
	}
	n := len(batch)
	return adxl345.Sample{X: int16(x / n), Y: int16(y / n), Z: int16(z / n)}
}
