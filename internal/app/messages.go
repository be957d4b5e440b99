package app

import (
	"time"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
	"github.com/relabs-tech/adxl345_driver/internal/orientation"
)

// SampleBatch is one blocking read worth of data from a device, as
// published on <TOPIC_SAMPLES>/<device> and streamed to websocket clients.
type SampleBatch struct {
	Type   string    `json:"type"` // always "samples"
	Device string    `json:"device"`
	Time   time.Time `json:"time"`
	Mode   string    `json:"mode"`
	// Triaxial mode.
	Samples []adxl345.Sample `json:"samples,omitempty"`
	// Single-axis mode.
	Axis     string  `json:"axis,omitempty"`
	Readings []int16 `json:"readings,omitempty"`
}

// PoseMessage is the tilt derived from the mean of a triaxial batch,
// published on <TOPIC_POSE>/<device>.
type PoseMessage struct {
	Type   string            `json:"type"` // always "pose"
	Device string            `json:"device"`
	Time   time.Time         `json:"time"`
	Pose   orientation.Pose  `json:"pose"`
	Accel  orientation.Accel `json:"accel_g"`
}

// DeviceTopic returns the per-device topic under prefix.
func DeviceTopic(prefix, device string) string {
	return prefix + "/" + device
}

// poseFromBatch averages a triaxial batch into a pose message.
func poseFromBatch(b SampleBatch, rangeG int) PoseMessage {
	m := orientation.Mean(b.Samples)
	return PoseMessage{
		Type:   "pose",
		Device: b.Device,
		Time:   b.Time,
		Pose:   orientation.FromSample(m),
		Accel:  orientation.ToG(m, rangeG),
	}
}
