// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
)

const (
	defaultCalibrationSamples = 100
	maxCalibrationSamples     = 2000
)

// CalibrationResult is the outcome of a rest calibration. Bias and standard
// deviation are in raw counts.
type CalibrationResult struct {
	Version   int       `json:"version"`
	Device    string    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
	Samples   int       `json:"samples"`

	BiasX float64 `json:"bias_x"`
	BiasY float64 `json:"bias_y"`
	BiasZ float64 `json:"bias_z"`

	StdDevX float64 `json:"stddev_x"`
	StdDevY float64 `json:"stddev_y"`
	StdDevZ float64 `json:"stddev_z"`

	// Confidence drops with noise: 100 / (1 + mean stddev in g * 100).
	Confidence float64 `json:"confidence"`

	// Delta is the trim change derived from the bias; Offsets is the trim in
	// effect after applying it.
	Delta   adxl345.Offsets `json:"delta"`
	Offsets adxl345.Offsets `json:"offsets"`
}

// calibration collects triaxial samples of one device lying flat, Z up.
type calibration struct {
	client  *wsClient
	want    int
	samples [][3]float64
}

// CalibrationResponse is sent when a calibration finishes.
type CalibrationResponse struct {
	Type    string             `json:"type"` // "calibration"
	Result  *CalibrationResult `json:"result,omitempty"`
	Message string             `json:"message,omitempty"`
}

func (s *Server) handleCalibrate(c *wsClient, cmd ControlCmd) ControlResponse {
	if cmd.Device == "" {
		return errorResponse("missing device field")
	}
	dev, err := s.devices.Device(cmd.Device)
	if err != nil {
		return errorResponse(err.Error())
	}
	if dev.Mode() != adxl345.ModeTriaxial {
		return errorResponse("calibration needs triaxial read mode")
	}
	n := cmd.Samples
	if n <= 0 {
		n = defaultCalibrationSamples
	}
	if n > maxCalibrationSamples {
		n = maxCalibrationSamples
	}

	s.calMu.Lock()
	defer s.calMu.Unlock()
	if _, busy := s.cals[cmd.Device]; busy {
		return errorResponse(fmt.Sprintf("%s is already calibrating", cmd.Device))
	}
	s.cals[cmd.Device] = &calibration{client: c, want: n, samples: make([][3]float64, 0, n)}
	log.Printf("calibration: %s: collecting %d samples", cmd.Device, n)
	return ControlResponse{Type: "status", Device: cmd.Device, Message: fmt.Sprintf("calibrating, keep the sensor flat for %d samples", n)}
}

// Observe feeds a batch to a running calibration of its device.
func (s *Server) Observe(b SampleBatch) {
	if len(b.Samples) == 0 {
		return
	}
	s.calMu.Lock()
	cal, ok := s.cals[b.Device]
	if !ok {
		s.calMu.Unlock()
		return
	}
	for _, smp := range b.Samples {
		if len(cal.samples) == cal.want {
			break
		}
		cal.samples = append(cal.samples, [3]float64{float64(smp.X), float64(smp.Y), float64(smp.Z)})
	}
	if len(cal.samples) < cal.want {
		s.calMu.Unlock()
		return
	}
	delete(s.cals, b.Device)
	s.calMu.Unlock()

	go s.finishCalibration(b.Device, cal)
}

func (s *Server) finishCalibration(device string, cal *calibration) {
	res := computeCalibration(device, cal.samples, s.rangeG)
	resp := CalibrationResponse{Type: "calibration"}

	dev, err := s.devices.Device(device)
	if err == nil {
		res.Offsets, err = dev.AdjustOffsets(res.Delta)
	}
	if err != nil {
		log.Printf("calibration: %s: apply offsets: %v", device, err)
		resp.Message = fmt.Sprintf("apply offsets: %v", err)
	} else {
		log.Printf("calibration: %s: bias %.1f/%.1f/%.1f counts, offsets now %+v (confidence %.0f%%)",
			device, res.BiasX, res.BiasY, res.BiasZ, res.Offsets, res.Confidence)
	}
	resp.Result = &res
	s.hub.reply(cal.client, resp)
}

// computeCalibration derives bias and trim from samples taken flat with Z up,
// where the expected reading is (0, 0, +1 g).
func computeCalibration(device string, samples [][3]float64, rangeG int) CalibrationResult {
	oneG := adxl345.CountsPerG(rangeG)
	res := CalibrationResult{
		Version:   1,
		Device:    device,
		Timestamp: time.Now(),
		Samples:   len(samples),
		BiasX:     mean(samples, 0),
		BiasY:     mean(samples, 1),
		BiasZ:     mean(samples, 2) - oneG,
		StdDevX:   stddev(samples, 0),
		StdDevY:   stddev(samples, 1),
		StdDevZ:   stddev(samples, 2),
	}
	avgStdDevG := (res.StdDevX + res.StdDevY + res.StdDevZ) / 3 / oneG
	res.Confidence = 100.0 / (1.0 + avgStdDevG*100.0)
	res.Delta = adxl345.OffsetsForBias(res.BiasX, res.BiasY, res.BiasZ, rangeG)
	return res
}

// Helper functions for statistics
func mean(data [][3]float64, axis int) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v[axis]
	}
	return sum / float64(len(data))
}

func stddev(data [][3]float64, axis int) float64 {
	if len(data) == 0 {
		return 0
	}
	m := mean(data, axis)
	variance := 0.0
	for _, v := range data {
		diff := v[axis] - m
		variance += diff * diff
	}
	variance /= float64(len(data))
	return math.Sqrt(variance)
}
