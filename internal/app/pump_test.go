package app

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
)

// scriptedFile returns one scripted result per Read and io.EOF afterwards.
type scriptedFile struct {
	reads  [][]byte
	errs   []error
	before func(i int) // runs before read i
	i      int
}

func (f *scriptedFile) Name() string { return "adxl345-0" }

func (f *scriptedFile) Read(_ context.Context, p []byte) (int, error) {
	if f.before != nil {
		f.before(f.i)
	}
	if f.i >= len(f.reads) {
		return 0, io.EOF
	}
	i := f.i
	f.i++
	if f.errs != nil && f.errs[i] != nil {
		return 0, f.errs[i]
	}
	return copy(p, f.reads[i]), nil
}

type fixedMode struct {
	mode adxl345.ReadMode
	axis adxl345.Axis
}

func (m *fixedMode) Mode() adxl345.ReadMode { return m.mode }
func (m *fixedMode) Axis() adxl345.Axis     { return m.axis }

func TestDecodeBatch(t *testing.T) {
	now := time.Now()
	raw := []byte{0x02, 0x01, 0xFC, 0xFC, 0x06, 0x05, 0x10, 0x00, 0x20, 0x00, 0x30, 0x00}

	b := decodeBatch("adxl345-0", now, raw, adxl345.ModeTriaxial, adxl345.AxisX)
	if b.Type != "samples" || b.Mode != "triaxial" || b.Device != "adxl345-0" {
		t.Fatalf("header = %+v", b)
	}
	want := []adxl345.Sample{{X: 0x0102, Y: -0x0304, Z: 0x0506}, {X: 0x10, Y: 0x20, Z: 0x30}}
	if len(b.Samples) != len(want) {
		t.Fatalf("samples = %v", b.Samples)
	}
	for i := range want {
		if b.Samples[i] != want[i] {
			t.Errorf("sample %d = %+v, want %+v", i, b.Samples[i], want[i])
		}
	}

	b = decodeBatch("adxl345-0", now, []byte{0x02, 0x01, 0xFF, 0xFF, 0x7F}, adxl345.ModeSingleAxis, adxl345.AxisZ)
	if b.Axis != "z" || len(b.Samples) != 0 {
		t.Fatalf("single axis batch = %+v", b)
	}
	if len(b.Readings) != 2 || b.Readings[0] != 0x0102 || b.Readings[1] != -1 {
		t.Errorf("readings = %v, want [258 -1]", b.Readings)
	}
}

func TestPumpEmitsUntilDeviceGone(t *testing.T) {
	f := &scriptedFile{reads: [][]byte{
		{1, 0, 2, 0, 3, 0},
		{4, 0, 5, 0, 6, 0, 7, 0, 8, 0, 9, 0},
	}}
	var got []SampleBatch
	err := pump(context.Background(), f, &fixedMode{mode: adxl345.ModeTriaxial}, 8, func(b SampleBatch) {
		got = append(got, b)
	})
	if err != nil {
		t.Fatalf("pump = %v, want nil on device gone", err)
	}
	if len(got) != 2 || len(got[0].Samples) != 1 || len(got[1].Samples) != 2 {
		t.Fatalf("batches = %+v", got)
	}
	if got[1].Samples[1] != (adxl345.Sample{X: 7, Y: 8, Z: 9}) {
		t.Errorf("last sample = %+v", got[1].Samples[1])
	}
}

func TestPumpDiscardsBatchAcrossModeChange(t *testing.T) {
	m := &fixedMode{mode: adxl345.ModeTriaxial}
	f := &scriptedFile{
		reads: [][]byte{{1, 0, 2, 0, 3, 0}, {0x34, 0x12}},
		before: func(i int) {
			if i == 0 {
				// Switched while the first read was in flight.
				m.mode, m.axis = adxl345.ModeSingleAxis, adxl345.AxisY
			}
		},
	}
	var got []SampleBatch
	if err := pump(context.Background(), f, m, 4, func(b SampleBatch) { got = append(got, b) }); err != nil {
		t.Fatalf("pump: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d batches, want 1", len(got))
	}
	if got[0].Mode != "axis" || got[0].Axis != "y" || len(got[0].Readings) != 1 || got[0].Readings[0] != 0x1234 {
		t.Errorf("batch = %+v", got[0])
	}
}

func TestPumpStopsOnInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &scriptedFile{reads: [][]byte{nil}, errs: []error{adxl345.ErrInterrupted}}
	err := pump(ctx, f, &fixedMode{}, 4, func(SampleBatch) { t.Error("unexpected batch") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("pump = %v, want context.Canceled", err)
	}
}

func TestPumpReportsReadErrors(t *testing.T) {
	f := &scriptedFile{reads: [][]byte{nil}, errs: []error{adxl345.ErrInvalidArgument}}
	err := pump(context.Background(), f, &fixedMode{}, 4, func(SampleBatch) {})
	if !errors.Is(err, adxl345.ErrInvalidArgument) {
		t.Errorf("pump = %v, want ErrInvalidArgument", err)
	}
}

func TestPoseFromBatch(t *testing.T) {
	b := SampleBatch{Device: "adxl345-1", Samples: []adxl345.Sample{{Z: 250}, {Z: 262}}}
	p := poseFromBatch(b, 2)
	if p.Type != "pose" || p.Device != "adxl345-1" {
		t.Fatalf("pose header = %+v", p)
	}
	if p.Pose.Roll != 0 || p.Pose.Pitch != 0 {
		t.Errorf("flat pose = %+v", p.Pose)
	}
	if p.Accel.Z != 1 {
		t.Errorf("Z = %v g, want 1", p.Accel.Z)
	}
	if got := DeviceTopic("adxl345/pose", p.Device); got != "adxl345/pose/adxl345-1" {
		t.Errorf("DeviceTopic = %q", got)
	}
}
