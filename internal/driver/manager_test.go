package driver

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
	"github.com/relabs-tech/adxl345_driver/internal/chardev"
	"github.com/relabs-tech/adxl345_driver/internal/irq"
	"github.com/relabs-tech/adxl345_driver/internal/regbus"
	"github.com/relabs-tech/adxl345_driver/internal/sim"
)

func simEndpoint() (Endpoint, *sim.Sensor) {
	s := sim.New()
	line := irq.NewSoftLine()
	s.AttachLine(line)
	return Endpoint{Transport: s, IRQ: line}, s
}

func TestAttachConfiguresAndRegisters(t *testing.T) {
	m := NewManager(Options{})
	defer m.Close()

	ep, s := simEndpoint()
	name, err := m.Attach(context.Background(), ep)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if name != "adxl345-0" {
		t.Errorf("name = %q", name)
	}
	if !s.Measuring() {
		t.Error("sensor not measuring after attach")
	}
	if got := m.Registry().Names(); len(got) != 1 || got[0] != name {
		t.Errorf("registered = %v", got)
	}

	ep2, _ := simEndpoint()
	name2, err := m.Attach(context.Background(), ep2)
	if err != nil || name2 != "adxl345-1" {
		t.Fatalf("second Attach = %q, %v", name2, err)
	}
}

func TestAttachRollsBackOnConfigurationFailure(t *testing.T) {
	m := NewManager(Options{})
	defer m.Close()

	steps := len(adxl345.DefaultProfile())
	for k := 1; k <= steps; k++ {
		ep, s := simEndpoint()
		s.FailWriteAt(k)

		_, err := m.Attach(context.Background(), ep)
		var cfgErr *adxl345.ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Step != k {
			t.Fatalf("k=%d: err = %v", k, err)
		}
		if len(s.Writes()) != k-1 {
			t.Errorf("k=%d: %d writes issued, want %d", k, len(s.Writes()), k-1)
		}
		if names := m.Registry().Names(); len(names) != 0 {
			t.Fatalf("k=%d: %v left registered", k, names)
		}
		if names := m.Names(); len(names) != 0 {
			t.Fatalf("k=%d: manager tracks %v", k, names)
		}
	}

	// Failed attaches do not consume names.
	ep, _ := simEndpoint()
	name, err := m.Attach(context.Background(), ep)
	if err != nil || name != "adxl345-0" {
		t.Fatalf("Attach after failures = %q, %v", name, err)
	}
}

func TestAttachRejectsWrongDeviceID(t *testing.T) {
	m := NewManager(Options{})
	ep, s := simEndpoint()
	s.ShortReads(true)
	if _, err := m.Attach(context.Background(), ep); !errors.Is(err, regbus.ErrShortTransfer) {
		t.Fatalf("err = %v", err)
	}
	if len(s.Writes()) != 0 {
		t.Error("configuration written to a sensor that failed probing")
	}
	if _, err := m.Attach(context.Background(), Endpoint{}); err == nil {
		t.Error("empty endpoint accepted")
	}
}

func TestWatermarkDrainWakesReader(t *testing.T) {
	m := NewManager(Options{})
	defer m.Close()

	ep, s := simEndpoint()
	name, err := m.Attach(context.Background(), ep)
	if err != nil {
		t.Fatal(err)
	}
	f, err := m.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	type result struct {
		n   int
		err error
		buf []byte
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, adxl345.SampleSize)
		n, err := f.Read(context.Background(), buf)
		done <- result{n, err, buf}
	}()
	time.Sleep(10 * time.Millisecond)

	in := []adxl345.Sample{{X: 0x0123, Y: -0x0100, Z: 0x00FF}, {X: 2}, {X: 3}}
	s.Push(in...)
	s.RaiseInterrupt()

	var r result
	select {
	case r = <-done:
	case <-time.After(time.Second):
		t.Fatal("reader not woken")
	}
	if r.err != nil || r.n != adxl345.SampleSize {
		t.Fatalf("Read = %d, %v", r.n, r.err)
	}
	want := []byte{0x23, 0x01, 0x00, 0xFF, 0xFF, 0x00}
	for i := range want {
		if r.buf[i] != want[i] {
			t.Fatalf("read % x, want % x", r.buf, want)
		}
	}

	dev, err := m.Device(name)
	if err != nil {
		t.Fatal(err)
	}
	st := dev.Stats()
	if st.Pushed != 3 || st.Queued != 2 {
		t.Errorf("stats = %+v, want 3 drained and 2 left", st)
	}
}

func TestDetachReleasesReadersAndQuiesces(t *testing.T) {
	m := NewManager(Options{})
	ep, s := simEndpoint()
	name, err := m.Attach(context.Background(), ep)
	if err != nil {
		t.Fatal(err)
	}
	f, err := m.Open(name)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.Read(context.Background(), make([]byte, adxl345.SampleSize))
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if err := m.Detach(name); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("blocked read err = %v, want io.EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader still blocked after detach")
	}

	if s.Measuring() {
		t.Error("sensor not put in standby")
	}
	if !s.Closed() {
		t.Error("transport not closed")
	}
	if _, err := m.Open(name); !errors.Is(err, chardev.ErrNotFound) {
		t.Errorf("Open after detach err = %v", err)
	}
	if err := m.Detach(name); !errors.Is(err, ErrNotAttached) {
		t.Errorf("second Detach err = %v", err)
	}
	if _, err := f.Read(context.Background(), make([]byte, 6)); err != io.EOF {
		t.Errorf("read on stale handle err = %v", err)
	}
}

func TestDetachSurvivesStandbyFailure(t *testing.T) {
	m := NewManager(Options{})
	ep, s := simEndpoint()
	name, err := m.Attach(context.Background(), ep)
	if err != nil {
		t.Fatal(err)
	}
	s.FailWriteAt(1)
	if err := m.Detach(name); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if len(m.Names()) != 0 {
		t.Error("device still tracked")
	}
}

func TestCloseDetachesNewestFirst(t *testing.T) {
	m := NewManager(Options{})
	var sensors []*sim.Sensor
	for i := 0; i < 3; i++ {
		ep, s := simEndpoint()
		if _, err := m.Attach(context.Background(), ep); err != nil {
			t.Fatal(err)
		}
		sensors = append(sensors, s)
	}
	if got := m.Names(); len(got) != 3 || got[2] != "adxl345-2" {
		t.Fatalf("Names = %v", got)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	for i, s := range sensors {
		if !s.Closed() || s.Measuring() {
			t.Errorf("sensor %d not released", i)
		}
	}
	if len(m.Names()) != 0 || len(m.Registry().Names()) != 0 {
		t.Error("devices left after Close")
	}
}

func TestAttachHonoursCancelledContext(t *testing.T) {
	m := NewManager(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ep, s := simEndpoint()
	if _, err := m.Attach(ctx, ep); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(s.Writes()) != 0 {
		t.Error("cancelled attach touched the sensor")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDrainRecoversWhileINT1StaysHigh(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*sim.Sensor)
		clear  func(*sim.Sensor)
	}{
		{
			name:   "failed FIFO_STATUS read",
			inject: func(s *sim.Sensor) { s.FailStatusReads(true) },
			clear:  func(s *sim.Sensor) { s.FailStatusReads(false) },
		},
		{
			name:   "burst failure leaving the FIFO above the watermark",
			inject: func(s *sim.Sensor) { s.FailDataReadsAfter(2) },
			clear:  func(s *sim.Sensor) { s.FailDataReadsAfter(-1) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(Options{})
			defer m.Close()
			ep, s := simEndpoint()
			name, err := m.Attach(context.Background(), ep)
			if err != nil {
				t.Fatal(err)
			}
			dev, err := m.Device(name)
			if err != nil {
				t.Fatal(err)
			}

			tt.inject(s)
			s.Push(make([]adxl345.Sample, 25)...)
			waitFor(t, "a bus error", func() bool { return dev.Stats().BusErrors > 0 })
			if !s.INT1() {
				t.Fatal("INT1 dropped although the drain failed")
			}

			// The bus heals and more samples arrive. INT1 never went low, so
			// there is no new edge.
			tt.clear(s)
			s.Push(make([]adxl345.Sample, 5)...)
			waitFor(t, "all samples drained", func() bool { return dev.Stats().Pushed == 30 })
			if s.INT1() || s.Pending() != 0 {
				t.Errorf("INT1 = %v with %d samples left in the FIFO", s.INT1(), s.Pending())
			}

			f, err := m.Open(name)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if n, err := f.Read(ctx, make([]byte, adxl345.SampleSize)); err != nil || n != adxl345.SampleSize {
				t.Errorf("Read = %d, %v", n, err)
			}
		})
	}
}

func TestAttachServicesINT1AlreadyHigh(t *testing.T) {
	// A previous session left the watermark interrupt enabled and the FIFO
	// above the watermark. Standby keeps both.
	s := sim.New()
	c := regbus.NewClient(s)
	if err := adxl345.Apply(c, adxl345.DefaultProfile()); err != nil {
		t.Fatal(err)
	}
	s.Push(make([]adxl345.Sample, 25)...)
	if err := adxl345.Standby(c); err != nil {
		t.Fatal(err)
	}

	line := irq.NewSoftLine()
	s.AttachLine(line)
	if !s.INT1() || line.WaitForEdge(0) {
		t.Fatal("line should be high with no pending edge")
	}

	m := NewManager(Options{})
	defer m.Close()
	name, err := m.Attach(context.Background(), Endpoint{Transport: s, IRQ: line})
	if err != nil {
		t.Fatal(err)
	}
	dev, err := m.Device(name)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "the stale FIFO to drain", func() bool { return dev.Stats().Pushed == 25 })
	if s.INT1() {
		t.Error("INT1 still high after attach")
	}
}
