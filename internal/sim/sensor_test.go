package sim

import (
	"context"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
	"github.com/relabs-tech/adxl345_driver/internal/irq"
	"github.com/relabs-tech/adxl345_driver/internal/regbus"
)

func TestBurstReadPopsFIFO(t *testing.T) {
	s := New()
	c := regbus.NewClient(s)
	s.Push(adxl345.Sample{X: 1, Y: -2, Z: 3}, adxl345.Sample{X: 4, Y: 5, Z: -6})

	status, err := c.ReadRegister(adxl345.RegFIFOStatus)
	if err != nil || status&adxl345.FIFOEntriesMask != 2 {
		t.Fatalf("FIFO_STATUS = %#x, %v; want 2 entries", status, err)
	}

	buf := make([]byte, adxl345.SampleSize)
	for _, want := range []adxl345.Sample{{X: 1, Y: -2, Z: 3}, {X: 4, Y: 5, Z: -6}} {
		if err := c.ReadBurstInto(adxl345.RegDataX0, buf); err != nil {
			t.Fatalf("burst: %v", err)
		}
		if got := adxl345.DecodeSample(buf); got != want {
			t.Errorf("sample = %v, want %v", got, want)
		}
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d after draining", s.Pending())
	}
}

func TestWatermarkRaisesLine(t *testing.T) {
	s := New()
	line := irq.NewSoftLine()
	s.AttachLine(line)
	c := regbus.NewClient(s)
	if err := adxl345.Apply(c, adxl345.DefaultProfile()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for i := 0; i < adxl345.DefaultWatermark-1; i++ {
		s.Push(adxl345.Sample{})
	}
	if line.WaitForEdge(0) {
		t.Fatal("interrupt raised below the watermark")
	}
	s.Push(adxl345.Sample{})
	if !line.WaitForEdge(time.Second) {
		t.Fatal("interrupt not raised at the watermark")
	}
}

func TestINT1IsALevel(t *testing.T) {
	s := New()
	line := irq.NewSoftLine()
	s.AttachLine(line)
	c := regbus.NewClient(s)
	if err := adxl345.Apply(c, adxl345.DefaultProfile()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	s.Push(make([]adxl345.Sample, adxl345.DefaultWatermark)...)
	if !line.WaitForEdge(time.Second) {
		t.Fatal("no edge at the watermark")
	}
	s.Push(adxl345.Sample{}, adxl345.Sample{})
	if line.WaitForEdge(0) {
		t.Fatal("edge while INT1 was already high")
	}
	if line.Read() != gpio.High || !s.INT1() {
		t.Fatal("INT1 low above the watermark")
	}

	buf := make([]byte, adxl345.SampleSize)
	for s.Pending() >= adxl345.DefaultWatermark {
		if err := c.ReadBurstInto(adxl345.RegDataX0, buf); err != nil {
			t.Fatal(err)
		}
	}
	if line.Read() != gpio.Low || s.INT1() {
		t.Fatal("INT1 high below the watermark")
	}
	s.Push(adxl345.Sample{})
	if !line.WaitForEdge(time.Second) {
		t.Fatal("no edge on the second crossing")
	}
}

func TestStreamModeOverrun(t *testing.T) {
	s := New()
	for i := 0; i < adxl345.FIFODepth+3; i++ {
		s.Push(adxl345.Sample{X: int16(i)})
	}
	if s.Pending() != adxl345.FIFODepth || s.Overruns() != 3 {
		t.Fatalf("Pending = %d, Overruns = %d", s.Pending(), s.Overruns())
	}
	buf := make([]byte, adxl345.SampleSize)
	regbus.NewClient(s).ReadBurstInto(adxl345.RegDataX0, buf)
	if got := adxl345.DecodeSample(buf).X; got != 3 {
		t.Errorf("oldest surviving sample X = %d, want 3", got)
	}
}

func TestFaultInjection(t *testing.T) {
	s := New()
	c := regbus.NewClient(s)

	s.FailWriteAt(2)
	if err := c.WriteRegister(adxl345.RegBWRate, 0x0A); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := c.WriteRegister(adxl345.RegIntEnable, 0x02); err == nil {
		t.Fatal("second write should fail")
	}

	s.ShortReads(true)
	if _, err := c.ReadRegister(adxl345.RegDevID); err == nil {
		t.Fatal("short read not reported")
	}
}

func TestRunProducesSamplesWhileMeasuring(t *testing.T) {
	s := New()
	c := regbus.NewClient(s)
	p, err := adxl345.NewProfile(3200, 2, 20)
	if err != nil {
		t.Fatal(err)
	}
	if err := adxl345.Apply(c, p); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx)
	if s.Pending() == 0 {
		t.Error("no samples converted in 50ms at 3200 Hz")
	}
	if got := s.DataRate(); got != 3200 {
		t.Errorf("DataRate = %v", got)
	}
}
