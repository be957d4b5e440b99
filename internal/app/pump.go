package app

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
)

// sampleFile is the read side of an open device endpoint.
type sampleFile interface {
	Name() string
	Read(ctx context.Context, p []byte) (int, error)
}

// modeSource reports the read mode a device is in.
type modeSource interface {
	Mode() adxl345.ReadMode
	Axis() adxl345.Axis
}

// pump reads batches of up to batchSamples samples from f until the device
// goes away or ctx ends, and hands every batch to emit.
func pump(ctx context.Context, f sampleFile, dev modeSource, batchSamples int, emit func(SampleBatch)) error {
	buf := make([]byte, batchSamples*adxl345.SampleSize)
	for {
		mode, axis := dev.Mode(), dev.Axis()
		n, err := f.Read(ctx, buf)
		if errors.Is(err, io.EOF) {
			log.Printf("pump: %s: device gone", f.Name())
			return nil
		}
		if errors.Is(err, adxl345.ErrInterrupted) {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("pump: %s: read: %w", f.Name(), err)
		}
		if dev.Mode() != mode || dev.Axis() != axis {
			log.Printf("pump: %s: read mode changed during read, discarding %d bytes", f.Name(), n)
			continue
		}
		emit(decodeBatch(f.Name(), time.Now(), buf[:n], mode, axis))
	}
}

// decodeBatch turns the bytes of one read into a SampleBatch.
func decodeBatch(device string, t time.Time, b []byte, mode adxl345.ReadMode, axis adxl345.Axis) SampleBatch {
	batch := SampleBatch{Type: "samples", Device: device, Time: t, Mode: mode.String()}
	if mode == adxl345.ModeSingleAxis {
		batch.Axis = axis.String()
		batch.Readings = make([]int16, 0, len(b)/adxl345.AxisSize)
		for i := 0; i+adxl345.AxisSize <= len(b); i += adxl345.AxisSize {
			batch.Readings = append(batch.Readings, int16(binary.LittleEndian.Uint16(b[i:])))
		}
		return batch
	}
	batch.Samples = make([]adxl345.Sample, 0, len(b)/adxl345.SampleSize)
	for i := 0; i+adxl345.SampleSize <= len(b); i += adxl345.SampleSize {
		batch.Samples = append(batch.Samples, adxl345.DecodeSample(b[i:]))
	}
	return batch
}
