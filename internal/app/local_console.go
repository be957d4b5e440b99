package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/relabs-tech/adxl345_driver/internal/config"
	"github.com/relabs-tech/adxl345_driver/internal/driver"
)

// RunLocalConsole attaches simulated sensors in-process and prints their
// samples and poses to w until ctx ends. It needs no broker or hardware.
func RunLocalConsole(ctx context.Context, w io.Writer) error {
	cfg := config.Get()

	profile, err := cfg.Profile()
	if err != nil {
		return err
	}
	mgr := driver.NewManager(driver.Options{Profile: profile, Device: cfg.DeviceOptions()})
	defer mgr.Close()

	if err := attachSim(ctx, mgr, cfg); err != nil {
		return err
	}

	var outMu sync.Mutex
	emit := func(b SampleBatch) {
		outMu.Lock()
		defer outMu.Unlock()
		printBatch(w, b)
		if len(b.Samples) > 0 {
			printPose(w, poseFromBatch(b, cfg.RangeG))
		}
	}

	var wg sync.WaitGroup
	for _, name := range mgr.Names() {
		f, err := mgr.Open(name)
		if err != nil {
			return err
		}
		dev, err := mgr.Device(name)
		if err != nil {
			f.Close()
			return fmt.Errorf("console: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer f.Close()
			if err := pump(ctx, f, dev, cfg.ReadBatchSamples, emit); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("console: %s stopped: %v", f.Name(), err)
			}
		}()
	}

	<-ctx.Done()
	mgr.Close()
	wg.Wait()
	return nil
}
