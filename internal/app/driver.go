// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
	"github.com/relabs-tech/adxl345_driver/internal/chardev"
	"github.com/relabs-tech/adxl345_driver/internal/config"
	"github.com/relabs-tech/adxl345_driver/internal/driver"
	"github.com/relabs-tech/adxl345_driver/internal/irq"
	"github.com/relabs-tech/adxl345_driver/internal/regbus"
	"github.com/relabs-tech/adxl345_driver/internal/sim"
)

// RunDriver attaches every configured sensor, streams their samples to MQTT
// and websocket clients and serves the HTTP surface until ctx ends. All
// devices are detached before it returns.
func RunDriver(ctx context.Context) error {
	cfg := config.Get()
	log.Printf("starting adxl345 driver (backend %s)", cfg.Backend)

	profile, err := cfg.Profile()
	if err != nil {
		return err
	}
	mgr := driver.NewManager(driver.Options{Profile: profile, Device: cfg.DeviceOptions()})
	defer mgr.Close()

	switch cfg.Backend {
	case config.BackendSim:
		err = attachSim(ctx, mgr, cfg)
	default:
		var bus i2c.BusCloser
		bus, err = regbus.OpenI2CBus(cfg.I2CBus)
		if err != nil {
			return err
		}
		defer bus.Close()
		err = attachI2C(ctx, mgr, bus, cfg)
	}
	if err != nil {
		return err
	}
	names := mgr.Names()
	if len(names) == 0 {
		return errors.New("driver: no sensor attached")
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDriver)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	pub := &mqttPublisher{client: client, topicSamples: cfg.TopicSamples, topicPose: cfg.TopicPose}
	hub := NewHub()
	defer hub.closeAll()

	api := NewServer(mgr, hub, cfg.RangeG)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Handler()}
	go func() {
		log.Printf("http: listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http: server error: %v", err)
		}
	}()

	emit := func(b SampleBatch) {
		pub.PublishBatch(b)
		hub.Broadcast(b)
		api.Observe(b)
		if len(b.Samples) > 0 {
			p := poseFromBatch(b, cfg.RangeG)
			pub.PublishPose(p)
			hub.Broadcast(p)
		}
	}

	var wg sync.WaitGroup
	for _, name := range names {
		f, err := mgr.Open(name)
		if err != nil {
			return err
		}
		dev, err := mgr.Device(name)
		if err != nil {
			f.Close()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer f.Close()
			if err := pump(ctx, f, dev, cfg.ReadBatchSamples, emit); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("pump: %s stopped: %v", f.Name(), err)
			}
		}()
	}

	<-ctx.Done()
	log.Println("driver: shutting down")

	// Detaching wakes the pumps with end-of-device.
	if err := mgr.Close(); err != nil {
		log.Printf("driver: detach: %v", err)
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func attachI2C(ctx context.Context, mgr *driver.Manager, bus i2c.Bus, cfg *config.Config) error {
	edge, err := irq.ParseEdge(cfg.IRQEdge)
	if err != nil {
		return err
	}
	for i, addr := range cfg.ADXL345Addrs {
		pin, err := irq.OpenGPIO(cfg.ADXL345IRQPins[i], edge)
		if err != nil {
			return err
		}
		ep := driver.Endpoint{Transport: regbus.NewI2CTransport(bus, addr), IRQ: pin}
		name, err := mgr.Attach(ctx, ep)
		if err != nil {
			// One missing sensor does not keep the others down.
			log.Printf("driver: sensor at 0x%02X (IRQ %s): %v", addr, pin, err)
			pin.Halt()
			continue
		}
		log.Printf("driver: %s is the sensor at 0x%02X, IRQ on %s", name, addr, pin)
	}
	return nil
}

func attachSim(ctx context.Context, mgr *driver.Manager, cfg *config.Config) error {
	for i := 0; i < cfg.SensorCount(); i++ {
		s := sim.New()
		s.Seed(cfg.SimSeed + int64(i))
		line := irq.NewSoftLine()
		s.AttachLine(line)

		name, err := mgr.Attach(ctx, driver.Endpoint{Transport: s, IRQ: line})
		if err != nil {
			return fmt.Errorf("driver: simulated sensor %d: %w", i, err)
		}
		go s.Run(ctx)
		log.Printf("driver: %s is simulated at %.1f Hz, watermark %d", name, s.DataRate(), cfg.FIFOWatermark)
	}
	return nil
}

var (
	_ sampleFile = (*chardev.File)(nil)
	_ modeSource = (*adxl345.Device)(nil)
)
