// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package driver attaches and detaches ADXL345 sensors: it identifies and
// configures each one, binds its interrupt line to the FIFO drain and
// publishes a named endpoint that readers open.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
	"github.com/relabs-tech/adxl345_driver/internal/chardev"
	"github.com/relabs-tech/adxl345_driver/internal/irq"
	"github.com/relabs-tech/adxl345_driver/internal/metrics"
	"github.com/relabs-tech/adxl345_driver/internal/regbus"
)

// NamePrefix prefixes every endpoint name.
const NamePrefix = "adxl345-"

// ErrNotAttached is returned by Detach and Device for unknown names.
var ErrNotAttached = errors.New("driver: device not attached")

// Endpoint is what the host supplies for one physical sensor.
type Endpoint struct {
	Transport regbus.Transport
	IRQ       irq.Line
}

// Options configure every device the manager attaches.
type Options struct {
	Profile adxl345.Profile
	Device  adxl345.Options
}

type attached struct {
	dev    *adxl345.Device
	client *regbus.Client
	thread *irq.Thread
	ep     Endpoint
}

// Manager owns every attached device. Attach and Detach are serialised by
// one lock, which also guards the naming counter.
type Manager struct {
	opts     Options
	registry *chardev.Registry

	mu      sync.Mutex
	next    int
	devices map[string]*attached
	order   []string
}

// NewManager returns an empty manager. A nil profile selects
// adxl345.DefaultProfile.
func NewManager(opts Options) *Manager {
	if opts.Profile == nil {
		opts.Profile = adxl345.DefaultProfile()
	}
	return &Manager{
		opts:     opts,
		registry: chardev.NewRegistry(),
		devices:  make(map[string]*attached),
	}
}

// Attach brings up the sensor behind ep and returns its endpoint name. On
// failure nothing stays registered and the naming counter is not advanced.
func (m *Manager) Attach(ctx context.Context, ep Endpoint) (string, error) {
	if ep.Transport == nil || ep.IRQ == nil {
		return "", errors.New("driver: endpoint needs a transport and an IRQ line")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s%d", NamePrefix, m.next)
	client := regbus.NewClient(ep.Transport)

	if err := adxl345.CheckID(client); err != nil {
		return "", fmt.Errorf("driver: attach %s: %w", name, err)
	}
	if err := adxl345.Apply(client, m.opts.Profile); err != nil {
		return "", fmt.Errorf("driver: attach %s: %w", name, err)
	}

	dev := adxl345.New(name, client, m.opts.Device)
	thread := irq.Request(ep.IRQ, name, dev.HandleInterrupt)

	if err := m.registry.Register(name, dev); err != nil {
		thread.Free()
		dev.Teardown()
		quiesce(name, client)
		metrics.Forget(name)
		return "", fmt.Errorf("driver: attach %s: %w", name, err)
	}

	m.next++
	m.devices[name] = &attached{dev: dev, client: client, thread: thread, ep: ep}
	m.order = append(m.order, name)
	metrics.AttachedDevices.Set(float64(len(m.devices)))
	log.Printf("driver: attached %s on %v", name, ep.Transport)
	return name, nil
}

// Detach removes name. The endpoint is deregistered first so no new reader
// can open it, then the interrupt thread is stopped and blocked readers are
// released with io.EOF before the sensor is put in standby.
func (m *Manager) Detach(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detachLocked(name)
}

func (m *Manager) detachLocked(name string) error {
	a, ok := m.devices[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAttached, name)
	}
	delete(m.devices, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if err := m.registry.Deregister(name); err != nil {
		log.Printf("driver: %s: deregister: %v", name, err)
	}
	a.thread.Free()
	a.dev.Teardown()
	quiesce(name, a.client)
	if c, ok := a.ep.Transport.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("driver: %s: close transport: %v", name, err)
		}
	}

	st := a.dev.Stats()
	metrics.Forget(name)
	metrics.AttachedDevices.Set(float64(len(m.devices)))
	log.Printf("driver: detached %s (%d interrupts, %d samples, %d dropped)",
		name, st.Interrupts, st.Pushed, st.Dropped)
	return nil
}

// quiesce puts the sensor in standby. Failure is logged only.
func quiesce(name string, client *regbus.Client) {
	if err := adxl345.Standby(client); err != nil {
		log.Printf("driver: %s: standby failed: %v", name, err)
	}
}

// Close detaches every device, newest first.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for len(m.order) > 0 {
		name := m.order[len(m.order)-1]
		if err := m.detachLocked(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Names returns the attached devices in attach order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Device returns the attached device called name.
func (m *Manager) Device(name string) (*adxl345.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAttached, name)
	}
	return a.dev, nil
}

// Open opens the endpoint called name.
func (m *Manager) Open(name string) (*chardev.File, error) {
	return m.registry.Open(name)
}

// Registry exposes the endpoint registry.
func (m *Manager) Registry() *chardev.Registry {
	return m.registry
}
