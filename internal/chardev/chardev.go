// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package chardev is the user-facing registration point: named endpoints with
// blocking read and a control call, opened through per-caller file handles.
package chardev

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrExists is returned when registering a name twice.
	ErrExists = errors.New("chardev: name already registered")
	// ErrNotFound is returned for names that are not registered.
	ErrNotFound = errors.New("chardev: no such device")
	// ErrClosed is returned by operations on a closed File.
	ErrClosed = errors.New("chardev: file already closed")
)

// Command selects a control operation.
type Command uint32

// Device is the capability set a registered endpoint exposes.
type Device interface {
	// Read blocks until data is available and fills p. It returns (0, io.EOF)
	// once the device is gone.
	Read(ctx context.Context, p []byte) (int, error)
	// Control runs a parameterised command.
	Control(cmd Command, arg int) error
	// Teardown releases waiters; the device is unusable afterwards.
	Teardown()
}

// Registry maps names to devices.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]Device
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]Device)}
}

// Register makes dev reachable under name.
func (r *Registry) Register(name string, dev Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[name]; ok {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	r.nodes[name] = dev
	return nil
}

// Deregister removes name. Files already open keep their device reference.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.nodes, name)
	return nil
}

// Open returns a new handle on name.
func (r *Registry) Open(name string) (*File, error) {
	r.mu.RLock()
	dev, ok := r.nodes[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &File{name: name, dev: dev}, nil
}

// Names lists registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.nodes))
	for n := range r.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// File is one open handle. It holds a direct reference to its device and
// does not own it.
type File struct {
	name   string
	dev    Device
	closed atomic.Bool
}

// Name returns the endpoint name the file was opened on.
func (f *File) Name() string { return f.name }

// Read forwards to the device.
func (f *File) Read(ctx context.Context, p []byte) (int, error) {
	if f.closed.Load() {
		return 0, ErrClosed
	}
	return f.dev.Read(ctx, p)
}

// Control forwards to the device.
func (f *File) Control(cmd Command, arg int) error {
	if f.closed.Load() {
		return ErrClosed
	}
	return f.dev.Control(cmd, arg)
}

// Close releases the handle.
func (f *File) Close() error {
	if f.closed.Swap(true) {
		return ErrClosed
	}
	return nil
}
