// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adxl345

import (
	"log"
)

// HandleInterrupt drains the hardware FIFO into the ring buffer. It is the
// watermark interrupt handler and runs on the device's interrupt goroutine,
// so it may block on the bus but never runs concurrently with itself.
//
// A bus error aborts the drain without retrying; whatever was already pushed
// stays queued. Readers are woken in every case. It reports whether at least
// one sample was drained without a bus error.
func (d *Device) HandleInterrupt() bool {
	d.interrupts.Add(1)
	d.mInterrupts.Inc()
	defer d.wakeAll()

	status, err := d.bus.ReadRegister(RegFIFOStatus)
	if err != nil {
		d.busErrors.Add(1)
		d.mBusErrors.Inc()
		log.Printf("adxl345: %s: read FIFO status: %v", d.name, err)
		return false
	}
	pending := int(status & FIFOEntriesMask)

	var pushed, dropped int
	failed := false
	for i := 0; i < pending; i++ {
		if err := d.bus.ReadBurstInto(RegDataX0, d.scratch[:]); err != nil {
			d.busErrors.Add(1)
			d.mBusErrors.Inc()
			log.Printf("adxl345: %s: partial drain, %d of %d samples read: %v", d.name, i, pending, err)
			failed = true
			break
		}
		s := DecodeSample(d.scratch[:])

		d.mu.Lock()
		ok := d.ring.Push(s)
		queued := d.ring.Len()
		d.mu.Unlock()

		d.mQueued.Set(float64(queued))
		if ok {
			pushed++
			d.pushed.Add(1)
			d.mPushed.Inc()
		} else {
			dropped++
			d.mDropped.Inc()
		}
	}
	if dropped > 0 {
		log.Printf("adxl345: %s: ring buffer full, dropped %d of %d samples", d.name, dropped, pushed+dropped)
	}
	return !failed && pushed+dropped > 0
}
