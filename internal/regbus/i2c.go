package regbus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// I2CTransport talks to one slave address through periph's i2c.Dev.
type I2CTransport struct {
	dev *i2c.Dev
}

// NewI2CTransport returns a transport for addr on bus.
func NewI2CTransport(bus i2c.Bus, addr uint16) *I2CTransport {
	return &I2CTransport{dev: &i2c.Dev{Addr: addr, Bus: bus}}
}

// Write performs one write transaction.
func (t *I2CTransport) Write(b []byte) (int, error) {
	return t.dev.Write(b)
}

// Read performs one read-only transaction. periph reports success or failure
// for the whole transfer, so a successful Tx moved len(b) bytes.
func (t *I2CTransport) Read(b []byte) (int, error) {
	if err := t.dev.Tx(nil, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (t *I2CTransport) String() string {
	return t.dev.String()
}

// OpenI2CBus initialises the periph host and opens busName ("" picks the
// first available bus).
func OpenI2CBus(busName string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", busName, err)
	}
	return bus, nil
}
