package chardev

import (
	"context"
	"errors"
	"io"
	"testing"
)

type stubDevice struct {
	lastCmd Command
	lastArg int
	gone    bool
}

func (s *stubDevice) Read(_ context.Context, p []byte) (int, error) {
	if s.gone {
		return 0, io.EOF
	}
	return copy(p, "ok"), nil
}

func (s *stubDevice) Control(cmd Command, arg int) error {
	s.lastCmd, s.lastArg = cmd, arg
	return nil
}

func (s *stubDevice) Teardown() { s.gone = true }

func TestRegisterOpenDeregister(t *testing.T) {
	r := NewRegistry()
	dev := &stubDevice{}

	if err := r.Register("adxl345-0", dev); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("adxl345-0", dev); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate Register err = %v", err)
	}

	f, err := r.Open("adxl345-0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 4)
	if n, err := f.Read(context.Background(), buf); err != nil || n != 2 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	if err := f.Control(7, 2); err != nil || dev.lastCmd != 7 || dev.lastArg != 2 {
		t.Fatalf("Control not forwarded: %v %+v", err, dev)
	}

	if err := r.Deregister("adxl345-0"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if _, err := r.Open("adxl345-0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open after Deregister err = %v", err)
	}

	// The open file outlives the registration and sees end-of-device.
	dev.Teardown()
	if n, err := f.Read(context.Background(), buf); n != 0 || err != io.EOF {
		t.Fatalf("Read after teardown = %d, %v", n, err)
	}
}

func TestClosedFile(t *testing.T) {
	r := NewRegistry()
	r.Register("a", &stubDevice{})
	f, _ := r.Open("a")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close err = %v", err)
	}
	if _, err := f.Read(context.Background(), make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Read on closed file err = %v", err)
	}
	if err := f.Control(1, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Control on closed file err = %v", err)
	}
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"adxl345-1", "adxl345-0"} {
		r.Register(n, &stubDevice{})
	}
	got := r.Names()
	if len(got) != 2 || got[0] != "adxl345-0" || got[1] != "adxl345-1" {
		t.Errorf("Names() = %v", got)
	}
	if err := r.Deregister("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deregister(missing) err = %v", err)
	}
}
