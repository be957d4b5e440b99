package regbus

import (
	"bytes"
	"errors"
	"testing"
)

// scriptTransport records writes and serves reads from a queue.
type scriptTransport struct {
	writes   [][]byte
	reads    [][]byte
	writeN   int // forced byte count for writes, -1 = len(b)
	readN    int // forced byte count for reads, -1 = copied
	writeErr error
	readErr  error
}

func newScript() *scriptTransport {
	return &scriptTransport{writeN: -1, readN: -1}
}

func (s *scriptTransport) Write(b []byte) (int, error) {
	s.writes = append(s.writes, append([]byte(nil), b...))
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	if s.writeN >= 0 {
		return s.writeN, nil
	}
	return len(b), nil
}

func (s *scriptTransport) Read(b []byte) (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	var n int
	if len(s.reads) > 0 {
		n = copy(b, s.reads[0])
		s.reads = s.reads[1:]
	}
	if s.readN >= 0 {
		return s.readN, nil
	}
	return n, nil
}

func TestWriteRegister(t *testing.T) {
	tr := newScript()
	c := NewClient(tr)

	if err := c.WriteRegister(0x2D, 0x08); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	if len(tr.writes) != 1 || !bytes.Equal(tr.writes[0], []byte{0x2D, 0x08}) {
		t.Fatalf("writes = %x, want [2d08]", tr.writes)
	}
}

func TestReadBurstUsesTwoTransactions(t *testing.T) {
	tr := newScript()
	tr.reads = [][]byte{{1, 2, 3, 4, 5, 6}}
	c := NewClient(tr)

	got, err := c.ReadBurst(0x32, 6)
	if err != nil {
		t.Fatalf("ReadBurst: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("data = %x", got)
	}
	if len(tr.writes) != 1 || !bytes.Equal(tr.writes[0], []byte{0x32}) {
		t.Errorf("address select = %x, want [32]", tr.writes)
	}
}

func TestShortTransfers(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*scriptTransport)
		op    func(*Client) error
		want  string
	}{
		{
			name:  "short write",
			setup: func(s *scriptTransport) { s.writeN = 1 },
			op:    func(c *Client) error { return c.WriteRegister(0x2C, 0x0A) },
			want:  "write",
		},
		{
			name:  "short select",
			setup: func(s *scriptTransport) { s.writeN = 0 },
			op:    func(c *Client) error { _, err := c.ReadRegister(0x39); return err },
			want:  "select",
		},
		{
			name:  "short read",
			setup: func(s *scriptTransport) { s.readN = 4 },
			op:    func(c *Client) error { _, err := c.ReadBurst(0x32, 6); return err },
			want:  "read",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newScript()
			tt.setup(tr)
			err := tt.op(NewClient(tr))
			if !errors.Is(err, ErrShortTransfer) {
				t.Fatalf("err = %v, want ErrShortTransfer", err)
			}
			var be *BusError
			if !errors.As(err, &be) {
				t.Fatalf("err %T is not *BusError", err)
			}
			if be.Op != tt.want {
				t.Errorf("Op = %q, want %q", be.Op, tt.want)
			}
		})
	}
}

func TestTransportErrorIsNotRetried(t *testing.T) {
	tr := newScript()
	boom := errors.New("nack")
	tr.readErr = boom
	c := NewClient(tr)

	if _, err := c.ReadBurst(0x32, 6); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(tr.writes) != 1 {
		t.Errorf("transactions issued = %d, want 1 select and no retry", len(tr.writes))
	}
}
