package shiftreg

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
	"github.com/mbalug7/go-gpio-devices/pkg/sim"
)

var testPins = PinAssignment{Data: 16, Clock: 21, Latch: 20}

func newTestWriter(t *testing.T) (*Writer, *sim.Handler, *sim.ShiftRegister) {
	t.Helper()
	hw := sim.NewHandler()
	reg := sim.NewShiftRegister(testPins.Data, testPins.Clock, testPins.Latch)
	hw.Attach(reg)
	w, err := NewWriter(hw, testPins)
	if err != nil {
		t.Fatalf("NewWriter: %s", err)
	}
	if err := w.Setup(); err != nil {
		t.Fatalf("Setup: %s", err)
	}
	return w, hw, reg
}

func TestWriteAllValues(t *testing.T) {
	w, _, reg := newTestWriter(t)
	for v := 0; v <= 255; v++ {
		if err := w.Write(v); err != nil {
			t.Fatalf("Write(%d): %s", v, err)
		}
		if got := reg.Output(); got != uint8(v) {
			t.Fatalf("Write(%d): register outputs %08b", v, got)
		}
	}
	if w.State() != StateIdle {
		t.Errorf("writer left in state %s", w.State())
	}
}

func TestWriteBitOrder(t *testing.T) {
	w, _, reg := newTestWriter(t)
	if err := w.Write(0b10110010); err != nil {
		t.Fatal(err)
	}
	want := []int{1, 0, 1, 1, 0, 0, 1, 0} // Q7..Q0
	for i, bit := range want {
		q := 7 - i
		if got := reg.Bit(q); got != bit {
			t.Errorf("Q%d = %d, want %d", q, got, bit)
		}
	}
}

func TestWriteBoundaries(t *testing.T) {
	w, _, reg := newTestWriter(t)
	tests := []struct {
		value int
		level int
	}{
		{0, hal.Low},
		{255, hal.High},
	}
	for _, tt := range tests {
		if err := w.Write(tt.value); err != nil {
			t.Fatal(err)
		}
		for q := 0; q < 8; q++ {
			if reg.Bit(q) != tt.level {
				t.Errorf("Write(%d): Q%d = %d, want %d", tt.value, q, reg.Bit(q), tt.level)
			}
		}
	}
}

func TestWriteIdempotent(t *testing.T) {
	w, _, reg := newTestWriter(t)
	if err := w.Write(0x5A); err != nil {
		t.Fatal(err)
	}
	once := reg.Output()
	if err := w.Write(0x5A); err != nil {
		t.Fatal(err)
	}
	if twice := reg.Output(); twice != once {
		t.Errorf("second write changed outputs from %08b to %08b", once, twice)
	}
}

func TestWriteSequence(t *testing.T) {
	w, hw, _ := newTestWriter(t)
	hw.ResetTrace()
	if err := w.Write(0xB2); err != nil {
		t.Fatal(err)
	}
	trace := hw.Trace()
	// 3 toggles to open, 3 per bit, 3 to latch
	if len(trace) != 3+8*3+3 {
		t.Fatalf("got %d toggles, want %d", len(trace), 3+8*3+3)
	}

	clock := hal.Low
	shifted := 0
	latchHigh := false
	for i, tg := range trace {
		switch tg.Pin {
		case testPins.Clock:
			if clock == hal.Low && tg.Value == hal.High && !latchHigh {
				shifted++
			}
			clock = tg.Value
		case testPins.Latch:
			if tg.Value == hal.High {
				// opening edge plus eight data bits
				if shifted != 9 {
					t.Fatalf("toggle %d: latch raised after %d clock edges", i, shifted)
				}
				latchHigh = true
			}
		}
	}
	if !latchHigh {
		t.Fatal("latch never raised")
	}
	if last := trace[len(trace)-1]; last.Pin != testPins.Clock || last.Value != hal.High {
		t.Errorf("last toggle %+v, want clock high", last)
	}
}

func TestWriteRejectsOutOfRange(t *testing.T) {
	w, hw, _ := newTestWriter(t)
	hw.ResetTrace()
	for _, v := range []int{-1, 256, 1 << 20} {
		err := w.Write(v)
		if !errors.Is(err, hal.ErrInvalidValue) {
			t.Errorf("Write(%d) = %v, want ErrInvalidValue", v, err)
		}
	}
	if n := len(hw.Trace()); n != 0 {
		t.Errorf("rejected writes toggled %d lines", n)
	}
}

func TestWriteRequiresOutputs(t *testing.T) {
	hw := sim.NewHandler()
	w, err := NewWriter(hw, testPins)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(1); !errors.Is(err, hal.ErrInvalidPin) {
		t.Errorf("unconfigured lines: got %v, want ErrInvalidPin", err)
	}

	if err := w.Setup(); err != nil {
		t.Fatal(err)
	}
	if err := hw.Configure(testPins.Latch, hal.DirectionInput, hal.PullDown); err != nil {
		t.Fatal(err)
	}
	hw.ResetTrace()
	if err := w.Write(1); !errors.Is(err, hal.ErrInvalidPin) {
		t.Errorf("latch as input: got %v, want ErrInvalidPin", err)
	}
	if n := len(hw.Trace()); n != 0 {
		t.Errorf("write with invalid pin toggled %d lines", n)
	}
}

func TestNewWriterValidatesPins(t *testing.T) {
	tests := []PinAssignment{
		{Data: 1, Clock: 1, Latch: 2},
		{Data: 1, Clock: 2, Latch: 1},
		{Data: 3, Clock: 2, Latch: 2},
		{Data: -1, Clock: 2, Latch: 3},
	}
	for _, pins := range tests {
		if _, err := NewWriter(sim.NewHandler(), pins); !errors.Is(err, hal.ErrInvalidPin) {
			t.Errorf("NewWriter(%+v) = %v, want ErrInvalidPin", pins, err)
		}
	}
	if _, err := NewWriter(nil, testPins); err == nil {
		t.Error("NewWriter without handler should fail")
	}
}

func TestWriteHardwareFailure(t *testing.T) {
	w, hw, reg := newTestWriter(t)
	if err := w.Write(0x0F); err != nil {
		t.Fatal(err)
	}
	cause := errors.New("EIO")
	hw.FailOn(testPins.Data, cause)
	err := w.Write(0xF0)
	if !errors.Is(err, hal.ErrHardwareWrite) || !errors.Is(err, cause) {
		t.Fatalf("got %v, want ErrHardwareWrite wrapping cause", err)
	}
	if reg.Output() != 0x0F {
		t.Errorf("failed write changed outputs to %08b", reg.Output())
	}
	if w.State() != StateIdle {
		t.Errorf("writer left in state %s", w.State())
	}

	// once the fault clears the next frame goes through
	hw.FailOn(testPins.Data, nil)
	if err := w.Write(0xF0); err != nil {
		t.Fatalf("write after fault cleared: %s", err)
	}
	if reg.Output() != 0xF0 {
		t.Errorf("outputs %08b after retry, want 11110000", reg.Output())
	}
	if reg.Torn() != 0 {
		t.Errorf("%d torn frames", reg.Torn())
	}
}

// gate blocks the first write to pin until release is closed.
type gate struct {
	pin     int
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (g *gate) OnWrite(pin int, value int) error {
	if pin == g.pin {
		g.once.Do(func() {
			close(g.reached)
			<-g.release
		})
	}
	return nil
}

func TestSecondWriterOnSamePinsOverlaps(t *testing.T) {
	first, hw, reg := newTestWriter(t)
	second, err := NewWriter(hw, testPins)
	if err != nil {
		t.Fatal(err)
	}
	g := &gate{pin: testPins.Data, reached: make(chan struct{}), release: make(chan struct{})}
	hw.Attach(g)

	done := make(chan error, 1)
	go func() {
		done <- first.Write(0xB2)
	}()
	select {
	case <-g.reached:
	case <-time.After(2 * time.Second):
		t.Fatal("first writer never started shifting")
	}

	if err := second.Write(0x4D); !errors.Is(err, sim.ErrOverlap) {
		t.Errorf("second writer: got %v, want ErrOverlap", err)
	}
	if second.State() != StateIdle {
		t.Errorf("second writer left in state %s", second.State())
	}

	close(g.release)
	if err := <-done; err != nil {
		t.Fatalf("first writer: %s", err)
	}
	if reg.Output() != 0xB2 {
		t.Errorf("outputs %08b, want 10110010", reg.Output())
	}
	if h := reg.History(); len(h) != 1 {
		t.Errorf("latched %d frames, want 1", len(h))
	}
}

func TestWriteConcurrentCallersSerialized(t *testing.T) {
	w, _, reg := newTestWriter(t)
	values := []int{0x00, 0xFF, 0xB2, 0x4D, 0x81, 0x18, 0xAA, 0x55}

	var wg sync.WaitGroup
	errs := make(chan error, len(values)*10)
	for _, v := range values {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if err := w.Write(v); err != nil {
					errs <- err
				}
			}
		}(v)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent write failed: %s", err)
	}

	allowed := make(map[uint8]bool)
	for _, v := range values {
		allowed[uint8(v)] = true
	}
	history := reg.History()
	if len(history) != len(values)*10 {
		t.Fatalf("got %d latched frames, want %d", len(history), len(values)*10)
	}
	for i, out := range history {
		if !allowed[out] {
			t.Fatalf("frame %d latched %08b, a mix of concurrent values", i, out)
		}
	}
	if reg.Torn() != 0 {
		t.Errorf("%d torn frames", reg.Torn())
	}
}

func TestWriteChain(t *testing.T) {
	hw := sim.NewHandler()
	reg := sim.NewShiftRegisterChain(testPins.Data, testPins.Clock, testPins.Latch, 2)
	hw.Attach(reg)
	w, err := NewWriter(hw, testPins)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Setup(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteChain(0xA5, 0x3C); err != nil {
		t.Fatal(err)
	}
	out := reg.Outputs()
	if out[0] != 0x3C || out[1] != 0xA5 {
		t.Errorf("chain outputs %#x %#x, want 0x3c 0xa5", out[0], out[1])
	}
	if err := w.WriteChain(); !errors.Is(err, hal.ErrInvalidValue) {
		t.Errorf("empty chain write: got %v, want ErrInvalidValue", err)
	}
}
