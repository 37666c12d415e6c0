package sim

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
	"periph.io/x/conn/v3/i2c"
)

const (
	dataPin  = 16
	clockPin = 21
	latchPin = 20
)

func newShiftRig(t *testing.T, depth int) (*Handler, *ShiftRegister) {
	t.Helper()
	hw := NewHandler()
	sr := NewShiftRegisterChain(dataPin, clockPin, latchPin, depth)
	hw.Attach(sr)
	for _, pin := range []int{dataPin, clockPin, latchPin} {
		if err := hw.Configure(pin, hal.DirectionOutput, hal.PullNone); err != nil {
			t.Fatal(err)
		}
	}
	return hw, sr
}

func shiftBits(t *testing.T, hw *Handler, bits ...int) {
	t.Helper()
	for _, b := range bits {
		for _, w := range [][2]int{{clockPin, 0}, {dataPin, b}, {clockPin, 1}} {
			if err := hw.SetValue(w[0], w[1]); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestShiftRegisterLatch(t *testing.T) {
	hw, sr := newShiftRig(t, 1)
	if err := hw.SetValue(latchPin, hal.Low); err != nil {
		t.Fatal(err)
	}
	shiftBits(t, hw, 1, 0, 1, 1, 0, 0, 1, 0)
	if sr.Output() != 0 {
		t.Errorf("outputs changed before latch: %#x", sr.Output())
	}
	if err := hw.SetValue(latchPin, hal.High); err != nil {
		t.Fatal(err)
	}
	if sr.Output() != 0xB2 {
		t.Errorf("Output() = %#x, want 0xb2", sr.Output())
	}
	if sr.Bit(7) != 1 || sr.Bit(0) != 0 || sr.Bit(1) != 1 {
		t.Errorf("bit mapping wrong for %08b", sr.Output())
	}
	if !reflect.DeepEqual(sr.History(), []uint8{0xB2}) {
		t.Errorf("History() = %v", sr.History())
	}
}

func TestShiftRegisterOverlap(t *testing.T) {
	hw, _ := newShiftRig(t, 1)
	if err := hw.SetValue(latchPin, hal.Low); err != nil {
		t.Fatal(err)
	}
	if err := hw.SetValue(latchPin, hal.Low); !errors.Is(err, ErrOverlap) {
		t.Errorf("second window: got %v, want ErrOverlap", err)
	}
}

func TestShiftRegisterTornWrite(t *testing.T) {
	hw, sr := newShiftRig(t, 1)
	if err := hw.SetValue(latchPin, hal.Low); err != nil {
		t.Fatal(err)
	}
	shiftBits(t, hw, 1, 1, 1)
	hw.ResetTrace()
	if err := hw.SetValue(latchPin, hal.High); !errors.Is(err, ErrTornWrite) {
		t.Errorf("short frame: got %v, want ErrTornWrite", err)
	}
	if sr.Torn() != 1 || sr.Output() != 0 {
		t.Errorf("torn=%d output=%#x after rejected latch", sr.Torn(), sr.Output())
	}
	if len(hw.Trace()) != 0 {
		t.Errorf("rejected write was recorded: %v", hw.Trace())
	}
	if v, _ := hw.Value(latchPin); v != hal.Low {
		t.Error("rejected write changed the line level")
	}
}

func TestShiftRegisterAbortedFrame(t *testing.T) {
	hw, sr := newShiftRig(t, 1)
	if err := hw.SetValue(latchPin, hal.Low); err != nil {
		t.Fatal(err)
	}
	shiftBits(t, hw, 1, 1)
	hw.FailOn(dataPin, errors.New("EIO"))
	if err := hw.SetValue(dataPin, hal.High); !errors.Is(err, hal.ErrHardwareWrite) {
		t.Fatalf("got %v, want ErrHardwareWrite", err)
	}
	hw.FailOn(dataPin, nil)

	// a new window opens without an overlap error
	if err := hw.SetValue(latchPin, hal.High); err != nil {
		t.Fatal(err)
	}
	if err := hw.SetValue(latchPin, hal.Low); err != nil {
		t.Fatalf("window after aborted frame: %s", err)
	}
	shiftBits(t, hw, 0, 1, 0, 1, 0, 1, 0, 1)
	if err := hw.SetValue(latchPin, hal.High); err != nil {
		t.Fatal(err)
	}
	if sr.Output() != 0x55 || sr.Torn() != 0 {
		t.Errorf("output %#x torn %d, want 0x55 and 0", sr.Output(), sr.Torn())
	}
}

func TestShiftRegisterReset(t *testing.T) {
	hw, sr := newShiftRig(t, 1)
	if err := hw.SetValue(latchPin, hal.Low); err != nil {
		t.Fatal(err)
	}
	sr.Reset()
	if err := hw.SetValue(latchPin, hal.Low); err != nil {
		t.Errorf("window after Reset: %s", err)
	}
}

func TestShiftRegisterChain(t *testing.T) {
	hw, sr := newShiftRig(t, 2)
	if err := hw.SetValue(latchPin, hal.Low); err != nil {
		t.Fatal(err)
	}
	// far register first
	shiftBits(t, hw, 0, 0, 0, 0, 1, 1, 1, 1)
	shiftBits(t, hw, 1, 0, 0, 0, 0, 0, 0, 1)
	if err := hw.SetValue(latchPin, hal.High); err != nil {
		t.Fatal(err)
	}
	if got := sr.Outputs(); !reflect.DeepEqual(got, []uint8{0x81, 0x0F}) {
		t.Errorf("Outputs() = %#v", got)
	}
}

func TestInjectWatch(t *testing.T) {
	hw := NewHandler()
	var events []hal.EdgeEvent
	if err := hw.Watch(17, hal.PullUp, hal.EdgeBoth, func(evt hal.EdgeEvent) {
		events = append(events, evt)
	}); err != nil {
		t.Fatal(err)
	}
	if v, _ := hw.Value(17); v != hal.High {
		t.Errorf("pulled up line reads %d", v)
	}
	// no edge, already high
	if err := hw.InjectAt(17, hal.High, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := hw.InjectAt(17, hal.Low, 2*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := hw.InjectAt(17, hal.High, 3*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	want := []hal.EdgeEvent{
		{Pin: 17, Edge: hal.EdgeFalling, Timestamp: 2 * time.Millisecond},
		{Pin: 17, Edge: hal.EdgeRising, Timestamp: 3 * time.Millisecond},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}
}

func TestInjectEdgeFilter(t *testing.T) {
	hw := NewHandler()
	n := 0
	if err := hw.Watch(17, hal.PullDown, hal.EdgeRising, func(hal.EdgeEvent) { n++ }); err != nil {
		t.Fatal(err)
	}
	for _, v := range []int{1, 0, 1, 0} {
		if err := hw.Inject(17, v); err != nil {
			t.Fatal(err)
		}
	}
	if n != 2 {
		t.Errorf("rising edges seen = %d, want 2", n)
	}
	if err := hw.Inject(18, 1); !errors.Is(err, hal.ErrInvalidPin) {
		t.Errorf("inject on unclaimed line: got %v, want ErrInvalidPin", err)
	}
}

func TestPullDefaults(t *testing.T) {
	hw := NewHandler()
	for pin, pull := range map[int]hal.Pull{2: hal.PullUp, 3: hal.PullDown, 4: hal.PullNone} {
		if err := hw.Configure(pin, hal.DirectionInput, pull); err != nil {
			t.Fatal(err)
		}
	}
	want := map[int]int{2: hal.High, 3: hal.Low, 4: hal.Low}
	for pin, level := range want {
		if v, _ := hw.Value(pin); v != level {
			t.Errorf("line %d reads %d, want %d", pin, v, level)
		}
	}
	if err := hw.SetValue(2, hal.High); !errors.Is(err, hal.ErrInvalidPin) {
		t.Errorf("write to input: got %v, want ErrInvalidPin", err)
	}
}

func TestFailOn(t *testing.T) {
	hw := NewHandler()
	if err := hw.Configure(5, hal.DirectionOutput, hal.PullNone); err != nil {
		t.Fatal(err)
	}
	cause := errors.New("EIO")
	hw.FailOn(5, cause)
	err := hw.SetValue(5, hal.High)
	if !errors.Is(err, hal.ErrHardwareWrite) || !errors.Is(err, cause) {
		t.Errorf("got %v, want hardware write error wrapping the cause", err)
	}
	hw.FailOn(5, nil)
	if err := hw.SetValue(5, hal.High); err != nil {
		t.Errorf("write after clearing failure: %v", err)
	}
}

func TestReleaseAndClose(t *testing.T) {
	hw := NewHandler()
	for _, pin := range []int{1, 2, 3} {
		if err := hw.Configure(pin, hal.DirectionOutput, hal.PullNone); err != nil {
			t.Fatal(err)
		}
	}
	if err := hw.Release(2); err != nil {
		t.Fatal(err)
	}
	if got := hw.Claimed(); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("Claimed() = %v", got)
	}
	if err := hw.Close(); err != nil {
		t.Fatal(err)
	}
	if len(hw.Claimed()) != 0 {
		t.Errorf("lines claimed after Close: %v", hw.Claimed())
	}
}

func TestADCBusImplementsBus(t *testing.T) {
	var _ i2c.BusCloser = NewADCBus(0x48)
	bus := NewADCBus(0x48)
	if err := bus.Tx(0x49, []byte{0x00}, make([]byte, 2)); err == nil {
		t.Error("expected error for absent address")
	}
}
