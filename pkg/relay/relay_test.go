package relay

import (
	"errors"
	"testing"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
	"github.com/mbalug7/go-gpio-devices/pkg/sim"
)

func TestRelayStates(t *testing.T) {
	tests := []struct {
		normal      NormalState
		restLevel   int
		closedLevel int
	}{
		{NormallyOpen, hal.Low, hal.High},
		{NormallyClosed, hal.Low, hal.Low},
	}
	for _, tt := range tests {
		t.Run(tt.normal.String(), func(t *testing.T) {
			hw := sim.NewHandler()
			r, err := New(hw, 26, tt.normal)
			if err != nil {
				t.Fatal(err)
			}
			if v, _ := hw.Value(26); v != tt.restLevel {
				t.Errorf("rest coil level = %d, want %d", v, tt.restLevel)
			}
			if r.IsClosed() != (tt.normal == NormallyClosed) {
				t.Errorf("rest contact closed = %v", r.IsClosed())
			}

			if err := r.Open(); err != nil {
				t.Fatal(err)
			}
			if r.IsClosed() {
				t.Error("Open left contacts closed")
			}
			if err := r.Close(); err != nil {
				t.Fatal(err)
			}
			if !r.IsClosed() {
				t.Error("Close left contacts open")
			}
			if v, _ := hw.Value(26); v != tt.closedLevel {
				t.Errorf("closed coil level = %d, want %d", v, tt.closedLevel)
			}
		})
	}
}

func TestRelayWriteFailure(t *testing.T) {
	hw := sim.NewHandler()
	r, err := New(hw, 26, NormallyOpen)
	if err != nil {
		t.Fatal(err)
	}
	hw.FailOn(26, errors.New("EIO"))
	if err := r.Close(); !errors.Is(err, hal.ErrHardwareWrite) {
		t.Errorf("got %v, want ErrHardwareWrite", err)
	}
	if r.IsClosed() {
		t.Error("failed switch changed the recorded state")
	}
}

func TestBank(t *testing.T) {
	hw := sim.NewHandler()
	b, err := NewBank(hw, NormallyOpen, 26, 19, 13)
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d", b.Len())
	}
	r, err := b.Channel(1)
	if err != nil {
		t.Fatal(err)
	}
	if r.Pin() != 19 {
		t.Errorf("channel 1 on line %d", r.Pin())
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.OpenAll(); err != nil {
		t.Fatal(err)
	}
	for _, pin := range []int{26, 19, 13} {
		if v, _ := hw.Value(pin); v != hal.Low {
			t.Errorf("line %d still energized", pin)
		}
	}
	if _, err := b.Channel(3); !errors.Is(err, hal.ErrInvalidValue) {
		t.Errorf("got %v, want ErrInvalidValue", err)
	}
}
