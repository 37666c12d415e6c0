// Package probe has small helpers for checking header wiring: sampling a
// line, pulsing it, and parking a set of lines as pulled-down inputs.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

// Sample configures pin as a pulled-down input and reads it samples times,
// interval apart. It returns the levels read so far if ctx is cancelled.
func Sample(ctx context.Context, hw hal.GPIOHandler, pin int, samples int, interval time.Duration) ([]int, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("sample count %d must be positive: %w", samples, hal.ErrInvalidValue)
	}
	if err := hw.Configure(pin, hal.DirectionInput, hal.PullDown); err != nil {
		return nil, fmt.Errorf("failed to configure probe line %d: %w", pin, err)
	}
	levels := make([]int, 0, samples)
	for i := 0; i < samples; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return levels, ctx.Err()
			case <-time.After(interval):
			}
		}
		v, err := hw.Value(pin)
		if err != nil {
			return levels, fmt.Errorf("failed to read probe line %d: %w", pin, err)
		}
		levels = append(levels, v)
	}
	return levels, nil
}

// Hold drives pin high, then low, keeps it low for duration and releases it.
// The line is released even when the wait is cancelled.
func Hold(ctx context.Context, hw hal.GPIOHandler, pin int, duration time.Duration) (err error) {
	if err := hw.Configure(pin, hal.DirectionOutput, hal.PullNone); err != nil {
		return fmt.Errorf("failed to configure probe line %d: %w", pin, err)
	}
	defer func() {
		if rerr := hw.Release(pin); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to release probe line %d: %w", pin, rerr))
		}
	}()
	for _, level := range []int{hal.High, hal.Low} {
		if err := hw.SetValue(pin, level); err != nil {
			return fmt.Errorf("failed to drive probe line %d: %w", pin, err)
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(duration):
	}
	return nil
}

// PullDownAll configures every pin as a pulled-down input. All pins are
// attempted; the returned error joins the individual failures.
func PullDownAll(hw hal.GPIOHandler, pins []int) error {
	var errs []error
	for _, pin := range pins {
		if err := hw.Configure(pin, hal.DirectionInput, hal.PullDown); err != nil {
			errs = append(errs, fmt.Errorf("failed to pull down line %d: %w", pin, err))
		}
	}
	return errors.Join(errs...)
}
