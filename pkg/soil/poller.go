package soil

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

// Poll reads the sensor every interval and passes each result to sink until
// ctx is done. Failed reads are reported with a zero Reading and retried with
// an exponential delay capped at maxRetryDelay, so a disconnected bus does
// not flood the sink.
func Poll(ctx context.Context, s *Sensor, interval time.Duration, maxRetryDelay time.Duration, sink func(Reading, error)) error {
	b := &backoff.Backoff{
		Min:    interval,
		Max:    maxRetryDelay,
		Factor: 2,
		Jitter: false,
	}
	for {
		r, err := s.Read()
		sink(r, err)

		wait := interval
		if err != nil {
			wait = b.Duration()
		} else {
			b.Reset()
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
