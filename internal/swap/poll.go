package swap

import (
	"context"
	"time"
)

// DefaultPollInterval is the pause between ledger polls.
const DefaultPollInterval = time.Second

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// poll calls check every interval until it reports done, fails, or ctx is
// done. The first check runs immediately.
func poll(ctx context.Context, interval time.Duration, check func() (bool, error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := check()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if done {
			return nil
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}
