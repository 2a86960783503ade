package transaction

import (
	"context"
	"time"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/logging"
	"cipherdb/pkg/primitives"

	"github.com/cockroachdb/errors"
)

// Completer ends transactions; the buffer pool implements it.
type Completer interface {
	TransactionComplete(tid primitives.TransactionID, commit bool) error
}

// RetryOptions bounds how often Run reruns an aborted transaction.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var DefaultRetryOptions = RetryOptions{
	MaxAttempts: 5,
	BaseDelay:   5 * time.Millisecond,
	MaxDelay:    200 * time.Millisecond,
}

// Run executes fn in a fresh transaction and commits it. If fn or the commit
// fails the transaction is aborted. Retryable failures (deadlock, lock
// timeout, lock conflict) rerun fn from scratch in a new transaction, with
// exponential backoff, up to MaxAttempts times.
func Run(ctx context.Context, c Completer, opts RetryOptions, fn func(tid primitives.TransactionID) error) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	var lastErr error
	delay := opts.BaseDelay
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.CombineErrors(err, lastErr)
		}

		tid := primitives.NewTransactionID()
		lastErr = runOnce(c, tid, fn)
		if lastErr == nil {
			return nil
		}
		if !dberror.IsRetryable(lastErr) {
			return lastErr
		}

		logging.WithTx(tid).Debug("transaction aborted, retrying", "attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return errors.CombineErrors(ctx.Err(), lastErr)
		case <-time.After(delay):
		}
		delay = min(delay*2, opts.MaxDelay)
	}
	return errors.Wrapf(lastErr, "transaction gave up after %d attempts", opts.MaxAttempts)
}

func runOnce(c Completer, tid primitives.TransactionID, fn func(primitives.TransactionID) error) error {
	if err := fn(tid); err != nil {
		if abortErr := c.TransactionComplete(tid, false); abortErr != nil {
			return errors.CombineErrors(err, abortErr)
		}
		return err
	}
	if err := c.TransactionComplete(tid, true); err != nil {
		_ = c.TransactionComplete(tid, false)
		return err
	}
	return nil
}
