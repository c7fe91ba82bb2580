package convert

import "time"

// runBounded invokes call on an auxiliary goroutine and waits for it up to
// limit. When the deadline elapses first, the goroutine is permanently
// abandoned: nothing ever waits on it again, and whatever resource it is
// blocked on must be torn down out-of-band (process reaping). The result
// channel is buffered so an abandoned call can still complete and let its
// goroutine exit.
//
// This is the only way to impose a deadline on a blocking call that offers
// no cooperative cancellation.
func runBounded(call func() error, limit time.Duration) (timedOut bool, err error) {
	result := make(chan error, 1)

	go func() {
		result <- call()
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case callErr := <-result:
		return false, callErr
	case <-timer.C:
		return true, nil
	}
}
