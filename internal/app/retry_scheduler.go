package app

import "time"

// RetryScheduler schedules reconnection attempts with exponential backoff.
// It exists as its own type so tests can compute delays deterministically and
// production code can cancel a pending retry on manual disconnect.
type RetryScheduler struct {
	baseDelay   time.Duration
	maxAttempts int

	newTimer func(time.Duration) retryTimer // injectable for tests
}

type retryTimer interface {
	C() <-chan time.Time
	Stop() bool
}

type realTimer struct{ t *time.Timer }

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }

// NewRetryScheduler creates a scheduler with the given base delay and cap.
func NewRetryScheduler(baseDelay time.Duration, maxAttempts int) *RetryScheduler {
	return &RetryScheduler{
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		newTimer: func(d time.Duration) retryTimer {
			return realTimer{t: time.NewTimer(d)}
		},
	}
}

// Delay returns the backoff delay for the given 1-based attempt number:
// base x 2^(attempt-1).
func (s *RetryScheduler) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return s.baseDelay << uint(attempt-1)
}

// Exhausted reports whether the attempt number exceeds the retry cap.
func (s *RetryScheduler) Exhausted(attempt int) bool {
	return attempt > s.maxAttempts
}

// MaxAttempts returns the retry cap.
func (s *RetryScheduler) MaxAttempts() int {
	return s.maxAttempts
}

// Schedule returns a channel that fires after the backoff delay for the
// attempt, plus a cancel function. Cancel is safe to call more than once.
func (s *RetryScheduler) Schedule(attempt int) (<-chan time.Time, func()) {
	timer := s.newTimer(s.Delay(attempt))
	return timer.C(), func() { timer.Stop() }
}
