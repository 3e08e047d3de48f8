// Package health reports chronodb indexer liveness: a single checker
// for the one thing chronodb supervises, one internal consume loop,
// rather than a fleet of containers.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Result is the outcome of one liveness check.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker reports whether the indexer is making progress.
type Checker interface {
	Check(ctx context.Context) Result
}

// IndexerStatus is the liveness signal an indexer publishes after
// every consume-and-index call. Recency of LastSuccessAt is what a
// Checker actually evaluates; the indexer itself has no notion of
// "healthy", only of when it last completed a poll-apply-commit
// cycle.
type IndexerStatus struct {
	mu            sync.RWMutex
	lastSuccessAt time.Time
	lastErr       error
	pendingTxs    int
}

// NewIndexerStatus returns a status with LastSuccessAt set to now, so
// a freshly started indexer is not immediately reported stale.
func NewIndexerStatus() *IndexerStatus {
	return &IndexerStatus{lastSuccessAt: time.Now()}
}

// RecordSuccess marks a consume-and-index call as having completed,
// along with the resulting pending-tx queue depth.
func (s *IndexerStatus) RecordSuccess(pendingTxs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSuccessAt = time.Now()
	s.lastErr = nil
	s.pendingTxs = pendingTxs
}

// RecordError marks a consume-and-index call as having failed.
// LastSuccessAt is left unchanged so staleness accumulates across
// repeated failures.
func (s *IndexerStatus) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *IndexerStatus) snapshot() (time.Time, error, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccessAt, s.lastErr, s.pendingTxs
}

// IndexerChecker reports the indexer unhealthy once its last
// successful consume-and-index call is older than StaleAfter, or its
// most recent call returned an error.
type IndexerChecker struct {
	Status     *IndexerStatus
	StaleAfter time.Duration
}

// NewIndexerChecker constructs a Checker over status with staleAfter
// as the liveness threshold.
func NewIndexerChecker(status *IndexerStatus, staleAfter time.Duration) *IndexerChecker {
	return &IndexerChecker{Status: status, StaleAfter: staleAfter}
}

// Check implements Checker.
func (c *IndexerChecker) Check(_ context.Context) Result {
	start := time.Now()
	lastSuccess, lastErr, pending := c.Status.snapshot()

	if lastErr != nil {
		return Result{Healthy: false, Message: fmt.Sprintf("last consume-and-index call failed: %v", lastErr), CheckedAt: start, Duration: time.Since(start)}
	}

	age := time.Since(lastSuccess)
	if age > c.StaleAfter {
		return Result{Healthy: false, Message: fmt.Sprintf("indexer has not completed a consume-and-index call in %s (threshold %s)", age.Round(time.Second), c.StaleAfter), CheckedAt: start, Duration: time.Since(start)}
	}

	return Result{Healthy: true, Message: fmt.Sprintf("last consume-and-index call %s ago, %d pending transactions", age.Round(time.Millisecond), pending), CheckedAt: start, Duration: time.Since(start)}
}

var _ Checker = (*IndexerChecker)(nil)
