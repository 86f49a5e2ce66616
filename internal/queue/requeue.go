package queue

import "time"

const (
	requeueBaseBackoff = 24 * time.Hour
	requeueMaxShift    = 5
)

// ShouldRequeue decides whether a scan puts book back in the queue. A nil
// book has never been seen and is always queued. The returned reason names
// the rule that applied.
func ShouldRequeue(book *Book, maxRetries int, now time.Time) (bool, string) {
	if book == nil {
		return true, "new"
	}
	switch {
	case book.UserLocked:
		return false, "locked"
	case book.Status == StatusNeedsAttention:
		return false, "needs_attention"
	case (book.Status == StatusVerified || book.Status == StatusFixed || book.Status == StatusNeedsFix) && book.ProfileJSON != "":
		return false, "identified"
	case maxRetries > 0 && book.AttemptCount >= maxRetries:
		return false, "max_retries"
	}
	if book.AttemptCount > 0 && !book.LastAttempted.IsZero() {
		wait := requeueBaseBackoff << min(book.AttemptCount, requeueMaxShift)
		if now.Before(book.LastAttempted.Add(wait)) {
			return false, "backoff"
		}
		return true, "retry"
	}
	return true, "pending"
}
