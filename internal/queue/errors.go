package queue

import "librarian/internal/services"

// FailureStatus maps an error that ended a book's pipeline run to the status
// stored on the book. Transient failures leave the book pending so the next
// scan retries it; everything else needs a person to look at it.
func FailureStatus(err error) Status {
	if err == nil {
		return StatusPending
	}
	if services.IsTransient(err) {
		return StatusPending
	}
	return StatusNeedsAttention
}
