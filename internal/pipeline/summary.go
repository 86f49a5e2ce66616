package pipeline

import "librarian/internal/queue"

// Outcome is what one layer step did with a book.
type Outcome string

const (
	OutcomeAdvanced       Outcome = "advanced"
	OutcomeVerified       Outcome = "verified"
	OutcomeNeedsFix       Outcome = "needs_fix"
	OutcomeFixed          Outcome = "fixed"
	OutcomeNeedsAttention Outcome = "needs_attention"
	OutcomeSkipped        Outcome = "skipped"
)

func outcomeFor(status queue.Status) Outcome {
	switch status {
	case queue.StatusVerified:
		return OutcomeVerified
	case queue.StatusNeedsFix:
		return OutcomeNeedsFix
	case queue.StatusNeedsAttention:
		return OutcomeNeedsAttention
	}
	return OutcomeAdvanced
}

// Summary counts the outcomes of one batch.
type Summary struct {
	Processed      int `json:"processed"`
	Advanced       int `json:"advanced"`
	Verified       int `json:"verified"`
	NeedsFix       int `json:"needs_fix"`
	Fixed          int `json:"fixed"`
	NeedsAttention int `json:"needs_attention"`
	Skipped        int `json:"skipped"`
}

func (s *Summary) add(o Outcome) {
	s.Processed++
	switch o {
	case OutcomeAdvanced:
		s.Advanced++
	case OutcomeVerified:
		s.Verified++
	case OutcomeNeedsFix:
		s.NeedsFix++
	case OutcomeFixed:
		s.Fixed++
	case OutcomeNeedsAttention:
		s.NeedsAttention++
	case OutcomeSkipped:
		s.Skipped++
	}
}
