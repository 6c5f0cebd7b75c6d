package resilience

import (
	"time"
)

// DeadLetter represents a failed operation that was logged and skipped
// rather than aborting its parent pipeline, and that can be inspected or
// retried later.
type DeadLetter struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"` // e.g. a company LinkedIn URL
	Phase        string    `json:"phase,omitempty"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DeadLetterFilter specifies criteria for querying dead letters.
type DeadLetterFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DeadLetter) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
