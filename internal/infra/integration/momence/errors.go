package momence

import "fmt"

// Failure reasons, as persisted on retry-queue entries.
const (
	ReasonRateLimited    = "rate_limited"
	ReasonBadRequest     = "api_bad_request"
	ReasonEdgeDefense    = "blocked_by_edge_defense"
	ReasonNetwork        = "network_error"
	ReasonAPIError       = "api_error"
	ReasonInvalidPayload = "invalid_payload"
)

type DeliveryError struct {
	Reason     string
	Retryable  bool
	StatusCode int
	Message    string
}

func (e *DeliveryError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("momence delivery failed (%s, status %d): %s", e.Reason, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("momence delivery failed (%s): %s", e.Reason, e.Message)
}

// FailureReason extracts the classified reason; unknown errors count as network
// failures so they stay retryable.
func FailureReason(err error) string {
	if de, ok := err.(*DeliveryError); ok {
		return de.Reason
	}
	return ReasonNetwork
}

// IsPermanent reports whether the failure should never be retried.
func IsPermanent(err error) bool {
	de, ok := err.(*DeliveryError)
	return ok && !de.Retryable
}
