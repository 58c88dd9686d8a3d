package subscriptions

import "strings"

// Canonical subscription statuses
const (
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusIncomplete = "incomplete"
)

// MapProviderStatus translates a provider-reported subscription status onto
// the canonical status machine. Adapters normalize their own vocabulary to
// the input vocabulary of this table first; anything outside the table is an
// anomaly and the caller must drop the event unchanged.
func MapProviderStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "trialing":
		return StatusActive, true
	case "past_due":
		return StatusPastDue, true
	case "canceled", "paused":
		return StatusCanceled, true
	case "incomplete", "incomplete_expired":
		return StatusIncomplete, true
	default:
		return "", false
	}
}

// IsTerminal reports whether a canonical status ends the current
// provider-subscription pairing. A later, brand-new subscription updates the
// same row in place.
func IsTerminal(status string) bool {
	return status == StatusCanceled
}
