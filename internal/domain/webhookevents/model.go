package webhookevents

import "time"

// WebhookEvent is the idempotency record for provider webhook deliveries.
// (provider, external_event_id) is unique; the insert doubles as the claim
// that serializes concurrent duplicate deliveries. A null ProcessedAt means
// "seen but not yet successfully applied".
type WebhookEvent struct {
	ID              uint   `gorm:"primaryKey"`
	Provider        string `gorm:"type:varchar(20);not null;uniqueIndex:idx_webhook_events_provider_event,priority:1"`
	ExternalEventID string `gorm:"not null;uniqueIndex:idx_webhook_events_provider_event,priority:2"`
	EventType       string
	ReceivedAt      time.Time `gorm:"not null"`
	ProcessedAt     *time.Time
	ProcessingError string
}
