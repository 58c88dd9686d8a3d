package storage

import (
	"context"
	"errors"
	"time"

	"vauntico-server/internal/domain/paymentbridge"
	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/domain/webhookevents"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the GORM-backed persistence layer shared by the payment services.
// Each service declares the subset it needs as its own interface; this struct
// satisfies all of them. The database row is the single source of truth, so
// every state mutation goes through a conditional predicate.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ClaimEvent atomically records a (provider, externalEventID) delivery.
// Returns true only for the call that won the insert; losers of a concurrent
// duplicate delivery get false. A row that was claimed but never stamped
// processed is claimable again, so a redelivery can retry a delivery that
// died mid-apply.
func (s *Store) ClaimEvent(ctx context.Context, provider, externalEventID, eventType string) (bool, error) {
	event := &webhookevents.WebhookEvent{
		Provider:        provider,
		ExternalEventID: externalEventID,
		EventType:       eventType,
		ReceivedAt:      time.Now(),
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "external_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected > 0 {
		return true, nil
	}

	tx = s.db.WithContext(ctx).Model(&webhookevents.WebhookEvent{}).
		Where("provider = ? AND external_event_id = ? AND processed_at IS NULL",
			provider, externalEventID).
		Update("received_at", time.Now())
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// MarkEventProcessed stamps processed_at on a claimed event, storing the
// processing error when the event was dropped as an anomaly.
func (s *Store) MarkEventProcessed(ctx context.Context, provider, externalEventID string, procErr error) error {
	now := time.Now()
	updates := map[string]any{"processed_at": &now}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	}
	return s.db.WithContext(ctx).Model(&webhookevents.WebhookEvent{}).
		Where("provider = ? AND external_event_id = ?", provider, externalEventID).
		Updates(updates).Error
}

// SubscriptionByUser returns nil, nil when the user has no subscription row.
func (s *Store) SubscriptionByUser(ctx context.Context, userID uint) (*subscriptions.Subscription, error) {
	var sub subscriptions.Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// SubscriptionByProviderRef returns nil, nil when no row matches.
func (s *Store) SubscriptionByProviderRef(ctx context.Context, provider, subscriptionRef string) (*subscriptions.Subscription, error) {
	var sub subscriptions.Subscription
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_subscription_ref = ?", provider, subscriptionRef).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription writes the row keyed by user_id, overwriting fields in
// place (one Subscription per user).
func (s *Store) UpsertSubscription(ctx context.Context, sub *subscriptions.Subscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider",
			"provider_customer_ref",
			"provider_subscription_ref",
			"tier",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"updated_at",
		}),
	}).Create(sub).Error
}

// SetCancelAtPeriodEnd flags the row without touching status; the canonical
// status changes only when the provider's cancellation webhook lands.
func (s *Store) SetCancelAtPeriodEnd(ctx context.Context, userID uint, flag bool) error {
	return s.db.WithContext(ctx).Model(&subscriptions.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"cancel_at_period_end": flag, "updated_at": time.Now()}).Error
}

func (s *Store) SaveCheckoutSession(ctx context.Context, cs *subscriptions.CheckoutSession) error {
	return s.db.WithContext(ctx).Create(cs).Error
}

// CheckoutSessionByReference returns nil, nil when no audit row matches.
func (s *Store) CheckoutSessionByReference(ctx context.Context, reference string) (*subscriptions.CheckoutSession, error) {
	var cs subscriptions.CheckoutSession
	err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&cs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

func (s *Store) CreatePaymentRequest(ctx context.Context, req *paymentbridge.PaymentRequest) error {
	return s.db.WithContext(ctx).Create(req).Error
}

// PaymentRequestByID returns nil, nil when no row matches.
func (s *Store) PaymentRequestByID(ctx context.Context, id string) (*paymentbridge.PaymentRequest, error) {
	var req paymentbridge.PaymentRequest
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// PaymentRequestByExternalRef matches either the provider's transfer
// reference or our own request reference. Returns nil, nil when absent.
func (s *Store) PaymentRequestByExternalRef(ctx context.Context, externalRef string) (*paymentbridge.PaymentRequest, error) {
	var req paymentbridge.PaymentRequest
	err := s.db.WithContext(ctx).
		Where("external_reference = ? OR reference = ?", externalRef, externalRef).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// PaymentRequestsByCreator lists a creator's requests, newest first. An
// empty status lists all of them.
func (s *Store) PaymentRequestsByCreator(ctx context.Context, creatorID uint, status string, limit, offset int) ([]paymentbridge.PaymentRequest, int64, error) {
	var total int64
	q := s.db.WithContext(ctx).Model(&paymentbridge.PaymentRequest{}).
		Where("creator_id = ?", creatorID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reqs []paymentbridge.PaymentRequest
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&reqs).Error
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// PaymentRequestsByStatus lists requests across all creators, newest first.
// An empty status lists everything.
func (s *Store) PaymentRequestsByStatus(ctx context.Context, status string, limit, offset int) ([]paymentbridge.PaymentRequest, int64, error) {
	q := s.db.WithContext(ctx).Model(&paymentbridge.PaymentRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reqs []paymentbridge.PaymentRequest
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&reqs).Error
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// TransitionPaymentRequest applies updates plus the status change only if the
// row is still in `from`. Returns false when the predicate missed.
func (s *Store) TransitionPaymentRequest(ctx context.Context, id, from, to string, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()
	tx := s.db.WithContext(ctx).Model(&paymentbridge.PaymentRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
