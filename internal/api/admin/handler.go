package admin

import (
	"net/http"
	"strconv"
	"time"

	"vauntico-server/database"
	"vauntico-server/internal/domain/paymentbridge"
	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/domain/users"
	"vauntico-server/internal/domain/webhookevents"

	"github.com/gin-gonic/gin"
)

type AdminStats struct {
	TotalUsers           int            `json:"total_users"`
	SubscriptionsPerTier map[string]int `json:"subscriptions_per_tier"`
	SubscriptionsByState map[string]int `json:"subscriptions_by_state"`
	PendingPayoutCents   int64          `json:"pending_payout_cents"`
	PaidPayoutCents      int64          `json:"paid_payout_cents"`
	RecentPaidCents      int64          `json:"recent_paid_cents"`
	DroppedEvents        int            `json:"dropped_events"`
}

func AdminDashboard(c *gin.Context) {
	var stats AdminStats

	var totalUsers int64
	database.DB.Model(&users.User{}).Count(&totalUsers)
	stats.TotalUsers = int(totalUsers)

	type bucket struct {
		Key   string
		Count int
	}

	var tierCounts []bucket
	database.DB.Model(&subscriptions.Subscription{}).
		Select("tier as key, COUNT(*) as count").
		Where("status = ?", subscriptions.StatusActive).
		Group("tier").
		Scan(&tierCounts)
	stats.SubscriptionsPerTier = map[string]int{}
	for _, b := range tierCounts {
		stats.SubscriptionsPerTier[b.Key] = b.Count
	}

	var statusCounts []bucket
	database.DB.Model(&subscriptions.Subscription{}).
		Select("status as key, COUNT(*) as count").
		Group("status").
		Scan(&statusCounts)
	stats.SubscriptionsByState = map[string]int{}
	for _, b := range statusCounts {
		stats.SubscriptionsByState[b.Key] = b.Count
	}

	database.DB.Model(&paymentbridge.PaymentRequest{}).
		Where("status = ?", paymentbridge.StatusPending).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&stats.PendingPayoutCents)

	database.DB.Model(&paymentbridge.PaymentRequest{}).
		Where("status = ?", paymentbridge.StatusPaid).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&stats.PaidPayoutCents)

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	database.DB.Model(&paymentbridge.PaymentRequest{}).
		Where("status = ? AND updated_at >= ?", paymentbridge.StatusPaid, thirtyDaysAgo).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&stats.RecentPaidCents)

	var dropped int64
	database.DB.Model(&webhookevents.WebhookEvent{}).
		Where("processing_error IS NOT NULL AND processing_error <> ''").
		Count(&dropped)
	stats.DroppedEvents = int(dropped)

	c.JSON(http.StatusOK, stats)
}

// ListPaymentRequests handles GET /admin/payment-requests?status=pending.
func ListPaymentRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	q := database.DB.Model(&paymentbridge.PaymentRequest{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	q.Count(&total)

	var reqs []paymentbridge.PaymentRequest
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&reqs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payment requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": reqs, "total": total})
}

// ListSubscriptions handles GET /admin/subscriptions.
func ListSubscriptions(c *gin.Context) {
	var subs []subscriptions.Subscription
	q := database.DB.Order("updated_at DESC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&subs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}
	c.JSON(http.StatusOK, subs)
}

// ListDroppedEvents handles GET /admin/webhook-anomalies: events that were
// acknowledged but could not be applied.
func ListDroppedEvents(c *gin.Context) {
	var events []webhookevents.WebhookEvent
	err := database.DB.
		Where("processing_error IS NOT NULL AND processing_error <> ''").
		Order("received_at DESC").
		Limit(200).
		Find(&events).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load webhook events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetUserDetails handles GET /admin/user/:id.
func GetUserDetails(c *gin.Context) {
	userID := c.Param("id")

	var user users.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var sub subscriptions.Subscription
	var subPtr *subscriptions.Subscription
	if err := database.DB.Where("user_id = ?", user.ID).First(&sub).Error; err == nil {
		subPtr = &sub
	}

	var requests []paymentbridge.PaymentRequest
	database.DB.Where("creator_id = ?", user.ID).Order("created_at DESC").Limit(50).Find(&requests)

	c.JSON(http.StatusOK, gin.H{
		"user":            user,
		"subscription":    subPtr,
		"paymentRequests": requests,
	})
}
