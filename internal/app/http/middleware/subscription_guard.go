package middleware

import (
	"net/http"

	"vauntico-server/database"
	"vauntico-server/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

// RequirePaidSubscription gates routes reserved for paying creators. The
// canonical subscription row decides; past_due and incomplete do not count.
func RequirePaidSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")

		var sub subscriptions.Subscription
		if err := database.DB.Where("user_id = ?", userID).First(&sub).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "A paid subscription is required for this feature",
			})
			return
		}

		if sub.Status != subscriptions.StatusActive || !subscriptions.IsPaidTier(sub.Tier) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error": "Your subscription is not active",
			})
			return
		}

		c.Next()
	}
}
