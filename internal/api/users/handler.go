package users

import (
	"net/http"

	"vauntico-server/database"
	"vauntico-server/internal/domain/subscriptions"
	"vauntico-server/internal/domain/users"

	"github.com/gin-gonic/gin"
)

func GetCurrentUser(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user users.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	tier := subscriptions.TierFree
	status := "none"
	var sub subscriptions.Subscription
	if err := database.DB.Where("user_id = ?", user.ID).First(&sub).Error; err == nil {
		status = sub.Status
		if sub.Status == subscriptions.StatusActive {
			tier = sub.Tier
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"role":         user.Role,
		"authProvider": user.AuthProvider,
		"tier":         tier,
		"subscription": status,
		"limits":       subscriptions.LimitsForTier(tier),
	})
}
