package subscriptions

import "strings"

// Tier constants (single source of truth)
const (
	TierFree        = "free"
	TierCreatorPass = "creator_pass"
	TierEnterprise  = "enterprise"
)

// PaystackAmountKobo is the static tier pricing for Paystack in minor units
// (kobo). Stripe pricing lives on the provider side behind price IDs.
var PaystackAmountKobo = map[string]int64{
	TierCreatorPass: 290000, // ₦2,900
	TierEnterprise:  990000, // ₦9,900
}

// IsPaidTier reports whether the tier can be purchased through checkout.
func IsPaidTier(tier string) bool {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case TierCreatorPass, TierEnterprise:
		return true
	}
	return false
}

// Limits describes what a tier entitles the user to. -1 means unlimited.
type Limits struct {
	Vaults        int `json:"vaults"`
	AIGenerations int `json:"aiGenerations"`
	StorageGB     int `json:"storageGb"`
	TeamMembers   int `json:"teamMembers"`
}

var tierLimits = map[string]Limits{
	TierFree:        {Vaults: 3, AIGenerations: 50, StorageGB: 1, TeamMembers: 1},
	TierCreatorPass: {Vaults: -1, AIGenerations: -1, StorageGB: 100, TeamMembers: 10},
	TierEnterprise:  {Vaults: -1, AIGenerations: -1, StorageGB: -1, TeamMembers: -1},
}

// LimitsForTier returns the entitlement limits for a tier, falling back to
// the free tier for anything unknown.
func LimitsForTier(tier string) Limits {
	if l, ok := tierLimits[strings.ToLower(strings.TrimSpace(tier))]; ok {
		return l
	}
	return tierLimits[TierFree]
}
