package stripepay

import (
	"testing"

	"vauntico-server/internal/domain/subscriptions"
)

func TestTierForPrice(t *testing.T) {
	a := New(Config{
		PriceIDs: map[string]string{
			subscriptions.TierCreatorPass: "price_creator",
			subscriptions.TierEnterprise:  "price_enterprise",
		},
	})

	tests := []struct {
		in   string
		want string
	}{
		{in: "price_creator", want: subscriptions.TierCreatorPass},
		{in: "price_enterprise", want: subscriptions.TierEnterprise},
		{in: "price_unknown", want: subscriptions.TierFree},
		{in: "", want: subscriptions.TierFree},
	}
	for _, tt := range tests {
		if got := a.TierForPrice(tt.in); got != tt.want {
			t.Fatalf("TierForPrice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTierForPrice_EmptyConfigNeverMatches(t *testing.T) {
	a := New(Config{PriceIDs: map[string]string{subscriptions.TierCreatorPass: ""}})
	if got := a.TierForPrice(""); got != subscriptions.TierFree {
		t.Fatalf("empty configured price must not match, got %q", got)
	}
}
