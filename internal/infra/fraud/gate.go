package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Verdict recommendations, ordered by severity.
const (
	RecommendationApprove   = "approve"
	RecommendationChallenge = "challenge"
	RecommendationReview    = "review"
	RecommendationDeny      = "deny"
)

// CheckInput is the payload sent to the risk-scoring service before any
// money-moving action.
type CheckInput struct {
	UserID      uint   `json:"userId"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
	IP          string `json:"ip"`
	UserAgent   string `json:"userAgent"`
}

// Verdict is the gate's decision. Only Deny blocks the action; Review
// proceeds but is recorded for audit.
type Verdict struct {
	Score          int
	Recommendation string
}

func (v Verdict) Denied() bool { return v.Recommendation == RecommendationDeny }

// Gate is the fraud-risk collaborator consulted before checkout and payout.
type Gate interface {
	Check(ctx context.Context, in CheckInput) Verdict
}

// VerdictForScore maps a numeric risk score onto a recommendation.
func VerdictForScore(score int) Verdict {
	v := Verdict{Score: score, Recommendation: RecommendationApprove}
	switch {
	case score >= 80:
		v.Recommendation = RecommendationDeny
	case score >= 60:
		v.Recommendation = RecommendationReview
	case score >= 40:
		v.Recommendation = RecommendationChallenge
	}
	return v
}

// HTTPGate calls an external risk-scoring service. When scoring is
// unreachable it fails open with a mid-range review verdict rather than
// blocking legitimate payments.
type HTTPGate struct {
	url    string
	client *http.Client
}

func NewHTTPGate(url string) *HTTPGate {
	return &HTTPGate{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (g *HTTPGate) Check(ctx context.Context, in CheckInput) Verdict {
	if g.url == "" {
		// Scoring disabled; admit everything.
		return Verdict{Score: 0, Recommendation: RecommendationApprove}
	}

	body, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return g.failOpen(in.UserID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return g.failOpen(in.UserID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return g.failOpen(in.UserID, fmt.Errorf("fraud gate returned %d", resp.StatusCode))
	}

	var out struct {
		Score int `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return g.failOpen(in.UserID, err)
	}
	return VerdictForScore(out.Score)
}

func (g *HTTPGate) failOpen(userID uint, err error) Verdict {
	slog.Error("fraud analysis failed, defaulting to review", "user_id", userID, "error", err)
	return Verdict{Score: 50, Recommendation: RecommendationReview}
}
