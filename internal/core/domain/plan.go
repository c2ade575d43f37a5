package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Plan describes the starting configuration a merchant is provisioned with.
type Plan struct {
	Name                string
	IssueRatePerDollar  int64
	RedeemCapPercentage int64
	IncludedPoints      int64
	Status              SubscriptionStatus
}

var (
	// BetaPlan is the promotional free allowance.
	BetaPlan = Plan{Name: "beta", IssueRatePerDollar: 50, RedeemCapPercentage: 20, IncludedPoints: 20000, Status: StatusBeta}
	// StandardPlan starts with an empty bank; points must be purchased.
	StandardPlan = Plan{Name: "standard", IssueRatePerDollar: 50, RedeemCapPercentage: 20, IncludedPoints: 0, Status: StatusActive}
)

// PlanNone registers a merchant without a loyalty config; it stays
// non-participating until provisioned.
const PlanNone = "none"

var plans = map[string]Plan{
	BetaPlan.Name:     BetaPlan,
	StandardPlan.Name: StandardPlan,
}

// PlanByName looks a plan up case-insensitively; an empty name selects BetaPlan.
func PlanByName(name string) (Plan, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return BetaPlan, true
	}
	p, ok := plans[name]
	return p, ok
}

func (p Plan) NewConfig(merchantID uuid.UUID, now time.Time) MerchantConfig {
	return MerchantConfig{
		ID:                  uuid.New(),
		MerchantID:          merchantID,
		IssueRatePerDollar:  p.IssueRatePerDollar,
		RedeemCapPercentage: p.RedeemCapPercentage,
		PointBankIncluded:   p.IncludedPoints,
		PointBankPurchased:  0,
		SubscriptionStatus:  p.Status,
		Plan:                p.Name,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
