package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntryType is the kind of ledger fact. Points on an entry are always positive;
// the direction is implied by the type.
type EntryType string

const (
	EntryMint EntryType = "mint"
	EntryBurn EntryType = "burn"
)

func (t EntryType) Valid() bool {
	return t == EntryMint || t == EntryBurn
}

// Bucket reports which part of a merchant's point bank funded a mint.
type Bucket string

const (
	BucketIncluded Bucket = "Included"
	BucketMixed    Bucket = "Mixed"
)

type SubscriptionStatus string

const (
	StatusBeta      SubscriptionStatus = "beta"
	StatusActive    SubscriptionStatus = "active"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusBeta, StatusActive, StatusPastDue, StatusCancelled:
		return true
	}
	return false
}

// Participating reports whether a config in this status may issue and accept points.
func (s SubscriptionStatus) Participating() bool {
	return s == StatusBeta || s == StatusActive
}

// User is the directory entry issuance resolves customer emails against.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Merchant is the display identity of a participating business.
type Merchant struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	WebhookURL string    `json:"webhook_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Wallet holds a user's spendable points across all merchants.
type Wallet struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	TotalPoints int64     `json:"total_points"`
	Version     int64     `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MerchantConfig is a merchant's loyalty settings and its two-bucket point bank.
type MerchantConfig struct {
	ID                  uuid.UUID          `json:"id"`
	MerchantID          uuid.UUID          `json:"merchant_id"`
	IssueRatePerDollar  int64              `json:"issue_rate_per_dollar"`
	RedeemCapPercentage int64              `json:"redeem_cap_percentage"`
	PointBankIncluded   int64              `json:"point_bank_included"`
	PointBankPurchased  int64              `json:"point_bank_purchased"`
	SubscriptionStatus  SubscriptionStatus `json:"subscription_status"`
	Plan                string             `json:"plan"`
	Version             int64              `json:"-"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// TotalBank is the number of points the merchant may still mint.
func (c MerchantConfig) TotalBank() int64 {
	return c.PointBankIncluded + c.PointBankPurchased
}

// ConfigPatch is a partial config update. Nil fields are left unchanged.
type ConfigPatch struct {
	IssueRatePerDollar  *int64
	RedeemCapPercentage *int64
	PointBankIncluded   *int64
	PointBankPurchased  *int64
	SubscriptionStatus  *SubscriptionStatus
}

// Apply returns a copy of c with the patch applied.
func (c MerchantConfig) Apply(p ConfigPatch) MerchantConfig {
	if p.IssueRatePerDollar != nil {
		c.IssueRatePerDollar = *p.IssueRatePerDollar
	}
	if p.RedeemCapPercentage != nil {
		c.RedeemCapPercentage = *p.RedeemCapPercentage
	}
	if p.PointBankIncluded != nil {
		c.PointBankIncluded = *p.PointBankIncluded
	}
	if p.PointBankPurchased != nil {
		c.PointBankPurchased = *p.PointBankPurchased
	}
	if p.SubscriptionStatus != nil {
		c.SubscriptionStatus = *p.SubscriptionStatus
	}
	return c
}

// LedgerEntry is an immutable mint or burn fact.
type LedgerEntry struct {
	ID         uuid.UUID       `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Type       EntryType       `json:"type"`
	UserID     uuid.UUID       `json:"user_id"`
	MerchantID uuid.UUID       `json:"merchant_id"`
	Points     int64           `json:"points"`
	CentsValue *int64          `json:"cents_value,omitempty"`
	BucketUsed Bucket          `json:"bucket_used,omitempty"`
	Reference  string          `json:"reference,omitempty"`
	ReversedOf *uuid.UUID      `json:"reversed_of,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// LedgerLine is a ledger entry joined with the merchant's display name.
type LedgerLine struct {
	LedgerEntry
	MerchantName string `json:"merchant_name"`
}

// Earning is the cumulative mint total for one (user, merchant) pair.
// Redemptions never decrement it.
type Earning struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	MerchantID  uuid.UUID `json:"merchant_id"`
	TotalEarned int64     `json:"total_earned"`
	Version     int64     `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type EarningLine struct {
	Earning
	MerchantName string `json:"merchant_name"`
}

type ParticipatingMerchant struct {
	MerchantID          uuid.UUID `json:"merchant_id"`
	Name                string    `json:"name"`
	RedeemCapPercentage int64     `json:"redeem_cap_percentage"`
}

// LedgerTotals aggregates a user's ledger history.
type LedgerTotals struct {
	Minted int64 `json:"minted"`
	Burned int64 `json:"burned"`
}

type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// WebhookJob is an outbox row written in the same transaction as the ledger entry it announces.
type WebhookJob struct {
	ID         uuid.UUID
	MerchantID uuid.UUID
	URL        string
	Event      string
	Payload    []byte
	Attempts   int
	Status     JobStatus
	NextRunAt  time.Time
	CreatedAt  time.Time
}
