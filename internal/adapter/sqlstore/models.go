package sqlstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

type userRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"uniqueIndex;size:320"`
	CreatedAt time.Time
}

func (userRecord) TableName() string { return "users" }

type merchantRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"size:255;not null"`
	WebhookURL string    `gorm:"size:1024"`
	CreatedAt  time.Time
}

func (merchantRecord) TableName() string { return "merchants" }

type apiKeyRecord struct {
	KeyHash    string    `gorm:"primaryKey;size:64"`
	MerchantID uuid.UUID `gorm:"type:uuid;index"`
	KeyPrefix  string    `gorm:"size:16"`
	CreatedAt  time.Time
}

func (apiKeyRecord) TableName() string { return "api_keys" }

type walletRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	TotalPoints int64     `gorm:"not null;default:0"`
	Version     int64     `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}

func (walletRecord) TableName() string { return "wallets" }

type configRecord struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	MerchantID          uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	IssueRatePerDollar  int64     `gorm:"not null"`
	RedeemCapPercentage int64     `gorm:"not null"`
	PointBankIncluded   int64     `gorm:"not null"`
	PointBankPurchased  int64     `gorm:"not null"`
	SubscriptionStatus  string    `gorm:"size:32;index"`
	Plan                string    `gorm:"size:32"`
	Version             int64     `gorm:"not null;default:0"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (configRecord) TableName() string { return "merchant_loyalty_configs" }

type earningRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_earning_pair"`
	MerchantID  uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_earning_pair"`
	TotalEarned int64     `gorm:"not null;default:0"`
	Version     int64     `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}

func (earningRecord) TableName() string { return "user_merchant_earnings" }

// ledgerRecord stores an empty reference as NULL so the unique index only
// applies to real references.
type ledgerRecord struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CreatedAt  time.Time  `gorm:"index"`
	Type       string     `gorm:"size:8;not null;uniqueIndex:idx_ledger_reference,priority:2"`
	UserID     uuid.UUID  `gorm:"type:uuid;index"`
	MerchantID uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_ledger_reference,priority:1"`
	Points     int64      `gorm:"not null"`
	CentsValue *int64
	BucketUsed *string    `gorm:"size:16"`
	Reference  *string    `gorm:"size:128;uniqueIndex:idx_ledger_reference,priority:3"`
	ReversedOf *uuid.UUID `gorm:"type:uuid"`
	Metadata   string     `gorm:"type:text"`
}

func (ledgerRecord) TableName() string { return "ledger_entries" }

type webhookJobRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	MerchantID uuid.UUID `gorm:"type:uuid;index"`
	URL        string    `gorm:"size:1024"`
	Event      string    `gorm:"size:64"`
	Payload    string    `gorm:"type:text"`
	Attempts   int       `gorm:"not null;default:0"`
	Status     string    `gorm:"size:16;index"`
	NextRunAt  time.Time `gorm:"index"`
	CreatedAt  time.Time
}

func (webhookJobRecord) TableName() string { return "webhook_jobs" }

// AutoMigrate creates or updates every table the store uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userRecord{},
		&merchantRecord{},
		&apiKeyRecord{},
		&walletRecord{},
		&configRecord{},
		&earningRecord{},
		&ledgerRecord{},
		&webhookJobRecord{},
	)
}

func (r walletRecord) toDomain() domain.Wallet {
	return domain.Wallet{ID: r.ID, UserID: r.UserID, TotalPoints: r.TotalPoints, Version: r.Version, UpdatedAt: r.UpdatedAt}
}

func (r configRecord) toDomain() domain.MerchantConfig {
	return domain.MerchantConfig{
		ID:                  r.ID,
		MerchantID:          r.MerchantID,
		IssueRatePerDollar:  r.IssueRatePerDollar,
		RedeemCapPercentage: r.RedeemCapPercentage,
		PointBankIncluded:   r.PointBankIncluded,
		PointBankPurchased:  r.PointBankPurchased,
		SubscriptionStatus:  domain.SubscriptionStatus(r.SubscriptionStatus),
		Plan:                r.Plan,
		Version:             r.Version,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func configFromDomain(c domain.MerchantConfig) configRecord {
	return configRecord{
		ID:                  c.ID,
		MerchantID:          c.MerchantID,
		IssueRatePerDollar:  c.IssueRatePerDollar,
		RedeemCapPercentage: c.RedeemCapPercentage,
		PointBankIncluded:   c.PointBankIncluded,
		PointBankPurchased:  c.PointBankPurchased,
		SubscriptionStatus:  string(c.SubscriptionStatus),
		Plan:                c.Plan,
		Version:             c.Version,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func (r earningRecord) toDomain() domain.Earning {
	return domain.Earning{ID: r.ID, UserID: r.UserID, MerchantID: r.MerchantID, TotalEarned: r.TotalEarned, Version: r.Version, UpdatedAt: r.UpdatedAt}
}

func (r merchantRecord) toDomain() domain.Merchant {
	return domain.Merchant{ID: r.ID, Name: r.Name, WebhookURL: r.WebhookURL, CreatedAt: r.CreatedAt}
}

func ledgerFromDomain(e domain.LedgerEntry) ledgerRecord {
	rec := ledgerRecord{
		ID:         e.ID,
		CreatedAt:  e.CreatedAt,
		Type:       string(e.Type),
		UserID:     e.UserID,
		MerchantID: e.MerchantID,
		Points:     e.Points,
		CentsValue: e.CentsValue,
		ReversedOf: e.ReversedOf,
		Metadata:   string(e.Metadata),
	}
	if e.BucketUsed != "" {
		b := string(e.BucketUsed)
		rec.BucketUsed = &b
	}
	if e.Reference != "" {
		ref := e.Reference
		rec.Reference = &ref
	}
	if rec.Metadata == "" {
		rec.Metadata = "{}"
	}
	return rec
}

func (r ledgerRecord) toDomain() domain.LedgerEntry {
	e := domain.LedgerEntry{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		Type:       domain.EntryType(r.Type),
		UserID:     r.UserID,
		MerchantID: r.MerchantID,
		Points:     r.Points,
		CentsValue: r.CentsValue,
		ReversedOf: r.ReversedOf,
		Metadata:   []byte(r.Metadata),
	}
	if r.BucketUsed != nil {
		e.BucketUsed = domain.Bucket(*r.BucketUsed)
	}
	if r.Reference != nil {
		e.Reference = *r.Reference
	}
	return e
}

func (r webhookJobRecord) toDomain() domain.WebhookJob {
	return domain.WebhookJob{
		ID:         r.ID,
		MerchantID: r.MerchantID,
		URL:        r.URL,
		Event:      r.Event,
		Payload:    []byte(r.Payload),
		Attempts:   r.Attempts,
		Status:     domain.JobStatus(r.Status),
		NextRunAt:  r.NextRunAt,
		CreatedAt:  r.CreatedAt,
	}
}
