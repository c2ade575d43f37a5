package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

type txStore struct {
	db *gorm.DB
}

func (t *txStore) AppendLedger(ctx context.Context, e domain.LedgerEntry) (domain.LedgerEntry, error) {
	if e.Points <= 0 || !e.Type.Valid() {
		return domain.LedgerEntry{}, fmt.Errorf("%w: ledger entry needs positive points and a mint or burn type", domain.ErrInvalidInput)
	}
	rec := ledgerFromDomain(e)
	if err := t.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.LedgerEntry{}, fmt.Errorf("%w: reference %q recorded concurrently", domain.ErrConflict, e.Reference)
		}
		return domain.LedgerEntry{}, err
	}
	return rec.toDomain(), nil
}

func (t *txStore) FindLedgerByReference(ctx context.Context, merchantID uuid.UUID, typ domain.EntryType, reference string) (domain.LedgerEntry, error) {
	var rec ledgerRecord
	err := t.db.WithContext(ctx).
		Where("merchant_id = ? AND type = ? AND reference = ?", merchantID, string(typ), reference).
		First(&rec).Error
	if err != nil {
		return domain.LedgerEntry{}, mapErr(err)
	}
	return rec.toDomain(), nil
}

func (t *txStore) GetOrCreateWallet(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Wallet, error) {
	var rec walletRecord
	err := t.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Attrs(walletRecord{ID: uuid.New(), UserID: userID, UpdatedAt: now}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return domain.Wallet{}, mapErr(err)
	}
	return rec.toDomain(), nil
}

func (t *txStore) SetWalletBalance(ctx context.Context, w domain.Wallet, balance int64, now time.Time) (domain.Wallet, error) {
	res := t.db.WithContext(ctx).
		Model(&walletRecord{}).
		Where("id = ? AND version = ?", w.ID, w.Version).
		Updates(map[string]any{"total_points": balance, "version": w.Version + 1, "updated_at": now})
	if res.Error != nil {
		return domain.Wallet{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Wallet{}, t.missingOrMoved(ctx, &walletRecord{}, w.ID)
	}
	w.TotalPoints, w.Version, w.UpdatedAt = balance, w.Version+1, now
	return w, nil
}

func (t *txStore) GetMerchantConfig(ctx context.Context, merchantID uuid.UUID) (domain.MerchantConfig, error) {
	var rec configRecord
	if err := t.db.WithContext(ctx).Where("merchant_id = ?", merchantID).First(&rec).Error; err != nil {
		return domain.MerchantConfig{}, mapErr(err)
	}
	return rec.toDomain(), nil
}

func (t *txStore) CreateMerchantConfig(ctx context.Context, cfg domain.MerchantConfig) (domain.MerchantConfig, error) {
	rec := configFromDomain(cfg)
	if err := t.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.MerchantConfig{}, mapErr(err)
	}
	return rec.toDomain(), nil
}

func (t *txStore) UpdateMerchantConfig(ctx context.Context, cfg domain.MerchantConfig, patch domain.ConfigPatch, now time.Time) (domain.MerchantConfig, error) {
	next := cfg.Apply(patch)
	res := t.db.WithContext(ctx).
		Model(&configRecord{}).
		Where("id = ? AND version = ?", cfg.ID, cfg.Version).
		Updates(map[string]any{
			"issue_rate_per_dollar": next.IssueRatePerDollar,
			"redeem_cap_percentage": next.RedeemCapPercentage,
			"point_bank_included":   next.PointBankIncluded,
			"point_bank_purchased":  next.PointBankPurchased,
			"subscription_status":   string(next.SubscriptionStatus),
			"version":               cfg.Version + 1,
			"updated_at":            now,
		})
	if res.Error != nil {
		return domain.MerchantConfig{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.MerchantConfig{}, t.missingOrMoved(ctx, &configRecord{}, cfg.ID)
	}
	next.Version, next.UpdatedAt = cfg.Version+1, now
	return next, nil
}

func (t *txStore) GetOrCreateEarning(ctx context.Context, userID, merchantID uuid.UUID, now time.Time) (domain.Earning, error) {
	var rec earningRecord
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND merchant_id = ?", userID, merchantID).
		Attrs(earningRecord{ID: uuid.New(), UserID: userID, MerchantID: merchantID, UpdatedAt: now}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return domain.Earning{}, mapErr(err)
	}
	return rec.toDomain(), nil
}

func (t *txStore) SetEarningTotal(ctx context.Context, e domain.Earning, total int64, now time.Time) (domain.Earning, error) {
	res := t.db.WithContext(ctx).
		Model(&earningRecord{}).
		Where("id = ? AND version = ?", e.ID, e.Version).
		Updates(map[string]any{"total_earned": total, "version": e.Version + 1, "updated_at": now})
	if res.Error != nil {
		return domain.Earning{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Earning{}, t.missingOrMoved(ctx, &earningRecord{}, e.ID)
	}
	e.TotalEarned, e.Version, e.UpdatedAt = total, e.Version+1, now
	return e, nil
}

func (t *txStore) GetMerchant(ctx context.Context, merchantID uuid.UUID) (domain.Merchant, error) {
	var rec merchantRecord
	if err := t.db.WithContext(ctx).Where("id = ?", merchantID).First(&rec).Error; err != nil {
		return domain.Merchant{}, mapErr(err)
	}
	return rec.toDomain(), nil
}

func (t *txStore) CreateMerchant(ctx context.Context, m domain.Merchant) (domain.Merchant, error) {
	rec := merchantRecord{ID: m.ID, Name: m.Name, WebhookURL: m.WebhookURL, CreatedAt: m.CreatedAt}
	if err := t.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Merchant{}, mapErr(err)
	}
	return rec.toDomain(), nil
}

func (t *txStore) EnqueueWebhook(ctx context.Context, job domain.WebhookJob) error {
	rec := webhookJobRecord{
		ID:         job.ID,
		MerchantID: job.MerchantID,
		URL:        job.URL,
		Event:      job.Event,
		Payload:    string(job.Payload),
		Attempts:   job.Attempts,
		Status:     string(job.Status),
		NextRunAt:  job.NextRunAt,
		CreatedAt:  job.CreatedAt,
	}
	return mapErr(t.db.WithContext(ctx).Create(&rec).Error)
}

// missingOrMoved explains a zero-row versioned update.
func (t *txStore) missingOrMoved(ctx context.Context, model any, id uuid.UUID) error {
	var n int64
	if err := t.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
