package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

const maxReferenceLength = 128

type IssueRequest struct {
	MerchantID      uuid.UUID
	UserEmail       string
	BillAmountCents int64
	Reference       string
}

type IssueReceipt struct {
	LedgerEntryID    uuid.UUID       `json:"ledger_entry_id"`
	UserID           uuid.UUID       `json:"user_id"`
	PointsIssued     int64           `json:"points_issued"`
	BillDollars      decimal.Decimal `json:"bill_dollars"`
	BucketUsed       domain.Bucket   `json:"bucket_used"`
	FromIncluded     int64           `json:"from_included"`
	FromPurchased    int64           `json:"from_purchased"`
	NewIncluded      int64           `json:"new_included"`
	NewPurchased     int64           `json:"new_purchased"`
	NewWalletBalance int64           `json:"new_wallet_balance"`
	Replayed         bool            `json:"replayed"`
}

type RedeemRequest struct {
	UserID          uuid.UUID
	MerchantID      uuid.UUID
	BillAmountCents int64
	PointsToRedeem  int64
	Reference       string
}

type RedeemReceipt struct {
	LedgerEntryID       uuid.UUID       `json:"ledger_entry_id"`
	PointsRedeemed      int64           `json:"points_redeemed"`
	CADValue            decimal.Decimal `json:"cad_value"`
	NewWalletBalance    int64           `json:"new_wallet_balance"`
	MaxRedeemablePoints int64           `json:"max_redeemable_points"`
	Replayed            bool            `json:"replayed"`
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateBill(cents int64) error {
	if cents <= 0 || cents > domain.MaxBillAmountCents {
		return fmt.Errorf("%w: bill amount must be in (0,%d] cents, got %d", domain.ErrInvalidInput, domain.MaxBillAmountCents, cents)
	}
	return nil
}

func validateReference(ref string) error {
	if len(ref) > maxReferenceLength {
		return fmt.Errorf("%w: reference longer than %d characters", domain.ErrInvalidInput, maxReferenceLength)
	}
	return nil
}

type storedReceipt[T any] struct {
	Receipt T `json:"receipt"`
}

func receiptMetadata[T any](r T) (json.RawMessage, error) {
	return json.Marshal(storedReceipt[T]{Receipt: r})
}

// replay returns the receipt recorded by an earlier entry carrying the same
// (merchant, type, reference). found is false when there is none.
func replay[T any](ctx context.Context, tx Tx, merchantID uuid.UUID, typ domain.EntryType, reference string, userID uuid.UUID) (receipt T, found bool, err error) {
	prior, err := tx.FindLedgerByReference(ctx, merchantID, typ, reference)
	if errors.Is(err, domain.ErrNotFound) {
		return receipt, false, nil
	}
	if err != nil {
		return receipt, false, fmt.Errorf("find reference: %w", err)
	}
	if prior.UserID != userID {
		return receipt, false, fmt.Errorf("%w: %q was recorded for another customer", domain.ErrDuplicateReference, reference)
	}
	var stored storedReceipt[T]
	if err := json.Unmarshal(prior.Metadata, &stored); err != nil {
		return receipt, false, fmt.Errorf("decode receipt of entry %s: %w", prior.ID, err)
	}
	return stored.Receipt, true, nil
}

// participatingConfig loads the merchant's config and fails closed when the
// merchant was never provisioned or its subscription lapsed.
func participatingConfig(ctx context.Context, tx Tx, merchantID uuid.UUID) (domain.MerchantConfig, error) {
	cfg, err := tx.GetMerchantConfig(ctx, merchantID)
	if errors.Is(err, domain.ErrNotFound) {
		return cfg, fmt.Errorf("%w: merchant %s has no loyalty config", domain.ErrMerchantNotParticipating, merchantID)
	}
	if err != nil {
		return cfg, fmt.Errorf("load merchant config: %w", err)
	}
	if !cfg.SubscriptionStatus.Participating() {
		return cfg, fmt.Errorf("%w: subscription is %s", domain.ErrMerchantNotParticipating, cfg.SubscriptionStatus)
	}
	return cfg, nil
}

type webhookEnvelope struct {
	Event      string    `json:"event"`
	MerchantID uuid.UUID `json:"merchant_id"`
	Data       any       `json:"data"`
	Timestamp  time.Time `json:"timestamp"`
}

// announce queues a webhook for merchants that registered a URL.
func announce(ctx context.Context, tx Tx, merchantID uuid.UUID, event string, data any, now time.Time) error {
	m, err := tx.GetMerchant(ctx, merchantID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load merchant: %w", err)
	}
	if m.WebhookURL == "" {
		return nil
	}
	payload, err := json.Marshal(webhookEnvelope{Event: event, MerchantID: merchantID, Data: data, Timestamp: now})
	if err != nil {
		return fmt.Errorf("encode webhook: %w", err)
	}
	return tx.EnqueueWebhook(ctx, domain.WebhookJob{
		ID:         uuid.New(),
		MerchantID: merchantID,
		URL:        m.WebhookURL,
		Event:      event,
		Payload:    payload,
		Status:     domain.JobPending,
		NextRunAt:  now,
		CreatedAt:  now,
	})
}
