package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type EarningView struct {
	MerchantID   uuid.UUID       `json:"merchant_id"`
	MerchantName string          `json:"merchant_name"`
	TotalEarned  int64           `json:"total_earned"`
	CADValue     decimal.Decimal `json:"cad_value"`
}

type WalletView struct {
	UserID      uuid.UUID       `json:"user_id"`
	TotalPoints int64           `json:"total_points"`
	CADValue    decimal.Decimal `json:"cad_value"`
	Earnings    []EarningView   `json:"earnings"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type TransactionView struct {
	domain.LedgerLine
	CADValue decimal.Decimal `json:"cad_value"`
}

type TransactionPage struct {
	Transactions []TransactionView `json:"transactions"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
	NextOffset   *int              `json:"next_offset,omitempty"`
}

type MerchantConfigView struct {
	domain.MerchantConfig
	TotalBank             int64           `json:"total_bank"`
	TotalBankValue        decimal.Decimal `json:"total_bank_value"`
	Participating         bool            `json:"participating"`
	PointsPerCurrencyUnit int64           `json:"points_per_currency_unit"`
}

// WalletAudit compares a stored balance with the balance the ledger implies.
type WalletAudit struct {
	UserID     uuid.UUID `json:"user_id"`
	Stored     int64     `json:"stored"`
	Minted     int64     `json:"minted"`
	Burned     int64     `json:"burned"`
	Derived    int64     `json:"derived"`
	Drift      int64     `json:"drift"`
	Consistent bool      `json:"consistent"`
}

// GetWallet returns the user's balance and per-merchant earnings, creating an
// empty wallet on first access.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (WalletView, error) {
	if userID == uuid.Nil {
		return WalletView{}, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}
	var wallet domain.Wallet
	err := s.execute(ctx, "get_wallet", []string{userKey(userID)}, func(ctx context.Context, tx Tx) error {
		var err error
		wallet, err = tx.GetOrCreateWallet(ctx, userID, s.now())
		return err
	})
	if err != nil {
		return WalletView{}, fmt.Errorf("load wallet: %w", err)
	}

	lines, err := s.store.ListEarningsForUser(ctx, userID)
	if err != nil {
		return WalletView{}, fmt.Errorf("list earnings: %w", err)
	}
	earnings := make([]EarningView, 0, len(lines))
	for _, l := range lines {
		earnings = append(earnings, EarningView{
			MerchantID:   l.MerchantID,
			MerchantName: l.MerchantName,
			TotalEarned:  l.TotalEarned,
			CADValue:     s.policy.CurrencyValue(l.TotalEarned),
		})
	}
	return WalletView{
		UserID:      userID,
		TotalPoints: wallet.TotalPoints,
		CADValue:    s.policy.CurrencyValue(wallet.TotalPoints),
		Earnings:    earnings,
		UpdatedAt:   wallet.UpdatedAt,
	}, nil
}

// ListTransactions pages through the user's ledger, most recent first. limit
// is clamped to [1,MaxPageSize] with DefaultPageSize for zero.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) (TransactionPage, error) {
	if userID == uuid.Nil {
		return TransactionPage{}, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	offset = max(offset, 0)

	lines, err := s.store.ListLedgerForUser(ctx, userID, limit, offset)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("list ledger: %w", err)
	}
	page := TransactionPage{Transactions: make([]TransactionView, 0, len(lines)), Limit: limit, Offset: offset}
	for _, l := range lines {
		page.Transactions = append(page.Transactions, TransactionView{LedgerLine: l, CADValue: s.policy.CurrencyValue(l.Points)})
	}
	if len(lines) == limit {
		next := offset + limit
		page.NextOffset = &next
	}
	return page, nil
}

// VerifyWallet rebuilds the balance from the ledger and reports any drift from
// the stored wallet.
func (s *Service) VerifyWallet(ctx context.Context, userID uuid.UUID) (WalletAudit, error) {
	if userID == uuid.Nil {
		return WalletAudit{}, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}
	var (
		wallet domain.Wallet
		totals domain.LedgerTotals
	)
	err := s.execute(ctx, "verify_wallet", []string{userKey(userID)}, func(ctx context.Context, tx Tx) error {
		var err error
		wallet, err = tx.GetOrCreateWallet(ctx, userID, s.now())
		return err
	})
	if err != nil {
		return WalletAudit{}, fmt.Errorf("load wallet: %w", err)
	}
	if totals, err = s.store.LedgerTotalsForUser(ctx, userID); err != nil {
		return WalletAudit{}, fmt.Errorf("sum ledger: %w", err)
	}
	derived := totals.Minted - totals.Burned
	audit := WalletAudit{
		UserID:     userID,
		Stored:     wallet.TotalPoints,
		Minted:     totals.Minted,
		Burned:     totals.Burned,
		Derived:    derived,
		Drift:      wallet.TotalPoints - derived,
		Consistent: wallet.TotalPoints == derived,
	}
	if !audit.Consistent {
		s.logger.Error("Wallet drift detected", "user_id", userID, "stored", audit.Stored, "derived", derived)
	}
	return audit, nil
}

func (s *Service) ListParticipatingMerchants(ctx context.Context) ([]domain.ParticipatingMerchant, error) {
	merchants, err := s.store.ListParticipatingMerchants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	if merchants == nil {
		merchants = []domain.ParticipatingMerchant{}
	}
	return merchants, nil
}

// GetMerchantConfig is only available to the merchant itself.
func (s *Service) GetMerchantConfig(ctx context.Context, caller, merchantID uuid.UUID) (MerchantConfigView, error) {
	if caller == uuid.Nil || caller != merchantID {
		return MerchantConfigView{}, domain.ErrAccessDenied
	}
	var cfg domain.MerchantConfig
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		cfg, err = tx.GetMerchantConfig(ctx, merchantID)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return MerchantConfigView{}, fmt.Errorf("%w: merchant %s has no loyalty config", domain.ErrMerchantNotParticipating, merchantID)
	}
	if err != nil {
		return MerchantConfigView{}, fmt.Errorf("load merchant config: %w", err)
	}
	return s.configView(cfg), nil
}

func (s *Service) configView(cfg domain.MerchantConfig) MerchantConfigView {
	return MerchantConfigView{
		MerchantConfig:        cfg,
		TotalBank:             cfg.TotalBank(),
		TotalBankValue:        s.policy.CurrencyValue(cfg.TotalBank()),
		Participating:         cfg.SubscriptionStatus.Participating(),
		PointsPerCurrencyUnit: s.policy.PointsPerCurrencyUnit,
	}
}
