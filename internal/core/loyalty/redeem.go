package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

// Redeem burns points from the user's pooled wallet against a bill at a
// participating merchant. Burned points leave the system: no merchant bank is
// credited, including the one that issued them.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (receipt RedeemReceipt, err error) {
	defer func(start time.Time) { s.observe("redeem", start, err) }(time.Now())

	if req.UserID == uuid.Nil || req.MerchantID == uuid.Nil {
		return RedeemReceipt{}, fmt.Errorf("%w: user and merchant are required", domain.ErrInvalidInput)
	}
	if err := validateBill(req.BillAmountCents); err != nil {
		return RedeemReceipt{}, err
	}
	if req.PointsToRedeem <= 0 {
		return RedeemReceipt{}, fmt.Errorf("%w: points to redeem must be positive, got %d", domain.ErrInvalidInput, req.PointsToRedeem)
	}
	if err := validateReference(req.Reference); err != nil {
		return RedeemReceipt{}, err
	}

	keys := []string{merchantKey(req.MerchantID), userKey(req.UserID)}
	err = s.execute(ctx, "redeem", keys, func(ctx context.Context, tx Tx) error {
		var err error
		receipt, err = s.redeemTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return RedeemReceipt{}, err
	}

	if receipt.Replayed {
		s.logger.Info("Redemption replayed", "merchant_id", req.MerchantID, "reference", req.Reference, "entry_id", receipt.LedgerEntryID)
		return receipt, nil
	}
	s.recorder.Points(domain.EntryBurn, receipt.PointsRedeemed)
	s.logger.Info("Points redeemed",
		"merchant_id", req.MerchantID,
		"user_id", req.UserID,
		"points", receipt.PointsRedeemed,
		"balance", receipt.NewWalletBalance,
		"entry_id", receipt.LedgerEntryID,
	)
	return receipt, nil
}

func (s *Service) redeemTx(ctx context.Context, tx Tx, req RedeemRequest) (RedeemReceipt, error) {
	if req.Reference != "" {
		prior, found, err := replay[RedeemReceipt](ctx, tx, req.MerchantID, domain.EntryBurn, req.Reference, req.UserID)
		if err != nil || found {
			prior.Replayed = found
			return prior, err
		}
	}

	cfg, err := participatingConfig(ctx, tx, req.MerchantID)
	if err != nil {
		return RedeemReceipt{}, err
	}

	maxPoints := s.policy.MaxRedeemablePoints(req.BillAmountCents, cfg.RedeemCapPercentage)
	if req.PointsToRedeem > maxPoints {
		return RedeemReceipt{}, &domain.LimitError{Err: domain.ErrExceedsRedemptionCap, Requested: req.PointsToRedeem, Available: maxPoints}
	}

	now := s.now()
	wallet, err := tx.GetOrCreateWallet(ctx, req.UserID, now)
	if err != nil {
		return RedeemReceipt{}, fmt.Errorf("load wallet: %w", err)
	}
	if wallet.TotalPoints < req.PointsToRedeem {
		return RedeemReceipt{}, &domain.LimitError{Err: domain.ErrInsufficientBalance, Requested: req.PointsToRedeem, Available: wallet.TotalPoints}
	}

	receipt := RedeemReceipt{
		LedgerEntryID:       uuid.Must(uuid.NewV7()),
		PointsRedeemed:      req.PointsToRedeem,
		CADValue:            s.policy.CurrencyValue(req.PointsToRedeem),
		NewWalletBalance:    wallet.TotalPoints - req.PointsToRedeem,
		MaxRedeemablePoints: maxPoints,
	}
	meta, err := receiptMetadata(receipt)
	if err != nil {
		return RedeemReceipt{}, fmt.Errorf("encode receipt: %w", err)
	}

	cents := req.BillAmountCents
	if _, err := tx.AppendLedger(ctx, domain.LedgerEntry{
		ID:         receipt.LedgerEntryID,
		CreatedAt:  now,
		Type:       domain.EntryBurn,
		UserID:     req.UserID,
		MerchantID: req.MerchantID,
		Points:     req.PointsToRedeem,
		CentsValue: &cents,
		Reference:  req.Reference,
		Metadata:   meta,
	}); err != nil {
		return RedeemReceipt{}, fmt.Errorf("append ledger: %w", err)
	}
	if _, err := tx.SetWalletBalance(ctx, wallet, receipt.NewWalletBalance, now); err != nil {
		return RedeemReceipt{}, fmt.Errorf("debit wallet: %w", err)
	}
	if err := announce(ctx, tx, req.MerchantID, "points.redeemed", receipt, now); err != nil {
		return RedeemReceipt{}, err
	}
	return receipt, nil
}
