package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

// Issue mints points for a customer's bill at a merchant. The ledger entry and
// the config, wallet and earnings updates commit together or not at all. A
// repeated (merchant, reference) returns the first receipt with Replayed set.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (receipt IssueReceipt, err error) {
	defer func(start time.Time) { s.observe("issue", start, err) }(time.Now())

	if req.MerchantID == uuid.Nil || NormalizeEmail(req.UserEmail) == "" {
		return IssueReceipt{}, fmt.Errorf("%w: merchant and customer email are required", domain.ErrInvalidInput)
	}
	if err := validateBill(req.BillAmountCents); err != nil {
		return IssueReceipt{}, err
	}
	if err := validateReference(req.Reference); err != nil {
		return IssueReceipt{}, err
	}

	email := NormalizeEmail(req.UserEmail)
	user, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return IssueReceipt{}, fmt.Errorf("%w: no account for %s", domain.ErrUserNotFound, email)
	}
	if err != nil {
		return IssueReceipt{}, fmt.Errorf("resolve user: %w", err)
	}

	keys := []string{merchantKey(req.MerchantID), userKey(user.ID)}
	err = s.execute(ctx, "issue", keys, func(ctx context.Context, tx Tx) error {
		var err error
		receipt, err = s.issueTx(ctx, tx, req, user.ID)
		return err
	})
	if err != nil {
		return IssueReceipt{}, err
	}

	if receipt.Replayed {
		s.logger.Info("Issuance replayed", "merchant_id", req.MerchantID, "reference", req.Reference, "entry_id", receipt.LedgerEntryID)
		return receipt, nil
	}
	s.recorder.Points(domain.EntryMint, receipt.PointsIssued)
	s.logger.Info("Points issued",
		"merchant_id", req.MerchantID,
		"user_id", user.ID,
		"points", receipt.PointsIssued,
		"bucket", receipt.BucketUsed,
		"entry_id", receipt.LedgerEntryID,
	)
	return receipt, nil
}

func (s *Service) issueTx(ctx context.Context, tx Tx, req IssueRequest, userID uuid.UUID) (IssueReceipt, error) {
	if req.Reference != "" {
		prior, found, err := replay[IssueReceipt](ctx, tx, req.MerchantID, domain.EntryMint, req.Reference, userID)
		if err != nil || found {
			prior.Replayed = found
			return prior, err
		}
	}

	cfg, err := participatingConfig(ctx, tx, req.MerchantID)
	if err != nil {
		return IssueReceipt{}, err
	}

	points := s.policy.PointsForBill(req.BillAmountCents, cfg.IssueRatePerDollar)
	if points <= 0 {
		return IssueReceipt{}, fmt.Errorf("%w: a bill of %d cents earns no points at %d points per dollar",
			domain.ErrAmountTooSmall, req.BillAmountCents, cfg.IssueRatePerDollar)
	}
	if bank := cfg.TotalBank(); bank < points {
		return IssueReceipt{}, &domain.LimitError{Err: domain.ErrInsufficientPointBank, Requested: points, Available: bank}
	}
	alloc := s.policy.Allocate(cfg, points)

	now := s.now()
	wallet, err := tx.GetOrCreateWallet(ctx, userID, now)
	if err != nil {
		return IssueReceipt{}, fmt.Errorf("load wallet: %w", err)
	}
	earning, err := tx.GetOrCreateEarning(ctx, userID, req.MerchantID, now)
	if err != nil {
		return IssueReceipt{}, fmt.Errorf("load earnings: %w", err)
	}

	receipt := IssueReceipt{
		LedgerEntryID:    uuid.Must(uuid.NewV7()),
		UserID:           userID,
		PointsIssued:     points,
		BillDollars:      domain.BillDollars(req.BillAmountCents),
		BucketUsed:       alloc.Bucket,
		FromIncluded:     alloc.FromIncluded,
		FromPurchased:    alloc.FromPurchased,
		NewIncluded:      alloc.NewIncluded,
		NewPurchased:     alloc.NewPurchased,
		NewWalletBalance: wallet.TotalPoints + points,
	}
	meta, err := receiptMetadata(receipt)
	if err != nil {
		return IssueReceipt{}, fmt.Errorf("encode receipt: %w", err)
	}

	cents := req.BillAmountCents
	if _, err := tx.AppendLedger(ctx, domain.LedgerEntry{
		ID:         receipt.LedgerEntryID,
		CreatedAt:  now,
		Type:       domain.EntryMint,
		UserID:     userID,
		MerchantID: req.MerchantID,
		Points:     points,
		CentsValue: &cents,
		BucketUsed: alloc.Bucket,
		Reference:  req.Reference,
		Metadata:   meta,
	}); err != nil {
		return IssueReceipt{}, fmt.Errorf("append ledger: %w", err)
	}

	patch := domain.ConfigPatch{PointBankIncluded: &alloc.NewIncluded, PointBankPurchased: &alloc.NewPurchased}
	if _, err := tx.UpdateMerchantConfig(ctx, cfg, patch, now); err != nil {
		return IssueReceipt{}, fmt.Errorf("debit point bank: %w", err)
	}
	if _, err := tx.SetWalletBalance(ctx, wallet, wallet.TotalPoints+points, now); err != nil {
		return IssueReceipt{}, fmt.Errorf("credit wallet: %w", err)
	}
	if _, err := tx.SetEarningTotal(ctx, earning, earning.TotalEarned+points, now); err != nil {
		return IssueReceipt{}, fmt.Errorf("record earnings: %w", err)
	}
	if err := announce(ctx, tx, req.MerchantID, "points.issued", receipt, now); err != nil {
		return IssueReceipt{}, err
	}
	return receipt, nil
}
