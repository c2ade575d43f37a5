package loyalty_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
)

// walletWith10000 issues a 200.00 bill at the default 50 points per dollar, leaving
// the user with 10000 points.
func walletWith10000(t *testing.T, f fixture, email string) (domain.Merchant, domain.User) {
	t.Helper()
	m := f.merchant(t, "Issuer "+email, "beta")
	u := f.user(t, email)
	f.issue(t, m.ID, email, 20000)
	require.Equal(t, int64(10000), f.balance(t, u.ID))
	return m, u
}

func TestRedeemBurnsFromWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issuer, u := walletWith10000(t, f, "lea@example.com")
	bankBefore := f.config(t, issuer.ID).TotalBank

	r, err := f.svc.Redeem(ctx, loyalty.RedeemRequest{UserID: u.ID, MerchantID: issuer.ID, BillAmountCents: 5000, PointsToRedeem: 1000})
	require.NoError(t, err)
	require.Equal(t, int64(1000), r.PointsRedeemed)
	require.Equal(t, "1.00", r.CADValue.StringFixed(2))
	require.Equal(t, int64(9000), r.NewWalletBalance)
	require.Equal(t, int64(10000), r.MaxRedeemablePoints)
	require.False(t, r.Replayed)

	require.Equal(t, int64(9000), f.balance(t, u.ID))
	// Burned points are not returned to any bank.
	require.Equal(t, bankBefore, f.config(t, issuer.ID).TotalBank)

	page, err := f.svc.ListTransactions(ctx, u.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)
	require.Equal(t, domain.EntryBurn, page.Transactions[0].Type)
	require.Equal(t, r.LedgerEntryID, page.Transactions[0].ID)
	require.Equal(t, domain.EntryMint, page.Transactions[1].Type)

	audit, err := f.svc.VerifyWallet(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, audit.Consistent)
	require.Equal(t, int64(10000), audit.Minted)
	require.Equal(t, int64(1000), audit.Burned)
	require.Zero(t, audit.Drift)
}

func TestRedeemAtAnotherMerchant(t *testing.T) {
	f := newFixture(t)
	_, u := walletWith10000(t, f, "max@example.com")
	other := f.merchant(t, "Elsewhere", "standard")

	r, err := f.svc.Redeem(context.Background(), loyalty.RedeemRequest{UserID: u.ID, MerchantID: other.ID, BillAmountCents: 5000, PointsToRedeem: 2500})
	require.NoError(t, err)
	require.Equal(t, int64(7500), r.NewWalletBalance)
	require.Zero(t, f.config(t, other.ID).TotalBank)

	// Redemptions never reduce lifetime earnings.
	wallet, err := f.svc.GetWallet(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, wallet.Earnings, 1)
	require.Equal(t, int64(10000), wallet.Earnings[0].TotalEarned)
}

func TestRedeemRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, u := walletWith10000(t, f, "ned@example.com")
	lapsed := f.merchant(t, "Lapsed", "beta")
	_, err := f.svc.SetSubscriptionStatus(ctx, lapsed.ID, domain.StatusPastDue)
	require.NoError(t, err)

	redeem := func(merchantID uuid.UUID, cents, points int64) error {
		_, err := f.svc.Redeem(ctx, loyalty.RedeemRequest{UserID: u.ID, MerchantID: merchantID, BillAmountCents: cents, PointsToRedeem: points})
		return err
	}

	require.ErrorIs(t, redeem(m.ID, 5000, 0), domain.ErrInvalidInput)
	require.ErrorIs(t, redeem(m.ID, 0, 100), domain.ErrInvalidInput)
	require.ErrorIs(t, redeem(lapsed.ID, 5000, 100), domain.ErrMerchantNotParticipating)

	err = redeem(m.ID, 5000, 10001)
	require.ErrorIs(t, err, domain.ErrExceedsRedemptionCap)
	var limit *domain.LimitError
	require.True(t, errors.As(err, &limit))
	require.Equal(t, int64(10000), limit.Available)
	require.Equal(t, int64(1), limit.Shortfall())

	// 1000.00 at 20% allows 200000 points, more than the wallet holds.
	err = redeem(m.ID, 100000, 10500)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.True(t, errors.As(err, &limit))
	require.Equal(t, int64(10000), limit.Available)
	require.Equal(t, int64(500), limit.Shortfall())

	require.Equal(t, int64(10000), f.balance(t, u.ID))
}

func TestRedeemCapFollowsPolicyRate(t *testing.T) {
	f := newFixture(t, loyalty.WithPolicy(domain.Policy{PointsPerCurrencyUnit: 100, Currency: "CAD"}))
	ctx := context.Background()
	m, u := walletWith10000(t, f, "ola@example.com")

	// 50.00 at 20% is 10.00, or 1000 points at 100 points per dollar.
	_, err := f.svc.Redeem(ctx, loyalty.RedeemRequest{UserID: u.ID, MerchantID: m.ID, BillAmountCents: 5000, PointsToRedeem: 1001})
	require.ErrorIs(t, err, domain.ErrExceedsRedemptionCap)

	r, err := f.svc.Redeem(ctx, loyalty.RedeemRequest{UserID: u.ID, MerchantID: m.ID, BillAmountCents: 5000, PointsToRedeem: 1000})
	require.NoError(t, err)
	require.Equal(t, int64(1000), r.MaxRedeemablePoints)
	require.Equal(t, "10.00", r.CADValue.StringFixed(2))
}

func TestRedeemReplaysReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, u := walletWith10000(t, f, "pia@example.com")

	req := loyalty.RedeemRequest{UserID: u.ID, MerchantID: m.ID, BillAmountCents: 5000, PointsToRedeem: 700, Reference: "till-42"}
	first, err := f.svc.Redeem(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Redeem(ctx, req)
	require.NoError(t, err)

	require.True(t, second.Replayed)
	require.Equal(t, first.LedgerEntryID, second.LedgerEntryID)
	require.Equal(t, int64(9300), second.NewWalletBalance)
	require.Equal(t, int64(9300), f.balance(t, u.ID))

	stranger := f.user(t, "quinn@example.com")
	req.UserID = stranger.ID
	_, err = f.svc.Redeem(ctx, req)
	require.ErrorIs(t, err, domain.ErrDuplicateReference)
}

func TestConcurrentRedeemNeverOverdrawsWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.merchant(t, "Race", "beta")
	u := f.user(t, "rex@example.com")
	f.issue(t, m.ID, "rex@example.com", 2000) // 1000 points

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Redeem(ctx, loyalty.RedeemRequest{UserID: u.ID, MerchantID: m.ID, BillAmountCents: 10000, PointsToRedeem: 600})
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientBalance):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, short)
	require.Equal(t, int64(400), f.balance(t, u.ID))
}
