package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultPointsPerCurrencyUnit is the exchange rate of the reference deployment:
// 1000 points are worth 1.00 CAD.
const DefaultPointsPerCurrencyUnit int64 = 1000

const (
	MaxIssueRatePerDollar  int64 = 150
	MaxRedeemCapPercentage int64 = 50
	MaxBillAmountCents     int64 = 10_000_000_000
)

// Policy holds the conversion and allocation rules shared by every call site.
// The orchestrator receives one Policy and never re-derives these numbers.
type Policy struct {
	PointsPerCurrencyUnit int64
	Currency              string
}

func DefaultPolicy() Policy {
	return Policy{PointsPerCurrencyUnit: DefaultPointsPerCurrencyUnit, Currency: "CAD"}
}

func (p Policy) Validate() error {
	if p.PointsPerCurrencyUnit <= 0 {
		return fmt.Errorf("%w: points per currency unit must be positive, got %d", ErrInvalidInput, p.PointsPerCurrencyUnit)
	}
	return nil
}

// BillDollars converts minor units to whole currency units.
func BillDollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// PointsForBill is floor(billDollars * ratePerDollar).
func (p Policy) PointsForBill(billCents, ratePerDollar int64) int64 {
	return BillDollars(billCents).Mul(decimal.NewFromInt(ratePerDollar)).Floor().IntPart()
}

// MaxRedeemablePoints converts capPercentage of the bill into points at the
// policy exchange rate: floor(billDollars * cap/100 * PointsPerCurrencyUnit).
// At the default 1000 points per unit a 50.00 bill with a 20% cap allows
// 10000 points, not 1000; 1000 only results from a 100-points-per-unit policy.
func (p Policy) MaxRedeemablePoints(billCents, capPercentage int64) int64 {
	capValue := BillDollars(billCents).Mul(decimal.New(capPercentage, -2))
	return capValue.Mul(decimal.NewFromInt(p.PointsPerCurrencyUnit)).Floor().IntPart()
}

// CurrencyValue is what points are worth in currency units.
func (p Policy) CurrencyValue(points int64) decimal.Decimal {
	return decimal.NewFromInt(points).Div(decimal.NewFromInt(p.PointsPerCurrencyUnit))
}

// Allocation is the result of drawing a mint from a merchant's point bank.
type Allocation struct {
	Points        int64
	FromIncluded  int64
	FromPurchased int64
	NewIncluded   int64
	NewPurchased  int64
	Bucket        Bucket
}

// Allocate draws points from the included allowance first and only then from
// purchased top-ups. The caller has already checked TotalBank() >= points.
func (p Policy) Allocate(cfg MerchantConfig, points int64) Allocation {
	if cfg.PointBankIncluded >= points {
		return Allocation{
			Points:       points,
			FromIncluded: points,
			NewIncluded:  cfg.PointBankIncluded - points,
			NewPurchased: cfg.PointBankPurchased,
			Bucket:       BucketIncluded,
		}
	}
	fromIncluded := max(cfg.PointBankIncluded, 0)
	rest := points - fromIncluded
	return Allocation{
		Points:        points,
		FromIncluded:  fromIncluded,
		FromPurchased: rest,
		NewIncluded:   cfg.PointBankIncluded - fromIncluded,
		NewPurchased:  cfg.PointBankPurchased - rest,
		Bucket:        BucketMixed,
	}
}

func ValidateIssueRate(v int64) error {
	if v < 0 || v > MaxIssueRatePerDollar {
		return fmt.Errorf("%w: issue rate %d not in [0,%d]", ErrInvalidRange, v, MaxIssueRatePerDollar)
	}
	return nil
}

func ValidateRedeemCap(v int64) error {
	if v < 0 || v > MaxRedeemCapPercentage {
		return fmt.Errorf("%w: redeem cap %d%% not in [0,%d]", ErrInvalidRange, v, MaxRedeemCapPercentage)
	}
	return nil
}
