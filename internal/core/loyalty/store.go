package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

// Tx is the set of row operations available inside one atomic unit of work.
// Implementations lock the wallet and config rows they return until the unit
// commits, and every Set/Update is a compare-and-swap on the row version that
// fails with domain.ErrConflict when the row moved.
type Tx interface {
	// Ledger
	AppendLedger(ctx context.Context, e domain.LedgerEntry) (domain.LedgerEntry, error)
	FindLedgerByReference(ctx context.Context, merchantID uuid.UUID, typ domain.EntryType, reference string) (domain.LedgerEntry, error)

	// Wallets
	GetOrCreateWallet(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Wallet, error)
	SetWalletBalance(ctx context.Context, w domain.Wallet, balance int64, now time.Time) (domain.Wallet, error)

	// Merchant configs
	GetMerchantConfig(ctx context.Context, merchantID uuid.UUID) (domain.MerchantConfig, error)
	CreateMerchantConfig(ctx context.Context, cfg domain.MerchantConfig) (domain.MerchantConfig, error)
	UpdateMerchantConfig(ctx context.Context, cfg domain.MerchantConfig, patch domain.ConfigPatch, now time.Time) (domain.MerchantConfig, error)

	// Earnings
	GetOrCreateEarning(ctx context.Context, userID, merchantID uuid.UUID, now time.Time) (domain.Earning, error)
	SetEarningTotal(ctx context.Context, e domain.Earning, total int64, now time.Time) (domain.Earning, error)

	// Merchants and outbox
	GetMerchant(ctx context.Context, merchantID uuid.UUID) (domain.Merchant, error)
	CreateMerchant(ctx context.Context, m domain.Merchant) (domain.Merchant, error)
	EnqueueWebhook(ctx context.Context, job domain.WebhookJob) error
}

// Store opens units of work and serves the read-only views. Lookups that find
// nothing return domain.ErrNotFound; unique violations return
// domain.ErrAlreadyExists.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)

	ListLedgerForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerLine, error)
	LedgerTotalsForUser(ctx context.Context, userID uuid.UUID) (domain.LedgerTotals, error)
	ListEarningsForUser(ctx context.Context, userID uuid.UUID) ([]domain.EarningLine, error)
	ListParticipatingMerchants(ctx context.Context) ([]domain.ParticipatingMerchant, error)
}

// Locker serializes units of work that touch the same keys. The returned
// release func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (release func(), err error)
}

func merchantKey(id uuid.UUID) string { return "merchant:" + id.String() }
func userKey(id uuid.UUID) string     { return "user:" + id.String() }
