package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
)

// Store is the Postgres implementation of loyalty.Store. Inside a unit of
// work wallet and config rows are read with SELECT ... FOR UPDATE, and every
// update also checks the row version.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx loyalty.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapErr(err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", mapErr(err))
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

const walletColumns = `id, user_id, total_points, version, updated_at`

func scanWallet(row pgx.Row) (domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.TotalPoints, &w.Version, &w.UpdatedAt)
	return w, mapErr(err)
}

func (t *pgTx) GetOrCreateWallet(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Wallet, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, total_points, version, updated_at)
		VALUES ($1, $2, 0, 0, $3)
		ON CONFLICT (user_id) DO NOTHING`, uuid.New(), userID, now)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("failed to create wallet: %w", mapErr(err))
	}
	return scanWallet(t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
}

func (t *pgTx) SetWalletBalance(ctx context.Context, w domain.Wallet, balance int64, now time.Time) (domain.Wallet, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE wallets SET total_points = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`, balance, now, w.ID, w.Version)
	if err := t.checkCAS(ctx, "wallets", w.ID, tag, err); err != nil {
		return domain.Wallet{}, err
	}
	w.TotalPoints, w.Version, w.UpdatedAt = balance, w.Version+1, now
	return w, nil
}

const configColumns = `id, merchant_id, issue_rate_per_dollar, redeem_cap_percentage, point_bank_included,
	point_bank_purchased, subscription_status, plan, version, created_at, updated_at`

func scanConfig(row pgx.Row) (domain.MerchantConfig, error) {
	var c domain.MerchantConfig
	var status string
	err := row.Scan(&c.ID, &c.MerchantID, &c.IssueRatePerDollar, &c.RedeemCapPercentage, &c.PointBankIncluded,
		&c.PointBankPurchased, &status, &c.Plan, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	c.SubscriptionStatus = domain.SubscriptionStatus(status)
	return c, mapErr(err)
}

func (t *pgTx) GetMerchantConfig(ctx context.Context, merchantID uuid.UUID) (domain.MerchantConfig, error) {
	return scanConfig(t.tx.QueryRow(ctx,
		`SELECT `+configColumns+` FROM merchant_loyalty_configs WHERE merchant_id = $1 FOR UPDATE`, merchantID))
}

func (t *pgTx) CreateMerchantConfig(ctx context.Context, c domain.MerchantConfig) (domain.MerchantConfig, error) {
	return scanConfig(t.tx.QueryRow(ctx, `
		INSERT INTO merchant_loyalty_configs (id, merchant_id, issue_rate_per_dollar, redeem_cap_percentage,
			point_bank_included, point_bank_purchased, subscription_status, plan, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $9)
		RETURNING `+configColumns,
		c.ID, c.MerchantID, c.IssueRatePerDollar, c.RedeemCapPercentage,
		c.PointBankIncluded, c.PointBankPurchased, string(c.SubscriptionStatus), c.Plan, c.CreatedAt))
}

func (t *pgTx) UpdateMerchantConfig(ctx context.Context, c domain.MerchantConfig, patch domain.ConfigPatch, now time.Time) (domain.MerchantConfig, error) {
	next := c.Apply(patch)
	tag, err := t.tx.Exec(ctx, `
		UPDATE merchant_loyalty_configs
		SET issue_rate_per_dollar = $1, redeem_cap_percentage = $2, point_bank_included = $3,
			point_bank_purchased = $4, subscription_status = $5, version = version + 1, updated_at = $6
		WHERE id = $7 AND version = $8`,
		next.IssueRatePerDollar, next.RedeemCapPercentage, next.PointBankIncluded,
		next.PointBankPurchased, string(next.SubscriptionStatus), now, c.ID, c.Version)
	if err := t.checkCAS(ctx, "merchant_loyalty_configs", c.ID, tag, err); err != nil {
		return domain.MerchantConfig{}, err
	}
	next.Version, next.UpdatedAt = c.Version+1, now
	return next, nil
}

func (t *pgTx) GetOrCreateEarning(ctx context.Context, userID, merchantID uuid.UUID, now time.Time) (domain.Earning, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_merchant_earnings (id, user_id, merchant_id, total_earned, version, updated_at)
		VALUES ($1, $2, $3, 0, 0, $4)
		ON CONFLICT (user_id, merchant_id) DO NOTHING`, uuid.New(), userID, merchantID, now)
	if err != nil {
		return domain.Earning{}, fmt.Errorf("failed to create earnings row: %w", mapErr(err))
	}
	var e domain.Earning
	err = t.tx.QueryRow(ctx, `
		SELECT id, user_id, merchant_id, total_earned, version, updated_at
		FROM user_merchant_earnings WHERE user_id = $1 AND merchant_id = $2 FOR UPDATE`, userID, merchantID).
		Scan(&e.ID, &e.UserID, &e.MerchantID, &e.TotalEarned, &e.Version, &e.UpdatedAt)
	return e, mapErr(err)
}

func (t *pgTx) SetEarningTotal(ctx context.Context, e domain.Earning, total int64, now time.Time) (domain.Earning, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE user_merchant_earnings SET total_earned = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`, total, now, e.ID, e.Version)
	if err := t.checkCAS(ctx, "user_merchant_earnings", e.ID, tag, err); err != nil {
		return domain.Earning{}, err
	}
	e.TotalEarned, e.Version, e.UpdatedAt = total, e.Version+1, now
	return e, nil
}

// checkCAS turns the result of a versioned update into ErrNotFound or
// ErrConflict when no row matched.
func (t *pgTx) checkCAS(ctx context.Context, table string, id uuid.UUID, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return mapErr(err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// mapErr translates pgx errors into domain errors. Serialization failures and
// deadlocks become ErrConflict so the orchestrator retries them.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return domain.ErrConflict
		case "23505":
			return domain.ErrAlreadyExists
		}
	}
	return err
}

var _ loyalty.Store = (*Store)(nil)
