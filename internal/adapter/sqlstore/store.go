// Package sqlstore is the gorm-backed store used with SQLite for single-node
// deployments, local development and tests. Row updates are optimistic: every
// write checks the version it read and reports domain.ErrConflict otherwise.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
)

type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at dsn and migrates it.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite allows one writer; a single connection queues writers instead of
	// failing them with "database is locked".
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx loyalty.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(ctx, &txStore{db: db})
	})
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&rec).Error; err != nil {
		return domain.User{}, mapErr(err)
	}
	return domain.User{ID: rec.ID, Email: rec.Email, CreatedAt: rec.CreatedAt}, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	rec := userRecord{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

type ledgerLineRow struct {
	Entry        ledgerRecord `gorm:"embedded"`
	MerchantName string
}

func (s *Store) ListLedgerForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerLine, error) {
	var rows []ledgerLineRow
	// Ledger ids are UUIDv7, so id order is insertion order.
	err := s.db.WithContext(ctx).
		Table("ledger_entries AS l").
		Select("l.*, COALESCE(m.name, '') AS merchant_name").
		Joins("LEFT JOIN merchants m ON m.id = l.merchant_id").
		Where("l.user_id = ?", userID).
		Order("l.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, mapErr(err)
	}
	lines := make([]domain.LedgerLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, domain.LedgerLine{LedgerEntry: r.Entry.toDomain(), MerchantName: r.MerchantName})
	}
	return lines, nil
}

func (s *Store) LedgerTotalsForUser(ctx context.Context, userID uuid.UUID) (domain.LedgerTotals, error) {
	var totals domain.LedgerTotals
	err := s.db.WithContext(ctx).
		Model(&ledgerRecord{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN points ELSE 0 END), 0) AS minted, "+
			"COALESCE(SUM(CASE WHEN type = ? THEN points ELSE 0 END), 0) AS burned",
			string(domain.EntryMint), string(domain.EntryBurn)).
		Where("user_id = ?", userID).
		Scan(&totals).Error
	return totals, mapErr(err)
}

type earningLineRow struct {
	Earning      earningRecord `gorm:"embedded"`
	MerchantName string
}

func (s *Store) ListEarningsForUser(ctx context.Context, userID uuid.UUID) ([]domain.EarningLine, error) {
	var rows []earningLineRow
	err := s.db.WithContext(ctx).
		Table("user_merchant_earnings AS e").
		Select("e.*, COALESCE(m.name, '') AS merchant_name").
		Joins("LEFT JOIN merchants m ON m.id = e.merchant_id").
		Where("e.user_id = ?", userID).
		Order("e.total_earned DESC, m.name").
		Scan(&rows).Error
	if err != nil {
		return nil, mapErr(err)
	}
	lines := make([]domain.EarningLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, domain.EarningLine{Earning: r.Earning.toDomain(), MerchantName: r.MerchantName})
	}
	return lines, nil
}

func (s *Store) ListParticipatingMerchants(ctx context.Context) ([]domain.ParticipatingMerchant, error) {
	var out []domain.ParticipatingMerchant
	err := s.db.WithContext(ctx).
		Table("merchant_loyalty_configs AS c").
		Select("c.merchant_id, m.name, c.redeem_cap_percentage").
		Joins("JOIN merchants m ON m.id = c.merchant_id").
		Where("c.subscription_status IN ?", []string{string(domain.StatusBeta), string(domain.StatusActive)}).
		Order("m.name").
		Scan(&out).Error
	return out, mapErr(err)
}

func (s *Store) SaveAPIKey(ctx context.Context, merchantID uuid.UUID, keyHash, keyPrefix string) error {
	rec := apiKeyRecord{KeyHash: keyHash, MerchantID: merchantID, KeyPrefix: keyPrefix, CreatedAt: time.Now().UTC()}
	return mapErr(s.db.WithContext(ctx).Create(&rec).Error)
}

func (s *Store) MerchantIDForKey(ctx context.Context, keyHash string) (uuid.UUID, error) {
	var rec apiKeyRecord
	if err := s.db.WithContext(ctx).Where("key_hash = ?", keyHash).First(&rec).Error; err != nil {
		return uuid.Nil, mapErr(err)
	}
	return rec.MerchantID, nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case isUniqueViolation(err):
		return domain.ErrAlreadyExists
	}
	return err
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ loyalty.Store = (*Store)(nil)
