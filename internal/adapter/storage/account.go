package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

func (s *Store) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx, `SELECT id, email, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	return u, mapErr(err)
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)`, u.ID, u.Email, u.CreatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", mapErr(err))
	}
	return u, nil
}

func (s *Store) ListParticipatingMerchants(ctx context.Context) ([]domain.ParticipatingMerchant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.merchant_id, m.name, c.redeem_cap_percentage
		FROM merchant_loyalty_configs c
		JOIN merchants m ON m.id = c.merchant_id
		WHERE c.subscription_status IN ($1, $2)
		ORDER BY m.name`, string(domain.StatusBeta), string(domain.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query merchants: %w", mapErr(err))
	}
	defer rows.Close()

	var out []domain.ParticipatingMerchant
	for rows.Next() {
		var p domain.ParticipatingMerchant
		if err := rows.Scan(&p.MerchantID, &p.Name, &p.RedeemCapPercentage); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err())
}

func (t *pgTx) GetMerchant(ctx context.Context, merchantID uuid.UUID) (domain.Merchant, error) {
	var m domain.Merchant
	err := t.tx.QueryRow(ctx, `SELECT id, name, webhook_url, created_at FROM merchants WHERE id = $1`, merchantID).
		Scan(&m.ID, &m.Name, &m.WebhookURL, &m.CreatedAt)
	return m, mapErr(err)
}

func (t *pgTx) CreateMerchant(ctx context.Context, m domain.Merchant) (domain.Merchant, error) {
	_, err := t.tx.Exec(ctx, `INSERT INTO merchants (id, name, webhook_url, created_at) VALUES ($1, $2, $3, $4)`,
		m.ID, m.Name, m.WebhookURL, m.CreatedAt)
	if err != nil {
		return domain.Merchant{}, fmt.Errorf("failed to create merchant: %w", mapErr(err))
	}
	return m, nil
}

// SaveAPIKey stores the hashed key for the merchant.
func (s *Store) SaveAPIKey(ctx context.Context, merchantID uuid.UUID, keyHash, keyPrefix string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO api_keys (merchant_id, key_hash, key_prefix) VALUES ($1, $2, $3)`,
		merchantID, keyHash, keyPrefix)
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", mapErr(err))
	}
	return nil
}

func (s *Store) MerchantIDForKey(ctx context.Context, keyHash string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT merchant_id FROM api_keys WHERE key_hash = $1`, keyHash).Scan(&id)
	return id, mapErr(err)
}
