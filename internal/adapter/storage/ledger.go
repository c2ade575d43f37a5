package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

const ledgerColumns = `l.id, l.created_at, l.type, l.user_id, l.merchant_id, l.points, l.cents_value,
	l.bucket_used, l.reference, l.reversed_of, l.metadata`

func scanLedger(row pgx.Row, extra ...any) (domain.LedgerEntry, error) {
	var (
		e         domain.LedgerEntry
		typ       string
		bucket    *string
		reference *string
		metadata  []byte
	)
	dest := append([]any{&e.ID, &e.CreatedAt, &typ, &e.UserID, &e.MerchantID, &e.Points, &e.CentsValue,
		&bucket, &reference, &e.ReversedOf, &metadata}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.LedgerEntry{}, mapErr(err)
	}
	e.Type = domain.EntryType(typ)
	if bucket != nil {
		e.BucketUsed = domain.Bucket(*bucket)
	}
	if reference != nil {
		e.Reference = *reference
	}
	e.Metadata = metadata
	return e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AppendLedger inserts an immutable entry. A reference that was recorded by a
// concurrent transaction is reported as ErrConflict so the retry replays it.
func (t *pgTx) AppendLedger(ctx context.Context, e domain.LedgerEntry) (domain.LedgerEntry, error) {
	if e.Points <= 0 || !e.Type.Valid() {
		return domain.LedgerEntry{}, fmt.Errorf("%w: ledger entry needs positive points and a mint or burn type", domain.ErrInvalidInput)
	}
	metadata := []byte(e.Metadata)
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, created_at, type, user_id, merchant_id, points, cents_value,
			bucket_used, reference, reversed_of, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.CreatedAt, string(e.Type), e.UserID, e.MerchantID, e.Points, e.CentsValue,
		nullable(string(e.BucketUsed)), nullable(e.Reference), e.ReversedOf, metadata)
	if err != nil {
		err = mapErr(err)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.LedgerEntry{}, fmt.Errorf("%w: reference %q recorded concurrently", domain.ErrConflict, e.Reference)
		}
		return domain.LedgerEntry{}, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	e.Metadata = metadata
	return e, nil
}

func (t *pgTx) FindLedgerByReference(ctx context.Context, merchantID uuid.UUID, typ domain.EntryType, reference string) (domain.LedgerEntry, error) {
	return scanLedger(t.tx.QueryRow(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries l
		WHERE l.merchant_id = $1 AND l.type = $2 AND l.reference = $3`, merchantID, string(typ), reference))
}

// ListLedgerForUser returns a page of the user's history, newest first.
func (s *Store) ListLedgerForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerLine, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ledgerColumns+`, COALESCE(m.name, '')
		FROM ledger_entries l
		LEFT JOIN merchants m ON m.id = l.merchant_id
		WHERE l.user_id = $1
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", mapErr(err))
	}
	defer rows.Close()

	var lines []domain.LedgerLine
	for rows.Next() {
		var name string
		e, err := scanLedger(rows, &name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.LedgerLine{LedgerEntry: e, MerchantName: name})
	}
	return lines, mapErr(rows.Err())
}

func (s *Store) LedgerTotalsForUser(ctx context.Context, userID uuid.UUID) (domain.LedgerTotals, error) {
	var totals domain.LedgerTotals
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(points) FILTER (WHERE type = 'mint'), 0),
			COALESCE(SUM(points) FILTER (WHERE type = 'burn'), 0)
		FROM ledger_entries WHERE user_id = $1`, userID).Scan(&totals.Minted, &totals.Burned)
	return totals, mapErr(err)
}

func (s *Store) ListEarningsForUser(ctx context.Context, userID uuid.UUID) ([]domain.EarningLine, error) {
	rows, err := s.db.Query(ctx, `
		SELECT e.id, e.user_id, e.merchant_id, e.total_earned, e.version, e.updated_at, COALESCE(m.name, '')
		FROM user_merchant_earnings e
		LEFT JOIN merchants m ON m.id = e.merchant_id
		WHERE e.user_id = $1
		ORDER BY e.total_earned DESC, m.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings: %w", mapErr(err))
	}
	defer rows.Close()

	var lines []domain.EarningLine
	for rows.Next() {
		var l domain.EarningLine
		if err := rows.Scan(&l.ID, &l.UserID, &l.MerchantID, &l.TotalEarned, &l.Version, &l.UpdatedAt, &l.MerchantName); err != nil {
			return nil, mapErr(err)
		}
		lines = append(lines, l)
	}
	return lines, mapErr(rows.Err())
}
