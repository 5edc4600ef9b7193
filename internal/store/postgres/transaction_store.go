package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Insert appends a transaction record to the ledger.
func (s *TransactionStore) Insert(ctx context.Context, rec domain.TransactionRecord) error {
	const query = `
		INSERT INTO transactions (
			id, wallet_id, kind, input_mint, output_mint,
			in_amount_raw, out_amount_raw, recipient,
			signature, status, reason, detail, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13
		)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.WalletID, string(rec.Kind),
		rec.InputMint, rec.OutputMint,
		int64(rec.InAmountRaw), int64(rec.OutAmountRaw),
		rec.Recipient, rec.Signature,
		string(rec.Status), rec.Reason, rec.Detail,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert transaction %s: %w", rec.ID, err)
	}
	return nil
}

const txSelectCols = `id, wallet_id, kind, input_mint, output_mint,
	in_amount_raw, out_amount_raw, recipient,
	signature, status, reason, detail, created_at`

func scanTransaction(scanner interface{ Scan(dest ...any) error }) (domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	var kind, status string
	var inRaw, outRaw int64

	err := scanner.Scan(
		&rec.ID, &rec.WalletID, &kind,
		&rec.InputMint, &rec.OutputMint,
		&inRaw, &outRaw, &rec.Recipient,
		&rec.Signature, &status, &rec.Reason, &rec.Detail,
		&rec.CreatedAt,
	)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	rec.Kind = domain.TxKind(kind)
	rec.Status = domain.OutcomeStatus(status)
	rec.InAmountRaw = uint64(inRaw)
	rec.OutAmountRaw = uint64(outRaw)
	return rec, nil
}

// GetByID returns a single transaction by its ledger ID.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.TransactionRecord, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions WHERE id = $1`
	rec, err := scanTransaction(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TransactionRecord{}, fmt.Errorf("postgres: transaction %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return rec, nil
}

// GetBySignature returns a single transaction by its on-chain signature.
func (s *TransactionStore) GetBySignature(ctx context.Context, sig string) (domain.TransactionRecord, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions WHERE signature = $1`
	rec, err := scanTransaction(s.pool.QueryRow(ctx, query, sig))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TransactionRecord{}, fmt.Errorf("postgres: signature %s: %w", sig, domain.ErrNotFound)
	}
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("postgres: get transaction by signature: %w", err)
	}
	return rec, nil
}

// ListByWallet returns the ledger for one wallet, newest first.
func (s *TransactionStore) ListByWallet(ctx context.Context, walletID string, opts domain.ListOpts) ([]domain.TransactionRecord, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions WHERE wallet_id = $1`
	args := []any{walletID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	var recs []domain.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions rows: %w", err)
	}
	return recs, nil
}

// ListUnconfirmed returns transactions still awaiting a settled status,
// oldest first so the reconciler works through the backlog in order.
func (s *TransactionStore) ListUnconfirmed(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions WHERE status = $1 ORDER BY created_at ASC`
	args := []any{string(domain.StatusUnconfirmed)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unconfirmed transactions: %w", err)
	}
	defer rows.Close()

	var recs []domain.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list unconfirmed rows: %w", err)
	}
	return recs, nil
}

// ListSettledBefore returns confirmed and failed transactions created before
// the cutoff, oldest first. Used by the archiver; unconfirmed rows are
// excluded because they may still be reconciled.
func (s *TransactionStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.TransactionRecord, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions
		WHERE status IN ($1, $2) AND created_at < $3
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query,
		string(domain.StatusSucceeded), string(domain.StatusFailed), before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled transactions: %w", err)
	}
	defer rows.Close()

	var recs []domain.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list settled rows: %w", err)
	}
	return recs, nil
}

// DeleteSettledBefore removes confirmed and failed transactions created
// before the cutoff and reports how many rows were pruned.
func (s *TransactionStore) DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM transactions WHERE status IN ($1, $2) AND created_at < $3`
	tag, err := s.pool.Exec(ctx, query,
		string(domain.StatusSucceeded), string(domain.StatusFailed), before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete settled transactions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateStatus settles a previously recorded transaction.
func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, status domain.OutcomeStatus, detail string) error {
	const query = `UPDATE transactions SET status = $1, detail = $2 WHERE id = $3`
	tag, err := s.pool.Exec(ctx, query, string(status), detail, id)
	if err != nil {
		return fmt.Errorf("postgres: update transaction status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the total number of ledger rows.
func (s *TransactionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count transactions: %w", err)
	}
	return n, nil
}
