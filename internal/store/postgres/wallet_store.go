package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// WalletStore implements domain.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *pgxpool.Pool
}

// NewWalletStore creates a new WalletStore backed by the given pool.
func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Create inserts a new custodial wallet.
func (s *WalletStore) Create(ctx context.Context, w domain.WalletRecord) error {
	const query = `
		INSERT INTO wallets (
			id, owner_id, public_key, credential, credential_encrypted, label, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		w.ID, w.OwnerID, w.PublicKey,
		w.Credential.Ciphertext, w.Credential.Encrypted,
		w.Label, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create wallet %s: %w", w.ID, err)
	}
	return nil
}

const walletSelectCols = `id, owner_id, public_key, credential, credential_encrypted, label, created_at`

func scanWallet(scanner interface{ Scan(dest ...any) error }) (domain.WalletRecord, error) {
	var w domain.WalletRecord
	err := scanner.Scan(
		&w.ID, &w.OwnerID, &w.PublicKey,
		&w.Credential.Ciphertext, &w.Credential.Encrypted,
		&w.Label, &w.CreatedAt,
	)
	return w, err
}

// GetByID returns a wallet by its internal ID.
func (s *WalletStore) GetByID(ctx context.Context, id string) (domain.WalletRecord, error) {
	query := `SELECT ` + walletSelectCols + ` FROM wallets WHERE id = $1`
	w, err := scanWallet(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WalletRecord{}, fmt.Errorf("postgres: wallet %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.WalletRecord{}, fmt.Errorf("postgres: get wallet %s: %w", id, err)
	}
	return w, nil
}

// GetByOwner returns the wallet belonging to a chat user.
func (s *WalletStore) GetByOwner(ctx context.Context, ownerID int64) (domain.WalletRecord, error) {
	query := `SELECT ` + walletSelectCols + ` FROM wallets WHERE owner_id = $1`
	w, err := scanWallet(s.pool.QueryRow(ctx, query, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WalletRecord{}, fmt.Errorf("postgres: wallet for owner %d: %w", ownerID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.WalletRecord{}, fmt.Errorf("postgres: get wallet for owner %d: %w", ownerID, err)
	}
	return w, nil
}

// GetByPublicKey returns a wallet by its public key.
func (s *WalletStore) GetByPublicKey(ctx context.Context, pubkey string) (domain.WalletRecord, error) {
	query := `SELECT ` + walletSelectCols + ` FROM wallets WHERE public_key = $1`
	w, err := scanWallet(s.pool.QueryRow(ctx, query, pubkey))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WalletRecord{}, fmt.Errorf("postgres: wallet %s: %w", pubkey, domain.ErrNotFound)
	}
	if err != nil {
		return domain.WalletRecord{}, fmt.Errorf("postgres: get wallet by public key: %w", err)
	}
	return w, nil
}

// List returns wallets with pagination.
func (s *WalletStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.WalletRecord, error) {
	query := `SELECT ` + walletSelectCols + ` FROM wallets ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.WalletRecord
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list wallets rows: %w", err)
	}
	return wallets, nil
}

// Delete removes a wallet. The ledger keeps its rows; only the credential
// goes away.
func (s *WalletStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete wallet %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the number of wallets.
func (s *WalletStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count wallets: %w", err)
	}
	return n, nil
}
