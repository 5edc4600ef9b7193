package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TxKind distinguishes ledger entries by the operation that produced them.
type TxKind string

const (
	TxKindBuy      TxKind = "buy"
	TxKindSell     TxKind = "sell"
	TxKindTransfer TxKind = "transfer"
)

// TransactionRecord is a single settled operation in the ledger. Every
// attempt that produced a signature is recorded, including failed and
// unconfirmed ones.
type TransactionRecord struct {
	ID           string
	WalletID     string
	Kind         TxKind
	InputMint    string
	OutputMint   string
	InAmountRaw  uint64
	OutAmountRaw uint64
	Recipient    string
	Signature    string
	Status       OutcomeStatus
	Reason       string
	Detail       string
	CreatedAt    time.Time
}

// TransactionStore persists the transaction ledger.
type TransactionStore interface {
	Insert(ctx context.Context, rec TransactionRecord) error
	GetByID(ctx context.Context, id string) (TransactionRecord, error)
	GetBySignature(ctx context.Context, sig string) (TransactionRecord, error)
	ListByWallet(ctx context.Context, walletID string, opts ListOpts) ([]TransactionRecord, error)
	ListUnconfirmed(ctx context.Context, limit int) ([]TransactionRecord, error)
	UpdateStatus(ctx context.Context, id string, status OutcomeStatus, detail string) error
	Count(ctx context.Context) (int64, error)
}

// CredentialRef points at encrypted key material without carrying it.
// The key vault resolves the reference; stores and services only move
// the opaque ciphertext around.
type CredentialRef struct {
	// Ciphertext is the encrypted private key, or the plain base58 key
	// for wallets imported before encryption was introduced.
	Ciphertext string
	// Encrypted reports whether Ciphertext needs the vault passphrase.
	Encrypted bool
}

// WalletRecord is a custodial wallet owned by a chat user.
type WalletRecord struct {
	ID         string
	OwnerID    int64
	PublicKey  string
	Credential CredentialRef
	Label      string
	CreatedAt  time.Time
}

// WalletStore persists custodial wallets.
type WalletStore interface {
	Create(ctx context.Context, w WalletRecord) error
	GetByID(ctx context.Context, id string) (WalletRecord, error)
	GetByOwner(ctx context.Context, ownerID int64) (WalletRecord, error)
	GetByPublicKey(ctx context.Context, pubkey string) (WalletRecord, error)
	List(ctx context.Context, opts ListOpts) ([]WalletRecord, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
