package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nvoloshin/swapbot/internal/domain"
	"github.com/nvoloshin/swapbot/internal/keyvault"
)

// KeyVault abstracts key generation and resolution so the service layer never
// touches raw key material.
type KeyVault interface {
	Generate() (pubkey string, ref domain.CredentialRef, err error)
	Import(privateKeyBase58 string) (pubkey string, ref domain.CredentialRef, err error)
	SignerFor(ref domain.CredentialRef) (keyvault.Signer, error)
}

// BalanceReader reads on-chain balances for a wallet.
type BalanceReader interface {
	Balance(ctx context.Context, pubkey string) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint string) (raw uint64, decimals int, err error)
}

// WalletBalance is a wallet's current SOL holding in both denominations.
type WalletBalance struct {
	Lamports uint64
	SOL      float64
}

// WalletService manages custodial wallet lifecycle: provisioning, key import,
// lookup, and balance queries.
type WalletService struct {
	wallets domain.WalletStore
	vault   KeyVault
	chain   BalanceReader
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewWalletService creates a WalletService with all required dependencies.
func NewWalletService(
	wallets domain.WalletStore,
	vault KeyVault,
	chain BalanceReader,
	audit domain.AuditStore,
	logger *slog.Logger,
) *WalletService {
	return &WalletService{
		wallets: wallets,
		vault:   vault,
		chain:   chain,
		audit:   audit,
		logger:  logger.With(slog.String("component", "wallet_service")),
	}
}

// Provision generates a fresh keypair for the owner and persists the wallet.
// Each owner holds at most one wallet; a second call fails until the first
// wallet is removed.
func (s *WalletService) Provision(ctx context.Context, ownerID int64, label string) (domain.WalletRecord, error) {
	if _, err := s.wallets.GetByOwner(ctx, ownerID); err == nil {
		return domain.WalletRecord{}, domain.NewError(domain.KindValidation, domain.ReasonInternal,
			fmt.Sprintf("owner %d already has a wallet", ownerID))
	}

	pubkey, ref, err := s.vault.Generate()
	if err != nil {
		return domain.WalletRecord{}, fmt.Errorf("wallet_service: generate keypair: %w", err)
	}

	return s.create(ctx, ownerID, pubkey, ref, label, "wallet.created")
}

// ImportKey registers a wallet from an externally supplied base58 private
// key. The key is encrypted at rest when the vault has a passphrase.
func (s *WalletService) ImportKey(ctx context.Context, ownerID int64, privateKeyBase58, label string) (domain.WalletRecord, error) {
	if _, err := s.wallets.GetByOwner(ctx, ownerID); err == nil {
		return domain.WalletRecord{}, domain.NewError(domain.KindValidation, domain.ReasonInternal,
			fmt.Sprintf("owner %d already has a wallet", ownerID))
	}

	pubkey, ref, err := s.vault.Import(privateKeyBase58)
	if err != nil {
		return domain.WalletRecord{}, fmt.Errorf("wallet_service: import key: %w", err)
	}

	return s.create(ctx, ownerID, pubkey, ref, label, "wallet.imported")
}

// Get returns a wallet by its internal ID.
func (s *WalletService) Get(ctx context.Context, id string) (domain.WalletRecord, error) {
	w, err := s.wallets.GetByID(ctx, id)
	if err != nil {
		return domain.WalletRecord{}, fmt.Errorf("wallet_service: get wallet %q: %w", id, err)
	}
	return w, nil
}

// ForOwner returns the wallet owned by the given chat user.
func (s *WalletService) ForOwner(ctx context.Context, ownerID int64) (domain.WalletRecord, error) {
	w, err := s.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return domain.WalletRecord{}, fmt.Errorf("wallet_service: wallet for owner %d: %w", ownerID, err)
	}
	return w, nil
}

// List returns all wallets with pagination.
func (s *WalletService) List(ctx context.Context, opts domain.ListOpts) ([]domain.WalletRecord, error) {
	ws, err := s.wallets.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("wallet_service: list wallets: %w", err)
	}
	return ws, nil
}

// Remove deletes a wallet. The on-chain account and any funds it holds are
// untouched; only the custodial record and key material are removed.
func (s *WalletService) Remove(ctx context.Context, id string) error {
	w, err := s.wallets.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("wallet_service: get wallet %q: %w", id, err)
	}

	if err := s.wallets.Delete(ctx, id); err != nil {
		return fmt.Errorf("wallet_service: delete wallet %q: %w", id, err)
	}

	if auditErr := s.audit.Log(ctx, "wallet.removed", map[string]any{
		"wallet_id": id,
		"pubkey":    w.PublicKey,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("wallet_id", id),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "wallet removed",
		slog.String("wallet_id", id),
		slog.String("pubkey", w.PublicKey),
	)
	return nil
}

// SOLBalance returns the wallet's native balance.
func (s *WalletService) SOLBalance(ctx context.Context, walletID string) (WalletBalance, error) {
	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return WalletBalance{}, fmt.Errorf("wallet_service: get wallet %q: %w", walletID, err)
	}

	lamports, err := s.chain.Balance(ctx, w.PublicKey)
	if err != nil {
		return WalletBalance{}, fmt.Errorf("wallet_service: balance for %q: %w", w.PublicKey, err)
	}

	return WalletBalance{
		Lamports: lamports,
		SOL:      domain.FromRawAmount(lamports, domain.DefaultDecimals),
	}, nil
}

// TokenBalance returns the wallet's holding of one SPL token in display units.
func (s *WalletService) TokenBalance(ctx context.Context, walletID, mint string) (float64, error) {
	if !domain.ValidAddress(mint) {
		return 0, domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress, "invalid mint "+mint)
	}

	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return 0, fmt.Errorf("wallet_service: get wallet %q: %w", walletID, err)
	}

	raw, decimals, err := s.chain.TokenBalance(ctx, w.PublicKey, mint)
	if err != nil {
		return 0, fmt.Errorf("wallet_service: token balance for %q: %w", w.PublicKey, err)
	}
	return domain.FromRawAmount(raw, decimals), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (s *WalletService) create(ctx context.Context, ownerID int64, pubkey string, ref domain.CredentialRef, label, event string) (domain.WalletRecord, error) {
	w := domain.WalletRecord{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		PublicKey:  pubkey,
		Credential: ref,
		Label:      label,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.wallets.Create(ctx, w); err != nil {
		return domain.WalletRecord{}, fmt.Errorf("wallet_service: create wallet: %w", err)
	}

	if auditErr := s.audit.Log(ctx, event, map[string]any{
		"wallet_id": w.ID,
		"owner_id":  ownerID,
		"pubkey":    pubkey,
		"encrypted": ref.Encrypted,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("wallet_id", w.ID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "wallet registered",
		slog.String("wallet_id", w.ID),
		slog.Int64("owner_id", ownerID),
		slog.String("pubkey", pubkey),
	)
	return w, nil
}
