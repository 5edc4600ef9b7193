package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nvoloshin/swapbot/internal/domain"
	"github.com/nvoloshin/swapbot/internal/notify"
	"github.com/nvoloshin/swapbot/internal/swap"
)

const (
	// tradeLockTTL bounds how long a wallet stays locked if the process
	// dies mid-trade. Longer than the worst-case confirm wait.
	tradeLockTTL = 2 * time.Minute

	// tradesPerMinute caps chat-triggered executions per wallet.
	tradesPerMinute = 10
)

// SwapRunner executes a full swap pipeline for a signing wallet.
type SwapRunner interface {
	Swap(ctx context.Context, signer swap.Signer, req swap.Request) (domain.Outcome, domain.Route, error)
}

// TransferRunner executes native and SPL token transfers.
type TransferRunner interface {
	TransferSOL(ctx context.Context, signer swap.Signer, recipient string, amount float64) (domain.Outcome, error)
	TransferToken(ctx context.Context, signer swap.Signer, recipient, mint string, amount float64) (domain.Outcome, error)
}

// Notifier pushes chat notifications, filtered by event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// TradeResult is what a chat command gets back after an execution attempt.
type TradeResult struct {
	Record      domain.TransactionRecord
	ExplorerURL string
}

// TradeService orchestrates swaps and transfers: it resolves the caller's
// wallet, serialises executions per wallet, records every attempt in the
// ledger, and notifies the operator of the outcome.
type TradeService struct {
	wallets      domain.WalletStore
	ledger       domain.TransactionStore
	assets       domain.AssetTable
	vault        KeyVault
	swapper      SwapRunner
	transfers    TransferRunner
	locks        domain.LockManager
	limiter      domain.RateLimiter
	audit        domain.AuditStore
	notifier     Notifier
	explorerHost string
	logger       *slog.Logger
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	wallets domain.WalletStore,
	ledger domain.TransactionStore,
	assets domain.AssetTable,
	vault KeyVault,
	swapper SwapRunner,
	transfers TransferRunner,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	audit domain.AuditStore,
	notifier Notifier,
	explorerHost string,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		wallets:      wallets,
		ledger:       ledger,
		assets:       assets,
		vault:        vault,
		swapper:      swapper,
		transfers:    transfers,
		locks:        locks,
		limiter:      limiter,
		audit:        audit,
		notifier:     notifier,
		explorerHost: explorerHost,
		logger:       logger.With(slog.String("component", "trade_service")),
	}
}

// Buy swaps SOL into the given token for the owner's wallet. token may be a
// known symbol or a raw mint address. amountSOL is denominated in whole SOL.
func (s *TradeService) Buy(ctx context.Context, ownerID int64, token string, amountSOL float64) (TradeResult, error) {
	mint, err := s.resolveToken(token)
	if err != nil {
		return TradeResult{}, err
	}
	return s.executeSwap(ctx, ownerID, domain.TxKindBuy, swap.Request{
		InputMint:  domain.NativeMint,
		OutputMint: mint,
		Amount:     amountSOL,
	})
}

// Sell swaps the given token back into SOL. When sellAll is set the entire
// sellable balance is swapped and amount is ignored.
func (s *TradeService) Sell(ctx context.Context, ownerID int64, token string, amount float64, sellAll bool) (TradeResult, error) {
	mint, err := s.resolveToken(token)
	if err != nil {
		return TradeResult{}, err
	}
	return s.executeSwap(ctx, ownerID, domain.TxKindSell, swap.Request{
		InputMint:  mint,
		OutputMint: domain.NativeMint,
		Amount:     amount,
		SellAll:    sellAll,
	})
}

// Transfer sends SOL (mint empty or the native mint) or an SPL token from the
// owner's wallet to the recipient address.
func (s *TradeService) Transfer(ctx context.Context, ownerID int64, recipient, token string, amount float64) (TradeResult, error) {
	mint := ""
	if token != "" {
		var err error
		if mint, err = s.resolveToken(token); err != nil {
			return TradeResult{}, err
		}
	}

	wallet, err := s.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return TradeResult{}, fmt.Errorf("trade_service: wallet for owner %d: %w", ownerID, err)
	}

	unlock, err := s.guard(ctx, wallet.ID)
	if err != nil {
		return TradeResult{}, err
	}
	defer unlock()

	signer, err := s.vault.SignerFor(wallet.Credential)
	if err != nil {
		return TradeResult{}, fmt.Errorf("trade_service: resolve signer: %w", err)
	}

	native := mint == "" || mint == domain.NativeMint

	var out domain.Outcome
	if native {
		out, err = s.transfers.TransferSOL(ctx, signer, recipient, amount)
	} else {
		out, err = s.transfers.TransferToken(ctx, signer, recipient, mint, amount)
	}
	if err != nil {
		// Nothing reached the chain; record the classified failure.
		out = domain.Failed(err)
	}

	rec := domain.TransactionRecord{
		ID:         uuid.NewString(),
		WalletID:   wallet.ID,
		Kind:       domain.TxKindTransfer,
		OutputMint: mint,
		Recipient:  recipient,
		Signature:  out.Signature,
		Status:     out.Status,
		Reason:     out.Reason,
		Detail:     out.Detail,
		CreatedAt:  time.Now().UTC(),
	}
	if native {
		rec.OutputMint = domain.NativeMint
		rec.OutAmountRaw = domain.ToRawAmount(amount, domain.DefaultDecimals)
	}

	return s.finish(ctx, rec, out, err)
}

// Transaction returns a single ledger row by ID.
func (s *TradeService) Transaction(ctx context.Context, id string) (domain.TransactionRecord, error) {
	rec, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("trade_service: get transaction %q: %w", id, err)
	}
	return rec, nil
}

// History returns the owner's ledger, newest first.
func (s *TradeService) History(ctx context.Context, ownerID int64, opts domain.ListOpts) ([]domain.TransactionRecord, error) {
	wallet, err := s.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("trade_service: wallet for owner %d: %w", ownerID, err)
	}

	recs, err := s.ledger.ListByWallet(ctx, wallet.ID, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list transactions: %w", err)
	}
	return recs, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (s *TradeService) executeSwap(ctx context.Context, ownerID int64, kind domain.TxKind, req swap.Request) (TradeResult, error) {
	wallet, err := s.wallets.GetByOwner(ctx, ownerID)
	if err != nil {
		return TradeResult{}, fmt.Errorf("trade_service: wallet for owner %d: %w", ownerID, err)
	}

	unlock, err := s.guard(ctx, wallet.ID)
	if err != nil {
		return TradeResult{}, err
	}
	defer unlock()

	signer, err := s.vault.SignerFor(wallet.Credential)
	if err != nil {
		return TradeResult{}, fmt.Errorf("trade_service: resolve signer: %w", err)
	}

	out, route, err := s.swapper.Swap(ctx, signer, req)
	if err != nil {
		// Nothing reached the chain; record the classified failure.
		out = domain.Failed(err)
	}

	rec := domain.TransactionRecord{
		ID:           uuid.NewString(),
		WalletID:     wallet.ID,
		Kind:         kind,
		InputMint:    req.InputMint,
		OutputMint:   req.OutputMint,
		InAmountRaw:  route.InAmountRaw,
		OutAmountRaw: route.OutAmountRaw,
		Signature:    out.Signature,
		Status:       out.Status,
		Reason:       out.Reason,
		Detail:       out.Detail,
		CreatedAt:    time.Now().UTC(),
	}

	return s.finish(ctx, rec, out, err)
}

// resolveToken turns a symbol or mint into a mint address.
func (s *TradeService) resolveToken(token string) (string, error) {
	mint, ok := s.assets.Resolve(token)
	if !ok {
		return "", domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress,
			fmt.Sprintf("%q is neither a known token symbol nor a valid mint address", token))
	}
	return mint, nil
}

// guard applies the per-wallet rate limit and takes the execution lock. Two
// chat commands must never sign with the same keypair concurrently.
func (s *TradeService) guard(ctx context.Context, walletID string) (func(), error) {
	allowed, err := s.limiter.Allow(ctx, "trades:"+walletID, tradesPerMinute, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("trade_service: rate limiter: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("trade_service: wallet %s: %w", walletID, domain.ErrRateLimited)
	}

	unlock, err := s.locks.Acquire(ctx, "wallet:"+walletID, tradeLockTTL)
	if err != nil {
		return nil, fmt.Errorf("trade_service: lock wallet %s: %w", walletID, err)
	}
	return unlock, nil
}

// finish persists the ledger row, notifies, audits, and builds the result.
// execErr is the pre-submission error, if any; it is returned to the caller
// after the row is recorded so nothing is lost.
func (s *TradeService) finish(ctx context.Context, rec domain.TransactionRecord, out domain.Outcome, execErr error) (TradeResult, error) {
	if err := s.ledger.Insert(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "ledger insert failed",
			slog.String("tx_id", rec.ID),
			slog.String("error", err.Error()),
		)
		if execErr == nil {
			execErr = fmt.Errorf("trade_service: record transaction: %w", err)
		}
	}

	event, title, body := notify.PresentOutcome(rec.Kind, out, s.explorerHost)
	if notifyErr := s.notifier.Notify(ctx, event, title, body); notifyErr != nil {
		s.logger.WarnContext(ctx, "notify failed",
			slog.String("tx_id", rec.ID),
			slog.String("error", notifyErr.Error()),
		)
	}

	if auditErr := s.audit.Log(ctx, "trade."+string(rec.Kind), map[string]any{
		"tx_id":     rec.ID,
		"wallet_id": rec.WalletID,
		"status":    string(rec.Status),
		"reason":    rec.Reason,
		"signature": rec.Signature,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("tx_id", rec.ID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "execution recorded",
		slog.String("tx_id", rec.ID),
		slog.String("kind", string(rec.Kind)),
		slog.String("status", string(rec.Status)),
		slog.String("signature", rec.Signature),
	)

	return TradeResult{
		Record:      rec,
		ExplorerURL: out.ExplorerURL(s.explorerHost),
	}, execErr
}
