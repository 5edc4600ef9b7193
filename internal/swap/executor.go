// Package swap executes token swaps and transfers against the chain. It
// owns the sign-submit-confirm pipeline: collaborators hand it quotes and
// signatures, and it hands back settled outcomes.
package swap

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// Quoter fetches swap routes and builds unsigned swap transactions.
type Quoter interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (domain.Route, error)
	BuildSwapTransaction(ctx context.Context, route domain.Route, userPublicKey string) ([]byte, error)
}

// Chain is the RPC surface the executors need.
type Chain interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SubmitTransaction(ctx context.Context, txBase64 string) (string, error)
	WaitForConfirmation(ctx context.Context, signature string) (domain.TxStatus, error)
	Balance(ctx context.Context, pubkey string) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint string) (raw uint64, decimals int, err error)
	AccountExists(ctx context.Context, pubkey string) (bool, error)
}

// Signer signs transaction messages for one wallet.
type Signer interface {
	PublicKey() string
	Sign(message []byte) ([]byte, error)
}

// DecimalsSource resolves mint decimals.
type DecimalsSource interface {
	Decimals(ctx context.Context, mint string) int
}

// feeHeadroomLamports is kept back from native swaps and transfers so the
// wallet can always pay the transaction fee.
const feeHeadroomLamports = 5_000_000

// Request describes one swap to execute. Amount is denominated in the input
// token's display units.
type Request struct {
	InputMint  string
	OutputMint string
	Amount     float64
	// SlippagePct overrides the policy when positive.
	SlippagePct float64
	// SellAll swaps the entire sellable balance, ignoring Amount.
	SellAll bool
}

// Config tunes the swap executor.
type Config struct {
	Slippage SlippagePolicy
	// SellBuffer is the token amount held back on sells.
	SellBuffer float64
	// MaxAttempts bounds full re-quote cycles after transient
	// submission failures.
	MaxAttempts int
}

func (cfg *Config) setDefaults() {
	if cfg.SellBuffer <= 0 {
		cfg.SellBuffer = 0.01
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
}

// Executor runs the swap pipeline: quote, build, sign, submit, confirm.
type Executor struct {
	quoter   Quoter
	chain    Chain
	decimals DecimalsSource
	cfg      Config
	logger   *slog.Logger
}

// NewExecutor creates a swap executor.
func NewExecutor(quoter Quoter, chain Chain, decimals DecimalsSource, cfg Config, logger *slog.Logger) *Executor {
	cfg.setDefaults()
	return &Executor{
		quoter:   quoter,
		chain:    chain,
		decimals: decimals,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "swap_executor")),
	}
}

// Swap executes req for the wallet behind signer and returns the settled
// outcome together with the route that produced it.
//
// A route is consumed by exactly one submission: every retry after a
// transient submission failure starts over with a fresh quote and a fresh
// blockhash. Failures before submission, quoting included, surface on the
// first occurrence. The returned error is non-nil only when nothing was
// submitted; once a signature exists the result is always expressed as an
// Outcome.
func (e *Executor) Swap(ctx context.Context, signer Signer, req Request) (domain.Outcome, domain.Route, error) {
	amount, err := e.resolveAmount(ctx, signer.PublicKey(), req)
	if err != nil {
		return domain.Outcome{}, domain.Route{}, classifyCtx(ctx, err)
	}

	slippage := req.SlippagePct
	if slippage <= 0 {
		slippage = e.cfg.Slippage.For(e.policyMint(req))
	}

	decimals := e.decimals.Decimals(ctx, req.InputMint)
	quoteReq := domain.QuoteRequest{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		AmountRaw:   domain.ToRawAmount(amount, decimals),
		SlippagePct: slippage,
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		outcome, route, retryable, err := e.attempt(ctx, signer, quoteReq)
		if err == nil {
			return outcome, route, nil
		}
		if !retryable || domain.KindOf(err) != domain.KindTransient || ctx.Err() != nil {
			return domain.Outcome{}, route, classifyCtx(ctx, err)
		}
		lastErr = err
		e.logger.Warn("swap submission failed, re-quoting",
			slog.Int("attempt", attempt),
			slog.String("input_mint", req.InputMint),
			slog.String("output_mint", req.OutputMint),
			slog.String("error", err.Error()))
	}
	return domain.Outcome{}, domain.Route{}, lastErr
}

// attempt runs one full quote-to-confirmation cycle. retryable is true only
// for submission failures; everything earlier in the pipeline is either
// deterministic or already retried inside its own client.
func (e *Executor) attempt(ctx context.Context, signer Signer, quoteReq domain.QuoteRequest) (outcome domain.Outcome, route domain.Route, retryable bool, err error) {
	route, err = e.quoter.Quote(ctx, quoteReq)
	if err != nil {
		return domain.Outcome{}, domain.Route{}, false, err
	}

	raw, err := e.quoter.BuildSwapTransaction(ctx, route, signer.PublicKey())
	if err != nil {
		return domain.Outcome{}, route, false, err
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return domain.Outcome{}, route, false, fmt.Errorf("swap: decode transaction: %w", err)
	}

	blockhash, err := e.chain.LatestBlockhash(ctx)
	if err != nil {
		return domain.Outcome{}, route, false, err
	}
	tx.Message.RecentBlockhash = blockhash

	sig, err := signAndSubmit(ctx, e.chain, signer, tx)
	if err != nil {
		return domain.Outcome{}, route, true, err
	}

	e.logger.Info("swap submitted",
		slog.String("signature", sig),
		slog.String("input_mint", route.InputMint),
		slog.String("output_mint", route.OutputMint),
		slog.Uint64("in_amount", route.InAmountRaw),
		slog.Uint64("out_amount", route.OutAmountRaw))

	return settle(ctx, e.chain, sig), route, false, nil
}

// resolveAmount applies the balance guard and, for sells, the dust buffer.
func (e *Executor) resolveAmount(ctx context.Context, owner string, req Request) (float64, error) {
	if req.InputMint == domain.NativeMint {
		if req.Amount <= 0 {
			return 0, domain.NewError(domain.KindValidation, domain.ReasonInvalidAmount, "swap amount must be positive")
		}
		lamports, err := e.chain.Balance(ctx, owner)
		if err != nil {
			return 0, err
		}
		need := domain.ToRawAmount(req.Amount, domain.DefaultDecimals) + feeHeadroomLamports
		if lamports < need {
			return 0, domain.NewError(domain.KindValidation, domain.ReasonInsufficientBalance,
				fmt.Sprintf("need %d lamports, have %d", need, lamports))
		}
		return req.Amount, nil
	}

	rawBalance, decimals, err := e.chain.TokenBalance(ctx, owner, req.InputMint)
	if err != nil {
		return 0, err
	}
	balance := domain.FromRawAmount(rawBalance, decimals)

	requested := req.Amount
	if req.SellAll {
		requested = balance
	} else if requested <= 0 {
		return 0, domain.NewError(domain.KindValidation, domain.ReasonInvalidAmount, "swap amount must be positive")
	}
	return sellableAmount(requested, balance, e.cfg.SellBuffer)
}

// policyMint is the mint whose slippage override governs the swap: the
// non-native side, since tolerance is a property of the traded token.
func (e *Executor) policyMint(req Request) string {
	if req.InputMint == domain.NativeMint {
		return req.OutputMint
	}
	return req.InputMint
}

// classifyCtx rewrites an unclassified error as a timeout when the caller's
// context has expired before anything was submitted, so the recorded
// failure says what actually happened.
func classifyCtx(ctx context.Context, err error) error {
	if ctx.Err() != nil && domain.ReasonOf(err) == domain.ReasonInternal {
		return domain.WrapError(domain.KindTransient, domain.ReasonTimeout, err)
	}
	return err
}

// signAndSubmit signs tx with signer, serializes it, and submits it.
func signAndSubmit(ctx context.Context, chain Chain, signer Signer, tx *solana.Transaction) (string, error) {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("swap: marshal message: %w", err)
	}
	sigBytes, err := signer.Sign(message)
	if err != nil {
		return "", err
	}
	tx.Signatures = []solana.Signature{solana.SignatureFromBytes(sigBytes)}

	serialized, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("swap: marshal transaction: %w", err)
	}
	return chain.SubmitTransaction(ctx, base64.StdEncoding.EncodeToString(serialized))
}

// settle waits for confirmation and maps the final status to an outcome.
// Pending after exhausted polls is surfaced as unconfirmed, never coerced
// into success or failure.
func settle(ctx context.Context, chain Chain, signature string) domain.Outcome {
	status, err := chain.WaitForConfirmation(ctx, signature)
	if err != nil {
		return domain.Unconfirmed(signature)
	}
	switch status.State {
	case domain.TxConfirmed:
		return domain.Succeeded(signature)
	case domain.TxFailed:
		outcome := domain.Failed(domain.NewError(domain.KindOnChain, domain.ReasonOnChainFailure, status.Detail))
		outcome.Signature = signature
		return outcome
	default:
		return domain.Unconfirmed(signature)
	}
}
