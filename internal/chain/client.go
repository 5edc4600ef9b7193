// Package chain is the Solana RPC adapter. It owns the JSON-RPC plumbing,
// the response-shape normalization, and all chain-side retry policies, so
// that callers deal in domain types and never see raw RPC payloads.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// ClientConfig holds the Solana RPC client configuration.
type ClientConfig struct {
	// Endpoint is the HTTP JSON-RPC URL.
	Endpoint string
	// WSEndpoint is the websocket URL for signature subscriptions. Optional;
	// when empty the watcher falls back to polling.
	WSEndpoint string
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	// Commitment is the confirmation level requested from the node.
	Commitment string

	// SubmitAttempts bounds sendTransaction retries.
	SubmitAttempts int
	// BlockhashAttempts bounds getLatestBlockhash retries.
	BlockhashAttempts int
	// ConfirmAttempts bounds confirmation polls per signature.
	ConfirmAttempts int
	// ConfirmInterval is the pause between confirmation polls.
	ConfirmInterval time.Duration
}

func (cfg *ClientConfig) setDefaults() {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.SubmitAttempts <= 0 {
		cfg.SubmitAttempts = 3
	}
	if cfg.BlockhashAttempts <= 0 {
		cfg.BlockhashAttempts = 3
	}
	if cfg.ConfirmAttempts <= 0 {
		cfg.ConfirmAttempts = 3
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = 2 * time.Second
	}
}

// Client talks to a Solana RPC node.
type Client struct {
	endpoint   string
	watcher    *SignatureWatcher
	httpClient *http.Client
	cfg        ClientConfig
	logger     *slog.Logger
}

// NewClient creates a Solana RPC client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	cfg.setDefaults()
	c := &Client{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "chain")),
	}
	if cfg.WSEndpoint != "" {
		c.watcher = NewSignatureWatcher(cfg.WSEndpoint, cfg.Commitment, logger)
	}
	return c
}

// LatestBlockhash fetches a recent blockhash for transaction assembly.
// Transient failures are retried with a linearly growing pause; exhaustion
// surfaces as a transient blockhash_unavailable error.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.BlockhashAttempts; attempt++ {
		value, err := c.call(ctx, "getLatestBlockhash", []any{
			map[string]any{"commitment": c.cfg.Commitment},
		})
		if err == nil {
			var decoded struct {
				Blockhash            string `json:"blockhash"`
				LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
			}
			if err := json.Unmarshal(value, &decoded); err != nil {
				return solana.Hash{}, fmt.Errorf("chain: decode blockhash: %w", err)
			}
			hash, err := solana.HashFromBase58(decoded.Blockhash)
			if err != nil {
				return solana.Hash{}, fmt.Errorf("chain: parse blockhash %q: %w", decoded.Blockhash, err)
			}
			return hash, nil
		}

		lastErr = err
		c.logger.Warn("blockhash fetch failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if attempt < c.cfg.BlockhashAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*time.Second); err != nil {
				return solana.Hash{}, err
			}
		}
	}
	return solana.Hash{}, domain.WrapError(domain.KindTransient, domain.ReasonBlockhashUnavailable, lastErr)
}

// SubmitTransaction sends a base64-encoded signed transaction. Preflight is
// skipped: the quote was just fetched and simulating it again only adds a
// failure mode before the real submission. Rate limits back off harder than
// other transient failures; deterministic simulation rejections, which some
// RPC providers still return, are not retried at all.
func (c *Client) SubmitTransaction(ctx context.Context, txBase64 string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.SubmitAttempts; attempt++ {
		value, err := c.call(ctx, "sendTransaction", []any{
			txBase64,
			map[string]any{
				"encoding":            "base64",
				"skipPreflight":       true,
				"preflightCommitment": c.cfg.Commitment,
			},
		})
		if err == nil {
			var sig string
			if err := json.Unmarshal(value, &sig); err != nil {
				return "", fmt.Errorf("chain: decode signature: %w", err)
			}
			return sig, nil
		}

		if onchain, detail := preflightFailure(err); onchain {
			return "", domain.NewError(domain.KindOnChain, domain.ReasonOnChainFailure, detail)
		}

		lastErr = err
		var wait time.Duration
		if errors.Is(err, domain.ErrRateLimited) {
			wait = time.Duration(attempt) * 2 * time.Second
		} else {
			wait = time.Second
		}
		c.logger.Warn("transaction submit failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if attempt < c.cfg.SubmitAttempts {
			if err := sleepCtx(ctx, wait); err != nil {
				return "", err
			}
		}
	}
	return "", domain.WrapError(domain.KindTransient, domain.ReasonSubmissionFailed, lastErr)
}

// preflightFailure reports whether err is a deterministic simulation
// rejection and extracts the node's error detail when it is.
func preflightFailure(err error) (bool, string) {
	var rpcErr *rpcError
	if !errors.As(err, &rpcErr) {
		return false, ""
	}
	// -32002 is the node's "transaction simulation failed" code.
	if rpcErr.Code != -32002 {
		return false, ""
	}
	detail := rpcErr.Message
	if len(rpcErr.Data) > 0 {
		var data struct {
			Err json.RawMessage `json:"err"`
		}
		if json.Unmarshal(rpcErr.Data, &data) == nil && len(data.Err) > 0 {
			detail = string(data.Err)
		}
	}
	return true, detail
}

// SignatureStatus performs a single status poll for the given signature.
func (c *Client) SignatureStatus(ctx context.Context, signature string) (domain.TxStatus, error) {
	value, err := c.call(ctx, "getSignatureStatuses", []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	})
	if err != nil {
		return domain.TxStatus{}, err
	}

	var statuses []*struct {
		ConfirmationStatus string          `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	}
	if err := json.Unmarshal(value, &statuses); err != nil {
		return domain.TxStatus{}, fmt.Errorf("chain: decode signature statuses: %w", err)
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return domain.TxStatus{State: domain.TxPending}, nil
	}

	st := statuses[0]
	if len(st.Err) > 0 && string(st.Err) != "null" {
		return domain.TxStatus{State: domain.TxFailed, Detail: string(st.Err)}, nil
	}
	switch st.ConfirmationStatus {
	case "confirmed", "finalized":
		return domain.TxStatus{State: domain.TxConfirmed}, nil
	default:
		return domain.TxStatus{State: domain.TxPending}, nil
	}
}

// WaitForConfirmation waits for a signature to settle. When a websocket
// endpoint is configured the node pushes the status over signatureSubscribe;
// otherwise, or when the socket fails, the status is polled a bounded number
// of times. A still-pending result after the last attempt is returned as-is;
// the caller decides how to surface the ambiguity.
func (c *Client) WaitForConfirmation(ctx context.Context, signature string) (domain.TxStatus, error) {
	if c.watcher != nil {
		window := time.Duration(c.cfg.ConfirmAttempts) * c.cfg.ConfirmInterval
		wctx, cancel := context.WithTimeout(ctx, window)
		st, err := c.watcher.Watch(wctx, signature)
		cancel()
		if err == nil {
			if st.State != domain.TxPending {
				return st, nil
			}
			// The subscription window elapsed. One direct poll catches a
			// notification the socket may have dropped.
			if st, perr := c.SignatureStatus(ctx, signature); perr == nil {
				return st, nil
			}
			return st, nil
		}
		c.logger.Warn("signature subscription failed, falling back to polling",
			slog.String("signature", signature),
			slog.String("error", err.Error()))
	}

	status := domain.TxStatus{State: domain.TxPending}
	for attempt := 1; attempt <= c.cfg.ConfirmAttempts; attempt++ {
		if err := sleepCtx(ctx, c.cfg.ConfirmInterval); err != nil {
			return status, err
		}
		st, err := c.SignatureStatus(ctx, signature)
		if err != nil {
			c.logger.Warn("status poll failed",
				slog.Int("attempt", attempt),
				slog.String("signature", signature),
				slog.String("error", err.Error()))
			continue
		}
		status = st
		if status.State != domain.TxPending {
			return status, nil
		}
	}
	return status, nil
}

// Balance returns the lamport balance of an account. A response the node
// returns in an unexpected shape degrades to 0 rather than erroring: the
// balance readers feed displays and guards, not settlements.
func (c *Client) Balance(ctx context.Context, pubkey string) (uint64, error) {
	value, err := c.call(ctx, "getBalance", []any{
		pubkey,
		map[string]any{"commitment": c.cfg.Commitment},
	})
	if err != nil {
		return 0, err
	}
	var lamports uint64
	if err := json.Unmarshal(value, &lamports); err != nil {
		c.logger.Warn("malformed balance response, reporting zero",
			slog.String("pubkey", pubkey),
			slog.String("error", err.Error()))
		return 0, nil
	}
	return lamports, nil
}

// TokenBalance returns the owner's total raw balance for a mint, summed
// across all of the owner's token accounts, along with the mint decimals.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (raw uint64, decimals int, err error) {
	value, err := c.call(ctx, "getTokenAccountsByOwner", []any{
		owner,
		map[string]any{"mint": mint},
		map[string]any{"encoding": "jsonParsed", "commitment": c.cfg.Commitment},
	})
	if err != nil {
		return 0, 0, err
	}

	var accounts []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						TokenAmount struct {
							Amount   string `json:"amount"`
							Decimals int    `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	}
	if err := json.Unmarshal(value, &accounts); err != nil {
		c.logger.Warn("malformed token accounts response, reporting zero",
			slog.String("owner", owner),
			slog.String("mint", mint),
			slog.String("error", err.Error()))
		return 0, 0, nil
	}

	var total uint64
	for _, acc := range accounts {
		amt := acc.Account.Data.Parsed.Info.TokenAmount
		n, err := strconv.ParseUint(amt.Amount, 10, 64)
		if err != nil {
			c.logger.Warn("malformed token amount, reporting zero",
				slog.String("mint", mint),
				slog.String("amount", amt.Amount))
			return 0, 0, nil
		}
		total += n
		decimals = amt.Decimals
	}
	return total, decimals, nil
}

// TokenSupplyDecimals returns the decimals of a mint via its supply record.
func (c *Client) TokenSupplyDecimals(ctx context.Context, mint string) (int, error) {
	value, err := c.call(ctx, "getTokenSupply", []any{mint})
	if err != nil {
		return 0, err
	}
	var supply struct {
		Decimals int `json:"decimals"`
	}
	if err := json.Unmarshal(value, &supply); err != nil {
		return 0, fmt.Errorf("chain: decode token supply: %w", err)
	}
	return supply.Decimals, nil
}

// AccountExists reports whether an account is present on-chain. Used to
// decide whether a transfer must create the recipient's token account.
func (c *Client) AccountExists(ctx context.Context, pubkey string) (bool, error) {
	value, err := c.call(ctx, "getAccountInfo", []any{
		pubkey,
		map[string]any{"encoding": "base64", "commitment": c.cfg.Commitment},
	})
	if err != nil {
		return false, err
	}
	return string(value) != "null", nil
}

// sleepCtx pauses for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
