package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nvoloshin/swapbot/internal/domain"
	"github.com/nvoloshin/swapbot/internal/service"
)

// TradeService defines the methods the trade handler requires from the
// service layer.
type TradeService interface {
	Buy(ctx context.Context, ownerID int64, token string, amountSOL float64) (service.TradeResult, error)
	Sell(ctx context.Context, ownerID int64, token string, amount float64, sellAll bool) (service.TradeResult, error)
	Transfer(ctx context.Context, ownerID int64, recipient, token string, amount float64) (service.TradeResult, error)
	Transaction(ctx context.Context, id string) (domain.TransactionRecord, error)
	History(ctx context.Context, ownerID int64, opts domain.ListOpts) ([]domain.TransactionRecord, error)
}

// TradeHandler serves swap, transfer, and ledger HTTP endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logHandler(logger, "trade"),
	}
}

// transactionResponse is the API shape of one ledger row.
type transactionResponse struct {
	ID           string `json:"id"`
	WalletID     string `json:"wallet_id"`
	Kind         string `json:"kind"`
	InputMint    string `json:"input_mint,omitempty"`
	OutputMint   string `json:"output_mint,omitempty"`
	InAmountRaw  uint64 `json:"in_amount_raw,omitempty"`
	OutAmountRaw uint64 `json:"out_amount_raw,omitempty"`
	Recipient    string `json:"recipient,omitempty"`
	Signature    string `json:"signature,omitempty"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	Detail       string `json:"detail,omitempty"`
	ExplorerURL  string `json:"explorer_url,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toTransactionResponse(rec domain.TransactionRecord, explorerURL string) transactionResponse {
	return transactionResponse{
		ID:           rec.ID,
		WalletID:     rec.WalletID,
		Kind:         string(rec.Kind),
		InputMint:    rec.InputMint,
		OutputMint:   rec.OutputMint,
		InAmountRaw:  rec.InAmountRaw,
		OutAmountRaw: rec.OutAmountRaw,
		Recipient:    rec.Recipient,
		Signature:    rec.Signature,
		Status:       string(rec.Status),
		Reason:       rec.Reason,
		Detail:       rec.Detail,
		ExplorerURL:  explorerURL,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}
}

type buyRequest struct {
	OwnerID   int64   `json:"owner_id"`
	Mint      string  `json:"mint"` // mint address or a configured symbol
	AmountSOL float64 `json:"amount_sol"`
}

// Buy swaps SOL into a token for the owner's wallet.
// POST /api/trades/buy
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == 0 || req.Mint == "" {
		writeError(w, http.StatusBadRequest, "owner_id and mint are required")
		return
	}

	res, err := h.trades.Buy(r.Context(), req.OwnerID, req.Mint, req.AmountSOL)
	h.respond(w, r, "buy", res, err)
}

type sellRequest struct {
	OwnerID int64   `json:"owner_id"`
	Mint    string  `json:"mint"`
	Amount  float64 `json:"amount"`
	SellAll bool    `json:"sell_all"`
}

// Sell swaps a token back into SOL.
// POST /api/trades/sell
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == 0 || req.Mint == "" {
		writeError(w, http.StatusBadRequest, "owner_id and mint are required")
		return
	}

	res, err := h.trades.Sell(r.Context(), req.OwnerID, req.Mint, req.Amount, req.SellAll)
	h.respond(w, r, "sell", res, err)
}

type transferRequest struct {
	OwnerID   int64   `json:"owner_id"`
	Recipient string  `json:"recipient"`
	Mint      string  `json:"mint"` // empty for SOL, otherwise mint address or symbol
	Amount    float64 `json:"amount"`
}

// Transfer sends SOL or an SPL token to an external address.
// POST /api/transfers
func (h *TradeHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == 0 || req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "owner_id and recipient are required")
		return
	}

	res, err := h.trades.Transfer(r.Context(), req.OwnerID, req.Recipient, req.Mint, req.Amount)
	h.respond(w, r, "transfer", res, err)
}

// GetTransaction returns one ledger row by ID.
// GET /api/transactions/{id}
func (h *TradeHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id")
		return
	}

	rec, err := h.trades.Transaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get transaction")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(rec, ""))
}

// ListTransactions returns an owner's ledger, newest first.
// GET /api/transactions?owner_id=42&limit=50&since=...&until=...
func (h *TradeHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := parseOwnerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "owner_id query parameter required")
		return
	}

	recs, err := h.trades.History(r.Context(), ownerID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list transactions failed",
			slog.Int64("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list transactions")
		return
	}

	out := make([]transactionResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toTransactionResponse(rec, ""))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// respond writes an execution result. A recorded failure is still a 200: the
// operation ran and its outcome is in the body. Only pre-execution refusals
// (validation, rate limit, lock contention) map to error statuses.
func (h *TradeHandler) respond(w http.ResponseWriter, r *http.Request, op string, res service.TradeResult, err error) {
	if err != nil && res.Record.ID == "" {
		h.logger.ErrorContext(r.Context(), op+" refused",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to execute "+op)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(res.Record, res.ExplorerURL))
}
