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

// WalletService defines the methods the wallet handler requires from the
// service layer.
type WalletService interface {
	Provision(ctx context.Context, ownerID int64, label string) (domain.WalletRecord, error)
	ImportKey(ctx context.Context, ownerID int64, privateKeyBase58, label string) (domain.WalletRecord, error)
	Get(ctx context.Context, id string) (domain.WalletRecord, error)
	ForOwner(ctx context.Context, ownerID int64) (domain.WalletRecord, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.WalletRecord, error)
	Remove(ctx context.Context, id string) error
	SOLBalance(ctx context.Context, walletID string) (service.WalletBalance, error)
	TokenBalance(ctx context.Context, walletID, mint string) (float64, error)
}

// WalletHandler serves wallet-related HTTP endpoints.
type WalletHandler struct {
	wallets WalletService
	logger  *slog.Logger
}

// NewWalletHandler creates a WalletHandler with the given service and logger.
func NewWalletHandler(wallets WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		wallets: wallets,
		logger:  logHandler(logger, "wallet"),
	}
}

// walletResponse is the API shape of a wallet. Key material never appears.
type walletResponse struct {
	ID        string `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	PublicKey string `json:"public_key"`
	Label     string `json:"label,omitempty"`
	Encrypted bool   `json:"encrypted"`
	CreatedAt string `json:"created_at"`
}

func toWalletResponse(w domain.WalletRecord) walletResponse {
	return walletResponse{
		ID:        w.ID,
		OwnerID:   w.OwnerID,
		PublicKey: w.PublicKey,
		Label:     w.Label,
		Encrypted: w.Credential.Encrypted,
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
	}
}

type createWalletRequest struct {
	OwnerID    int64  `json:"owner_id"`
	Label      string `json:"label"`
	PrivateKey string `json:"private_key"` // only for /import
}

// CreateWallet provisions a fresh custodial wallet for an owner.
// POST /api/wallets
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == 0 {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	wallet, err := h.wallets.Provision(r.Context(), req.OwnerID, req.Label)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "provision wallet failed",
			slog.Int64("owner_id", req.OwnerID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to create wallet")
		return
	}

	writeJSON(w, http.StatusCreated, toWalletResponse(wallet))
}

// ImportWallet registers a wallet from an externally supplied private key.
// POST /api/wallets/import
func (h *WalletHandler) ImportWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == 0 || req.PrivateKey == "" {
		writeError(w, http.StatusBadRequest, "owner_id and private_key are required")
		return
	}

	wallet, err := h.wallets.ImportKey(r.Context(), req.OwnerID, req.PrivateKey, req.Label)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "import wallet failed",
			slog.Int64("owner_id", req.OwnerID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to import wallet")
		return
	}

	writeJSON(w, http.StatusCreated, toWalletResponse(wallet))
}

// GetWallet returns one wallet by ID, or by owner via ?owner_id=.
// GET /api/wallets/{id}
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing wallet id")
		return
	}

	wallet, err := h.wallets.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get wallet")
		return
	}
	writeJSON(w, http.StatusOK, toWalletResponse(wallet))
}

// ListWallets returns all wallets, or a single owner's wallet when owner_id
// is supplied.
// GET /api/wallets?owner_id=42&limit=50&offset=0
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	if ownerID, ok := parseOwnerID(r); ok {
		wallet, err := h.wallets.ForOwner(r.Context(), ownerID)
		if err != nil {
			writeDomainError(w, err, "failed to get wallet")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"wallets": []walletResponse{toWalletResponse(wallet)},
		})
		return
	}

	wallets, err := h.wallets.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list wallets failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list wallets")
		return
	}

	out := make([]walletResponse, 0, len(wallets))
	for _, wallet := range wallets {
		out = append(out, toWalletResponse(wallet))
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": out})
}

// DeleteWallet removes a custodial wallet record and its key material.
// DELETE /api/wallets/{id}
func (h *WalletHandler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing wallet id")
		return
	}

	if err := h.wallets.Remove(r.Context(), id); err != nil {
		writeDomainError(w, err, "failed to delete wallet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "deleted",
		"wallet_id": id,
	})
}

// GetBalance returns the wallet's SOL balance, or an SPL token balance when
// ?mint= is supplied.
// GET /api/wallets/{id}/balance?mint=...
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing wallet id")
		return
	}

	if mint := r.URL.Query().Get("mint"); mint != "" {
		amount, err := h.wallets.TokenBalance(r.Context(), id, mint)
		if err != nil {
			writeDomainError(w, err, "failed to get token balance")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"wallet_id": id,
			"mint":      mint,
			"amount":    amount,
		})
		return
	}

	bal, err := h.wallets.SOLBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet_id": id,
		"lamports":  bal.Lamports,
		"sol":       bal.SOL,
	})
}
