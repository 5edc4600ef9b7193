package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nvoloshin/swapbot/internal/domain"
	"github.com/nvoloshin/swapbot/internal/notify"
)

// StatusSource reads the settlement status of a submitted transaction.
type StatusSource interface {
	SignatureStatus(ctx context.Context, signature string) (domain.TxStatus, error)
}

// Reconciler sweeps unconfirmed ledger rows and settles the ones whose
// on-chain status has since become known. A row whose signature the RPC node
// still reports as pending is left alone for the next sweep.
type Reconciler struct {
	ledger       domain.TransactionStore
	chain        StatusSource
	notifier     Notifier
	explorerHost string
	pollDur      time.Duration
	batch        int
	logger       *slog.Logger
}

// NewReconciler creates a Reconciler. pollInterval is how often to sweep;
// batch bounds how many rows one sweep examines.
func NewReconciler(
	ledger domain.TransactionStore,
	chain StatusSource,
	notifier Notifier,
	explorerHost string,
	pollInterval time.Duration,
	batch int,
	logger *slog.Logger,
) *Reconciler {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	return &Reconciler{
		ledger:       ledger,
		chain:        chain,
		notifier:     notifier,
		explorerHost: explorerHost,
		pollDur:      pollInterval,
		batch:        batch,
		logger:       logger.With(slog.String("component", "reconciler")),
	}
}

// Run sweeps on a ticker until the context is cancelled. Call in a goroutine.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollDur)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.ErrorContext(ctx, "reconcile sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep settles as many unconfirmed rows as the chain now has answers for
// and returns how many were settled.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	rows, err := r.ledger.ListUnconfirmed(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, rec := range rows {
		if rec.Signature == "" {
			continue
		}

		status, err := r.chain.SignatureStatus(ctx, rec.Signature)
		if err != nil {
			r.logger.DebugContext(ctx, "status fetch failed",
				slog.String("tx_id", rec.ID),
				slog.String("signature", rec.Signature),
				slog.String("error", err.Error()),
			)
			continue
		}

		var out domain.Outcome
		switch status.State {
		case domain.TxConfirmed:
			out = domain.Succeeded(rec.Signature)
		case domain.TxFailed:
			out = domain.Outcome{
				Status:    domain.StatusFailed,
				Signature: rec.Signature,
				Reason:    domain.ReasonOnChainFailure,
				Detail:    status.Detail,
			}
		default:
			// Still pending; leave the row for the next sweep.
			continue
		}

		if err := r.ledger.UpdateStatus(ctx, rec.ID, out.Status, out.Detail); err != nil {
			r.logger.ErrorContext(ctx, "ledger update failed",
				slog.String("tx_id", rec.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		settled++

		r.logger.InfoContext(ctx, "transaction reconciled",
			slog.String("tx_id", rec.ID),
			slog.String("signature", rec.Signature),
			slog.String("status", string(out.Status)),
		)

		event, title, body := notify.PresentOutcome(rec.Kind, out, r.explorerHost)
		if notifyErr := r.notifier.Notify(ctx, event, title, body); notifyErr != nil {
			r.logger.WarnContext(ctx, "notify failed",
				slog.String("tx_id", rec.ID),
				slog.String("error", notifyErr.Error()),
			)
		}
	}

	return settled, nil
}
