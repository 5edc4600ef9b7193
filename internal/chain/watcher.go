package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nvoloshin/swapbot/internal/domain"
)

const (
	// wsHandshakeTimeout bounds the websocket dial.
	wsHandshakeTimeout = 15 * time.Second
	// wsWriteWait is the time allowed to write a message to the peer.
	wsWriteWait = 10 * time.Second
)

// SignatureWatcher waits for signature confirmations over the RPC websocket
// instead of polling. One subscription is opened per watched signature; the
// node tears the subscription down itself after the first notification.
type SignatureWatcher struct {
	wsURL      string
	commitment string
	logger     *slog.Logger
}

// NewSignatureWatcher creates a watcher for the given websocket endpoint.
func NewSignatureWatcher(wsURL, commitment string, logger *slog.Logger) *SignatureWatcher {
	if commitment == "" {
		commitment = "confirmed"
	}
	return &SignatureWatcher{
		wsURL:      wsURL,
		commitment: commitment,
		logger:     logger.With(slog.String("component", "signature_watcher")),
	}
}

// Watch subscribes to status notifications for signature and blocks until
// the node reports it or ctx expires. A ctx deadline returns a pending
// status, not an error: the caller treats it like an exhausted poll.
func (w *SignatureWatcher) Watch(ctx context.Context, signature string) (domain.TxStatus, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return domain.TxStatus{}, fmt.Errorf("chain: ws connect: %w", err)
	}
	defer conn.Close()

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params: []any{
			signature,
			map[string]any{"commitment": w.commitment},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		return domain.TxStatus{}, fmt.Errorf("chain: ws subscribe: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}

	// Unblock the read loop when ctx is cancelled early.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for {
		var msg struct {
			Method string `json:"method"`
			Params struct {
				Result json.RawMessage `json:"result"`
			} `json:"params"`
			Result json.RawMessage `json:"result"`
			Error  *rpcError       `json:"error"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				w.logger.Debug("signature watch timed out",
					slog.String("signature", signature))
				return domain.TxStatus{State: domain.TxPending}, nil
			}
			return domain.TxStatus{}, fmt.Errorf("chain: ws read: %w", err)
		}
		if msg.Error != nil {
			return domain.TxStatus{}, fmt.Errorf("chain: ws subscribe: %w", msg.Error)
		}
		if msg.Method != "signatureNotification" {
			// Subscription confirmation reply.
			continue
		}

		var notif struct {
			Value struct {
				Err json.RawMessage `json:"err"`
			} `json:"value"`
		}
		if err := json.Unmarshal(unwrapValue(msg.Params.Result), &notif.Value); err != nil {
			// Some nodes nest the envelope, others do not.
			if err2 := json.Unmarshal(msg.Params.Result, &notif); err2 != nil {
				return domain.TxStatus{}, fmt.Errorf("chain: decode notification: %w", err)
			}
		}
		if len(notif.Value.Err) > 0 && string(notif.Value.Err) != "null" {
			return domain.TxStatus{State: domain.TxFailed, Detail: string(notif.Value.Err)}, nil
		}
		return domain.TxStatus{State: domain.TxConfirmed}, nil
	}
}
