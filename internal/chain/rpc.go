package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcError is the JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcResponse is the JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// call performs a single JSON-RPC request and returns the normalized result.
// Node versions differ in whether they wrap results in a context envelope
// ({"context":…,"value":…}) or return the value bare; unwrapValue erases the
// difference so every decoder in this package sees exactly one shape.
func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("chain: encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("chain: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: http request: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: read response: %w", method, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("chain: %s: %w", method, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chain: %s: HTTP %d: %s", method, resp.StatusCode, string(body))
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("chain: %s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("chain: %s: %w", method, envelope.Error)
	}

	return unwrapValue(envelope.Result), nil
}

// unwrapValue strips the optional context envelope from an RPC result.
func unwrapValue(result json.RawMessage) json.RawMessage {
	var wrapped struct {
		Value   json.RawMessage `json:"value"`
		Context json.RawMessage `json:"context"`
	}
	if err := json.Unmarshal(result, &wrapped); err == nil && wrapped.Value != nil && wrapped.Context != nil {
		return wrapped.Value
	}
	return result
}
