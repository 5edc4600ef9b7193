package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nvoloshin/swapbot/internal/domain"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	sampleQuote = `{
		"inputMint": "So11111111111111111111111111111111111111112",
		"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"inAmount": "1000000000",
		"outAmount": "147500000",
		"priceImpactPct": "0.01",
		"slippageBps": 100,
		"platformFee": {"amount": "132750", "feeBps": 90},
		"routePlan": [{"swapInfo": {"ammKey": "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"}}]
	}`
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, cfg ClientConfig, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	return NewClient(cfg, testLogger())
}

func validRequest() domain.QuoteRequest {
	return domain.QuoteRequest{
		InputMint:   domain.NativeMint,
		OutputMint:  usdcMint,
		AmountRaw:   1_000_000_000,
		SlippagePct: 1.0,
	}
}

func TestQuoteValidatesBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, ClientConfig{}, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	cases := []struct {
		name   string
		mutate func(*domain.QuoteRequest)
		reason string
	}{
		{"zero amount", func(r *domain.QuoteRequest) { r.AmountRaw = 0 }, domain.ReasonInvalidAmount},
		{"zero slippage", func(r *domain.QuoteRequest) { r.SlippagePct = 0 }, domain.ReasonSlippageOutOfRange},
		{"below minimum slippage", func(r *domain.QuoteRequest) { r.SlippagePct = 0.05 }, domain.ReasonSlippageOutOfRange},
		{"excess slippage", func(r *domain.QuoteRequest) { r.SlippagePct = 20 }, domain.ReasonSlippageOutOfRange},
		{"far excess slippage", func(r *domain.QuoteRequest) { r.SlippagePct = 50 }, domain.ReasonSlippageOutOfRange},
		{"bad input mint", func(r *domain.QuoteRequest) { r.InputMint = "nope" }, domain.ReasonInvalidAddress},
		{"bad output mint", func(r *domain.QuoteRequest) { r.OutputMint = "!!!" }, domain.ReasonInvalidAddress},
		{"same mints", func(r *domain.QuoteRequest) { r.OutputMint = r.InputMint }, domain.ReasonInvalidAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := c.Quote(context.Background(), req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if domain.KindOf(err) != domain.KindValidation {
				t.Fatalf("kind = %v, want validation", domain.KindOf(err))
			}
			if domain.ReasonOf(err) != tc.reason {
				t.Fatalf("reason = %q, want %q", domain.ReasonOf(err), tc.reason)
			}
		})
	}
	if calls.Load() != 0 {
		t.Fatalf("aggregator was called %d times for invalid input", calls.Load())
	}
}

func TestQuote(t *testing.T) {
	c := newTestClient(t, ClientConfig{APIKey: "key123", PlatformFeeBps: 90, PlatformFeeAccount: "fee7account11111111111111111111111111111111"}, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key123" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("amount") != "1000000000" {
			t.Errorf("amount = %q", q.Get("amount"))
		}
		if q.Get("slippageBps") != "100" {
			t.Errorf("slippageBps = %q", q.Get("slippageBps"))
		}
		if q.Get("platformFeeBps") != "90" {
			t.Errorf("platformFeeBps = %q", q.Get("platformFeeBps"))
		}
		io.WriteString(w, sampleQuote)
	})

	route, err := c.Quote(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if route.InAmountRaw != 1_000_000_000 || route.OutAmountRaw != 147_500_000 {
		t.Fatalf("amounts = %d/%d", route.InAmountRaw, route.OutAmountRaw)
	}
	if route.PlatformFeeRaw != 132_750 {
		t.Fatalf("platform fee = %d", route.PlatformFeeRaw)
	}
	if route.SlippageBps != 100 {
		t.Fatalf("slippageBps = %d", route.SlippageBps)
	}
	if len(route.Payload) == 0 {
		t.Fatal("route payload must carry the full quote")
	}
}

func TestQuoteNoRoute(t *testing.T) {
	c := newTestClient(t, ClientConfig{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"Could not find any route"}`)
	})
	_, err := c.Quote(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.ReasonOf(err) != domain.ReasonNoRoute {
		t.Fatalf("reason = %q, want %q", domain.ReasonOf(err), domain.ReasonNoRoute)
	}
	if domain.KindOf(err) == domain.KindTransient {
		t.Fatal("no-route must not be classified as retryable")
	}
}

func TestQuoteEmptyRoutePlan(t *testing.T) {
	c := newTestClient(t, ClientConfig{}, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"inputMint":"a","outputMint":"b","inAmount":"1","outAmount":"1","routePlan":[]}`)
	})
	_, err := c.Quote(context.Background(), validRequest())
	if domain.ReasonOf(err) != domain.ReasonNoRoute {
		t.Fatalf("reason = %q, want %q", domain.ReasonOf(err), domain.ReasonNoRoute)
	}
}

func TestQuoteServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, ClientConfig{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Quote(context.Background(), validRequest())
	if domain.KindOf(err) != domain.KindTransient {
		t.Fatalf("kind = %v, want transient", domain.KindOf(err))
	}
}

func TestBuildSwapTransaction(t *testing.T) {
	rawTx := []byte{1, 2, 3, 4, 5}
	c := newTestClient(t, ClientConfig{}, func(w http.ResponseWriter, r *http.Request) {
		var req swapRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode swap request: %v", err)
		}
		if req.UserPublicKey != "user1111111111111111111111111111111111111111" {
			t.Errorf("userPublicKey = %q", req.UserPublicKey)
		}
		if !req.WrapAndUnwrapSol {
			t.Error("wrapAndUnwrapSol must be set")
		}
		if len(req.QuoteResponse) == 0 {
			t.Error("quoteResponse must echo the original quote")
		}
		resp := swapResponse{SwapTransaction: base64.StdEncoding.EncodeToString(rawTx)}
		json.NewEncoder(w).Encode(resp)
	})

	route := domain.Route{Payload: json.RawMessage(sampleQuote)}
	got, err := c.BuildSwapTransaction(context.Background(), route, "user1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("BuildSwapTransaction: %v", err)
	}
	if string(got) != string(rawTx) {
		t.Fatalf("transaction bytes = %v", got)
	}
}

func TestBuildSwapTransactionRequiresPayload(t *testing.T) {
	c := newTestClient(t, ClientConfig{}, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.BuildSwapTransaction(context.Background(), domain.Route{}, "user")
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("kind = %v, want validation", domain.KindOf(err))
	}
}
