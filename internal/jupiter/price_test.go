package jupiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nvoloshin/swapbot/internal/domain"
)

func TestPricesParsesResponse(t *testing.T) {
	var gotIDs string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("ids")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"So11111111111111111111111111111111111111112": {"usdPrice": 162.41},
			"` + usdcMint + `": {"usdPrice": 0.9998}
		}`))
	}))
	defer srv.Close()

	pc := NewPriceClient(PriceClientConfig{BaseURL: srv.URL})

	prices, err := pc.Prices(context.Background(), []string{domain.NativeMint, usdcMint})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2", len(prices))
	}
	if prices[domain.NativeMint] != 162.41 {
		t.Errorf("SOL price = %v", prices[domain.NativeMint])
	}
	if !strings.Contains(gotIDs, usdcMint) {
		t.Errorf("ids query = %q", gotIDs)
	}
}

func TestPricesOmitsUnknownMints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"` + usdcMint + `": null}`))
	}))
	defer srv.Close()

	pc := NewPriceClient(PriceClientConfig{BaseURL: srv.URL})

	prices, err := pc.Prices(context.Background(), []string{usdcMint})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(prices) != 0 {
		t.Errorf("got %v, want empty", prices)
	}
}

func TestPricesRejectsInvalidMint(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	defer srv.Close()

	pc := NewPriceClient(PriceClientConfig{BaseURL: srv.URL})

	_, err := pc.Prices(context.Background(), []string{"not-a-mint"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if domain.KindOf(err) != domain.KindValidation {
		t.Errorf("kind = %v", domain.KindOf(err))
	}
	if calls != 0 {
		t.Errorf("request was sent despite invalid mint")
	}
}

func TestPricesEmptyInput(t *testing.T) {
	pc := NewPriceClient(PriceClientConfig{BaseURL: "http://127.0.0.1:0"})

	prices, err := pc.Prices(context.Background(), nil)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(prices) != 0 {
		t.Errorf("got %v, want empty", prices)
	}
}
