package swap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/nvoloshin/swapbot/internal/domain"
)

const testUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// walletSigner signs with an in-memory keypair, mirroring the vault contract.
type walletSigner struct {
	key solana.PrivateKey
}

func newWalletSigner() *walletSigner {
	return &walletSigner{key: solana.NewWallet().PrivateKey}
}

func (s *walletSigner) PublicKey() string { return s.key.PublicKey().String() }

func (s *walletSigner) Sign(message []byte) ([]byte, error) {
	sig, err := s.key.Sign(message)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

// makeUnsignedTx serializes a minimal unsigned transaction for the fake
// aggregator to hand out.
func makeUnsignedTx(t *testing.T, payer solana.PublicKey) []byte {
	t.Helper()
	instr := system.NewTransferInstruction(1, payer, payer).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{instr}, solana.Hash{}, solana.TransactionPayer(payer))
	if err != nil {
		t.Fatalf("build tx: %v", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}
	return raw
}

type fakeQuoter struct {
	quoteCalls int
	buildCalls int
	lastReq    domain.QuoteRequest
	tx         []byte
	quoteErr   error
}

func (f *fakeQuoter) Quote(ctx context.Context, req domain.QuoteRequest) (domain.Route, error) {
	f.quoteCalls++
	f.lastReq = req
	if f.quoteErr != nil {
		return domain.Route{}, f.quoteErr
	}
	return domain.Route{
		InputMint:    req.InputMint,
		OutputMint:   req.OutputMint,
		InAmountRaw:  req.AmountRaw,
		OutAmountRaw: req.AmountRaw / 2,
		SlippageBps:  int(req.SlippagePct * 100),
		Payload:      json.RawMessage(`{"quote":true}`),
	}, nil
}

func (f *fakeQuoter) BuildSwapTransaction(ctx context.Context, route domain.Route, userPublicKey string) ([]byte, error) {
	f.buildCalls++
	if len(route.Payload) == 0 {
		return nil, domain.NewError(domain.KindValidation, domain.ReasonNoRoute, "route carries no quote payload")
	}
	return f.tx, nil
}

type fakeChain struct {
	blockhash     solana.Hash
	lamports      uint64
	tokenRaw      uint64
	tokenDecimals int
	accountExists bool

	submitErrs    []error // consumed per call, nil entries succeed
	submitCalls   int
	submitted     []*solana.Transaction
	confirmStatus domain.TxStatus
	confirmErr    error
	confirmCalls  int
}

func (f *fakeChain) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return f.blockhash, nil
}

func (f *fakeChain) SubmitTransaction(ctx context.Context, txBase64 string) (string, error) {
	f.submitCalls++
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("bad base64: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("bad transaction: %w", err)
	}
	f.submitted = append(f.submitted, tx)
	return fmt.Sprintf("sig-%d", f.submitCalls), nil
}

func (f *fakeChain) WaitForConfirmation(ctx context.Context, signature string) (domain.TxStatus, error) {
	f.confirmCalls++
	if f.confirmErr != nil {
		return domain.TxStatus{}, f.confirmErr
	}
	return f.confirmStatus, nil
}

func (f *fakeChain) Balance(ctx context.Context, pubkey string) (uint64, error) {
	return f.lamports, nil
}

func (f *fakeChain) TokenBalance(ctx context.Context, owner, mint string) (uint64, int, error) {
	return f.tokenRaw, f.tokenDecimals, nil
}

func (f *fakeChain) AccountExists(ctx context.Context, pubkey string) (bool, error) {
	return f.accountExists, nil
}

type fixedDecimals int

func (d fixedDecimals) Decimals(ctx context.Context, mint string) int { return int(d) }

func newTestExecutor(q *fakeQuoter, c *fakeChain, cfg Config) *Executor {
	return NewExecutor(q, c, fixedDecimals(9), cfg, testLogger())
}

func buyRequest() Request {
	return Request{
		InputMint:  domain.NativeMint,
		OutputMint: testUSDC,
		Amount:     1.0,
	}
}

func TestSwapHappyPath(t *testing.T) {
	signer := newWalletSigner()
	payer := signer.key.PublicKey()
	blockhash := solana.MustHashFromBase58("GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi")

	q := &fakeQuoter{tx: makeUnsignedTx(t, payer)}
	c := &fakeChain{
		blockhash:     blockhash,
		lamports:      2_000_000_000,
		confirmStatus: domain.TxStatus{State: domain.TxConfirmed},
	}
	e := newTestExecutor(q, c, Config{})

	outcome, route, err := e.Swap(context.Background(), signer, buyRequest())
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if outcome.Status != domain.StatusSucceeded {
		t.Fatalf("status = %v, want succeeded", outcome.Status)
	}
	if outcome.Signature != "sig-1" {
		t.Fatalf("signature = %q", outcome.Signature)
	}
	if route.InAmountRaw != 1_000_000_000 {
		t.Fatalf("route in amount = %d", route.InAmountRaw)
	}
	if q.quoteCalls != 1 || c.submitCalls != 1 {
		t.Fatalf("quotes=%d submits=%d, want 1/1", q.quoteCalls, c.submitCalls)
	}

	// The submitted transaction must carry the fresh blockhash and a
	// signature that verifies against the wallet key.
	tx := c.submitted[0]
	if tx.Message.RecentBlockhash != blockhash {
		t.Fatalf("blockhash = %s, want the freshly fetched one", tx.Message.RecentBlockhash)
	}
	if len(tx.Signatures) != 1 {
		t.Fatalf("signatures = %d, want 1", len(tx.Signatures))
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	if !tx.Signatures[0].Verify(payer, message) {
		t.Fatal("signature does not verify")
	}
}

func TestSwapRetriesWithFreshQuote(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{tx: makeUnsignedTx(t, signer.key.PublicKey())}
	c := &fakeChain{
		lamports:      2_000_000_000,
		submitErrs:    []error{domain.NewError(domain.KindTransient, domain.ReasonSubmissionFailed, "node busy")},
		confirmStatus: domain.TxStatus{State: domain.TxConfirmed},
	}
	e := newTestExecutor(q, c, Config{})

	outcome, _, err := e.Swap(context.Background(), signer, buyRequest())
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if outcome.Status != domain.StatusSucceeded {
		t.Fatalf("status = %v", outcome.Status)
	}
	// Every submission consumed its own quote.
	if q.quoteCalls != 2 || c.submitCalls != 2 {
		t.Fatalf("quotes=%d submits=%d, want 2/2", q.quoteCalls, c.submitCalls)
	}
}

func TestSwapGivesUpAfterMaxAttempts(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{tx: makeUnsignedTx(t, signer.key.PublicKey())}
	transient := domain.NewError(domain.KindTransient, domain.ReasonSubmissionFailed, "node busy")
	c := &fakeChain{
		lamports:   2_000_000_000,
		submitErrs: []error{transient, transient, transient},
	}
	e := newTestExecutor(q, c, Config{MaxAttempts: 3})

	_, _, err := e.Swap(context.Background(), signer, buyRequest())
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if c.submitCalls != 3 {
		t.Fatalf("submits = %d, want 3", c.submitCalls)
	}
}

func TestSwapOnChainFailureNotRetried(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{tx: makeUnsignedTx(t, signer.key.PublicKey())}
	c := &fakeChain{
		lamports:      2_000_000_000,
		confirmStatus: domain.TxStatus{State: domain.TxFailed, Detail: `{"InstructionError":[2,{"Custom":6000}]}`},
	}
	e := newTestExecutor(q, c, Config{})

	outcome, _, err := e.Swap(context.Background(), signer, buyRequest())
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if outcome.Status != domain.StatusFailed {
		t.Fatalf("status = %v, want failed", outcome.Status)
	}
	if outcome.Signature == "" {
		t.Fatal("failed outcome must keep the signature")
	}
	if outcome.Detail == "" {
		t.Fatal("failed outcome must carry the chain error detail")
	}
	if c.submitCalls != 1 {
		t.Fatalf("submits = %d, want 1 (settled failures are final)", c.submitCalls)
	}
}

func TestSwapUnconfirmedIsNotCoerced(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{tx: makeUnsignedTx(t, signer.key.PublicKey())}
	c := &fakeChain{
		lamports:      2_000_000_000,
		confirmStatus: domain.TxStatus{State: domain.TxPending},
	}
	e := newTestExecutor(q, c, Config{})

	outcome, _, err := e.Swap(context.Background(), signer, buyRequest())
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if outcome.Status != domain.StatusUnconfirmed {
		t.Fatalf("status = %v, want unconfirmed", outcome.Status)
	}
	if outcome.Signature != "sig-1" {
		t.Fatalf("signature = %q", outcome.Signature)
	}
	if c.submitCalls != 1 {
		t.Fatalf("submits = %d, an ambiguous outcome must never be resubmitted", c.submitCalls)
	}
}

func TestSwapInsufficientNativeBalance(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{tx: makeUnsignedTx(t, signer.key.PublicKey())}
	c := &fakeChain{lamports: 500_000_000}
	e := newTestExecutor(q, c, Config{})

	_, _, err := e.Swap(context.Background(), signer, buyRequest())
	if domain.ReasonOf(err) != domain.ReasonInsufficientBalance {
		t.Fatalf("reason = %q, want insufficient balance", domain.ReasonOf(err))
	}
	if q.quoteCalls != 0 {
		t.Fatal("no quote should be fetched when the balance guard rejects")
	}
}

func TestSellAllAppliesDustBuffer(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{tx: makeUnsignedTx(t, signer.key.PublicKey())}
	c := &fakeChain{
		tokenRaw:      100_000_000, // 100.0 at 6 decimals
		tokenDecimals: 6,
		confirmStatus: domain.TxStatus{State: domain.TxConfirmed},
	}
	e := NewExecutor(q, c, fixedDecimals(6), Config{SellBuffer: 0.01}, testLogger())

	_, _, err := e.Swap(context.Background(), signer, Request{
		InputMint:  testUSDC,
		OutputMint: domain.NativeMint,
		SellAll:    true,
	})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	want := domain.ToRawAmount(99.99, 6)
	if q.lastReq.AmountRaw != want {
		t.Fatalf("quoted amount = %d, want %d (balance minus buffer)", q.lastReq.AmountRaw, want)
	}
}

func TestSellDustOnlyBalance(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{}
	c := &fakeChain{tokenRaw: 5_000, tokenDecimals: 6} // 0.005, below buffer
	e := NewExecutor(q, c, fixedDecimals(6), Config{SellBuffer: 0.01}, testLogger())

	_, _, err := e.Swap(context.Background(), signer, Request{
		InputMint:  testUSDC,
		OutputMint: domain.NativeMint,
		SellAll:    true,
	})
	if domain.ReasonOf(err) != domain.ReasonInsufficientBalance {
		t.Fatalf("reason = %q, want insufficient balance", domain.ReasonOf(err))
	}
}

func TestSlippagePolicyOverride(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{tx: makeUnsignedTx(t, signer.key.PublicKey())}
	c := &fakeChain{
		lamports:      2_000_000_000,
		confirmStatus: domain.TxStatus{State: domain.TxConfirmed},
	}
	cfg := Config{
		Slippage: SlippagePolicy{
			DefaultPct: 1.0,
			Overrides:  map[string]float64{testUSDC: 10.0},
		},
	}
	e := newTestExecutor(q, c, cfg)

	if _, _, err := e.Swap(context.Background(), signer, buyRequest()); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if q.lastReq.SlippagePct != 10.0 {
		t.Fatalf("slippage = %v, want the per-mint override", q.lastReq.SlippagePct)
	}

	// An explicit request wins over the policy.
	req := buyRequest()
	req.SlippagePct = 2.5
	if _, _, err := e.Swap(context.Background(), signer, req); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if q.lastReq.SlippagePct != 2.5 {
		t.Fatalf("slippage = %v, want the explicit request", q.lastReq.SlippagePct)
	}
}

func TestSwapValidationErrorFromQuoterNotRetried(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{quoteErr: domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress, "bad mint")}
	c := &fakeChain{lamports: 2_000_000_000}
	e := newTestExecutor(q, c, Config{})

	_, _, err := e.Swap(context.Background(), signer, buyRequest())
	if !errorsIsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if q.quoteCalls != 1 {
		t.Fatalf("quotes = %d, want 1", q.quoteCalls)
	}
}

func TestSwapTransientQuoteErrorNotRetried(t *testing.T) {
	signer := newWalletSigner()
	q := &fakeQuoter{quoteErr: domain.NewError(domain.KindTransient, domain.ReasonAggregator, "HTTP 502")}
	c := &fakeChain{lamports: 2_000_000_000}
	e := newTestExecutor(q, c, Config{MaxAttempts: 3})

	_, _, err := e.Swap(context.Background(), signer, buyRequest())
	if domain.ReasonOf(err) != domain.ReasonAggregator {
		t.Fatalf("reason = %q, want aggregator", domain.ReasonOf(err))
	}
	// Quote failures surface on the first occurrence; only submission
	// failures earn a re-quote cycle.
	if q.quoteCalls != 1 {
		t.Fatalf("quotes = %d, want 1", q.quoteCalls)
	}
	if c.submitCalls != 0 {
		t.Fatalf("submits = %d, want 0", c.submitCalls)
	}
}

func TestSwapExpiredContextBeforeSubmitIsTimeout(t *testing.T) {
	signer := newWalletSigner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := &fakeQuoter{quoteErr: fmt.Errorf("aggregator: %w", ctx.Err())}
	c := &fakeChain{lamports: 2_000_000_000}
	e := newTestExecutor(q, c, Config{})

	_, _, err := e.Swap(ctx, signer, buyRequest())
	if domain.ReasonOf(err) != domain.ReasonTimeout {
		t.Fatalf("reason = %q, want timeout", domain.ReasonOf(err))
	}
	if c.submitCalls != 0 {
		t.Fatalf("submits = %d, want 0", c.submitCalls)
	}
}

func errorsIsValidation(err error) bool {
	if err == nil {
		return false
	}
	var derr *domain.Error
	return errors.As(err, &derr) && derr.Kind == domain.KindValidation
}
