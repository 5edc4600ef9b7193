package swap

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/nvoloshin/swapbot/internal/domain"
)

func TestTransferSOL(t *testing.T) {
	signer := newWalletSigner()
	recipient := solana.NewWallet().PublicKey()
	c := &fakeChain{
		blockhash:     solana.MustHashFromBase58("GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi"),
		lamports:      2_000_000_000,
		confirmStatus: domain.TxStatus{State: domain.TxConfirmed},
	}
	ex := NewTransferExecutor(c, fixedDecimals(9), testLogger())

	outcome, err := ex.TransferSOL(context.Background(), signer, recipient.String(), 0.5)
	if err != nil {
		t.Fatalf("TransferSOL: %v", err)
	}
	if outcome.Status != domain.StatusSucceeded {
		t.Fatalf("status = %v", outcome.Status)
	}

	tx := c.submitted[0]
	if len(tx.Message.Instructions) != 1 {
		t.Fatalf("instructions = %d, want 1", len(tx.Message.Instructions))
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	if !tx.Signatures[0].Verify(signer.key.PublicKey(), message) {
		t.Fatal("signature does not verify")
	}
}

func TestTransferSOLValidation(t *testing.T) {
	signer := newWalletSigner()
	c := &fakeChain{lamports: 2_000_000_000}
	ex := NewTransferExecutor(c, fixedDecimals(9), testLogger())

	cases := []struct {
		name      string
		recipient string
		amount    float64
		reason    string
	}{
		{"zero amount", solana.NewWallet().PublicKey().String(), 0, domain.ReasonInvalidAmount},
		{"negative amount", solana.NewWallet().PublicKey().String(), -1, domain.ReasonInvalidAmount},
		{"garbage recipient", "not-an-address", 1, domain.ReasonInvalidRecipient},
		{"self transfer", signer.PublicKey(), 1, domain.ReasonInvalidRecipient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ex.TransferSOL(context.Background(), signer, tc.recipient, tc.amount)
			if domain.ReasonOf(err) != tc.reason {
				t.Fatalf("reason = %q, want %q", domain.ReasonOf(err), tc.reason)
			}
		})
	}
	if c.submitCalls != 0 {
		t.Fatalf("submits = %d, invalid transfers must never reach the chain", c.submitCalls)
	}
}

func TestTransferSOLInsufficientBalance(t *testing.T) {
	signer := newWalletSigner()
	c := &fakeChain{lamports: 400_000_000}
	ex := NewTransferExecutor(c, fixedDecimals(9), testLogger())

	_, err := ex.TransferSOL(context.Background(), signer, solana.NewWallet().PublicKey().String(), 0.5)
	if domain.ReasonOf(err) != domain.ReasonInsufficientBalance {
		t.Fatalf("reason = %q, want insufficient balance", domain.ReasonOf(err))
	}
}

func TestTransferTokenCreatesRecipientAccount(t *testing.T) {
	signer := newWalletSigner()
	c := &fakeChain{
		blockhash:     solana.MustHashFromBase58("GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi"),
		tokenRaw:      10_000_000,
		tokenDecimals: 6,
		accountExists: false,
		confirmStatus: domain.TxStatus{State: domain.TxConfirmed},
	}
	ex := NewTransferExecutor(c, fixedDecimals(6), testLogger())

	outcome, err := ex.TransferToken(context.Background(), signer, solana.NewWallet().PublicKey().String(), testUSDC, 5)
	if err != nil {
		t.Fatalf("TransferToken: %v", err)
	}
	if outcome.Status != domain.StatusSucceeded {
		t.Fatalf("status = %v", outcome.Status)
	}
	// Create-account instruction prepended before the transfer.
	if got := len(c.submitted[0].Message.Instructions); got != 2 {
		t.Fatalf("instructions = %d, want 2 when the recipient account is missing", got)
	}
}

func TestTransferTokenExistingRecipientAccount(t *testing.T) {
	signer := newWalletSigner()
	c := &fakeChain{
		blockhash:     solana.MustHashFromBase58("GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi"),
		tokenRaw:      10_000_000,
		tokenDecimals: 6,
		accountExists: true,
		confirmStatus: domain.TxStatus{State: domain.TxConfirmed},
	}
	ex := NewTransferExecutor(c, fixedDecimals(6), testLogger())

	if _, err := ex.TransferToken(context.Background(), signer, solana.NewWallet().PublicKey().String(), testUSDC, 5); err != nil {
		t.Fatalf("TransferToken: %v", err)
	}
	if got := len(c.submitted[0].Message.Instructions); got != 1 {
		t.Fatalf("instructions = %d, want 1 when the recipient account exists", got)
	}
}

func TestTransferTokenInsufficientBalance(t *testing.T) {
	signer := newWalletSigner()
	c := &fakeChain{tokenRaw: 1_000_000, tokenDecimals: 6}
	ex := NewTransferExecutor(c, fixedDecimals(6), testLogger())

	_, err := ex.TransferToken(context.Background(), signer, solana.NewWallet().PublicKey().String(), testUSDC, 5)
	if domain.ReasonOf(err) != domain.ReasonInsufficientBalance {
		t.Fatalf("reason = %q, want insufficient balance", domain.ReasonOf(err))
	}
}
