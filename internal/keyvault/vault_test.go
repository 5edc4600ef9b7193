package keyvault

import (
	"encoding/hex"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/nvoloshin/swapbot/internal/domain"
)

func TestGenerateAndSignRoundTrip(t *testing.T) {
	v := New("s3cret")

	pubkey, ref, err := v.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !ref.Encrypted {
		t.Fatal("expected encrypted credential with a passphrase set")
	}

	signer, err := v.SignerFor(ref)
	if err != nil {
		t.Fatalf("SignerFor: %v", err)
	}
	if signer.PublicKey() != pubkey {
		t.Fatalf("signer pubkey %s does not match generated %s", signer.PublicKey(), pubkey)
	}

	msg := []byte("hello chain")
	sigBytes, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig := solana.SignatureFromBytes(sigBytes)
	pk := solana.MustPublicKeyFromBase58(pubkey)
	if !sig.Verify(pk, msg) {
		t.Fatal("signature does not verify against the wallet public key")
	}
}

func TestPlainCredentialFallback(t *testing.T) {
	// Wallets imported before encryption store the bare base58 key.
	w := solana.NewWallet()
	ref := domain.CredentialRef{Ciphertext: w.PrivateKey.String(), Encrypted: false}

	v := New("passphrase-irrelevant-for-plain-keys")
	signer, err := v.SignerFor(ref)
	if err != nil {
		t.Fatalf("SignerFor: %v", err)
	}
	if signer.PublicKey() != w.PublicKey().String() {
		t.Fatalf("pubkey %s, want %s", signer.PublicKey(), w.PublicKey().String())
	}
}

func TestWrongPassphrase(t *testing.T) {
	v := New("right")
	_, ref, err := v.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	_, err = New("wrong").SignerFor(ref)
	if err == nil {
		t.Fatal("expected decryption failure with the wrong passphrase")
	}
	if domain.KindOf(err) != domain.KindCredential {
		t.Fatalf("error kind = %v, want credential", domain.KindOf(err))
	}
}

func TestEncryptedCredentialWithoutPassphrase(t *testing.T) {
	v := New("secret")
	_, ref, err := v.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	_, err = New("").SignerFor(ref)
	if err == nil {
		t.Fatal("expected error resolving encrypted credential without a passphrase")
	}
	if domain.ReasonOf(err) != domain.ReasonCredentialUnavailable {
		t.Fatalf("reason = %q, want %q", domain.ReasonOf(err), domain.ReasonCredentialUnavailable)
	}
}

func TestImportAcceptsHexKey(t *testing.T) {
	w := solana.NewWallet()
	hexKey := hex.EncodeToString([]byte(w.PrivateKey))

	v := New("")
	pubkey, _, err := v.Import(hexKey)
	if err != nil {
		t.Fatalf("Import hex: %v", err)
	}
	if pubkey != w.PublicKey().String() {
		t.Fatalf("pubkey %s, want %s", pubkey, w.PublicKey().String())
	}
}

func TestPlainHexCredential(t *testing.T) {
	w := solana.NewWallet()
	ref := domain.CredentialRef{Ciphertext: hex.EncodeToString([]byte(w.PrivateKey)), Encrypted: false}

	signer, err := New("").SignerFor(ref)
	if err != nil {
		t.Fatalf("SignerFor: %v", err)
	}
	if signer.PublicKey() != w.PublicKey().String() {
		t.Fatalf("pubkey %s, want %s", signer.PublicKey(), w.PublicKey().String())
	}
}

func TestEncryptedFlagOnBareKeyFallsBack(t *testing.T) {
	// Rows migrated from older deployments can carry Encrypted=true while
	// actually holding the bare base58 key.
	w := solana.NewWallet()
	ref := domain.CredentialRef{Ciphertext: w.PrivateKey.String(), Encrypted: true}

	signer, err := New("some-passphrase").SignerFor(ref)
	if err != nil {
		t.Fatalf("SignerFor: %v", err)
	}
	if signer.PublicKey() != w.PublicKey().String() {
		t.Fatalf("pubkey %s, want %s", signer.PublicKey(), w.PublicKey().String())
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	v := New("secret")
	if _, _, err := v.Import("not-a-base58-key"); err == nil {
		t.Fatal("expected error importing an invalid key")
	}
}
