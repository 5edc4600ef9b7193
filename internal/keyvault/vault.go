// Package keyvault manages custodial signing keys. Private keys are held
// encrypted at rest with PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM,
// and never leave the package: callers hand the vault message bytes and get
// back detached signatures.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/pbkdf2"

	"github.com/nvoloshin/swapbot/internal/domain"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-credential JSON schema version.
	currentVersion = 1
)

// encryptedKeyJSON is the stored format for an encrypted private key.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// Signer signs transaction messages for a single wallet. The secret key
// stays inside the vault; the executor only sees the public key and the
// detached signature bytes.
type Signer interface {
	PublicKey() string
	Sign(message []byte) ([]byte, error)
}

// Vault resolves credential references into signers.
type Vault struct {
	passphrase string
}

// New creates a Vault using the given passphrase for credential encryption.
// An empty passphrase disables encryption: Generate then stores plain keys,
// which is only acceptable in development setups.
func New(passphrase string) *Vault {
	return &Vault{passphrase: passphrase}
}

// Generate creates a fresh ed25519 keypair and returns its public key along
// with the credential reference to persist.
func (v *Vault) Generate() (pubkey string, ref domain.CredentialRef, err error) {
	w := solana.NewWallet()
	return v.Import(w.PrivateKey.String())
}

// Import wraps an existing private key into a credential reference,
// encrypting it when the vault has a passphrase. Both encodings seen in
// exported wallets are accepted: base58 and 64-byte hex.
func (v *Vault) Import(privateKey string) (pubkey string, ref domain.CredentialRef, err error) {
	key, err := parsePrivateKey(privateKey)
	if err != nil {
		return "", domain.CredentialRef{}, domain.WrapError(domain.KindCredential, domain.ReasonInvalidCredential, err)
	}

	if v.passphrase == "" {
		return key.PublicKey().String(), domain.CredentialRef{Ciphertext: key.String(), Encrypted: false}, nil
	}

	blob, err := encrypt([]byte(key), v.passphrase)
	if err != nil {
		return "", domain.CredentialRef{}, err
	}
	ref = domain.CredentialRef{
		Ciphertext: base64.StdEncoding.EncodeToString(blob),
		Encrypted:  true,
	}
	return key.PublicKey().String(), ref, nil
}

// SignerFor resolves a credential reference into a Signer. Unencrypted
// references are accepted for wallets imported before encryption was
// introduced.
func (v *Vault) SignerFor(ref domain.CredentialRef) (Signer, error) {
	key, err := v.resolve(ref)
	if err != nil {
		return nil, err
	}
	return &keypairSigner{key: key}, nil
}

func (v *Vault) resolve(ref domain.CredentialRef) (solana.PrivateKey, error) {
	if ref.Ciphertext == "" {
		return nil, domain.NewError(domain.KindCredential, domain.ReasonCredentialUnavailable, "no signing credential on record")
	}

	if !ref.Encrypted {
		key, err := parsePrivateKey(ref.Ciphertext)
		if err != nil {
			return nil, domain.WrapError(domain.KindCredential, domain.ReasonInvalidCredential, err)
		}
		return key, nil
	}

	if v.passphrase == "" {
		return nil, domain.NewError(domain.KindCredential, domain.ReasonCredentialUnavailable, "credential is encrypted but no vault passphrase is configured")
	}

	key, derr := v.decryptRef(ref)
	if derr == nil {
		return key, nil
	}
	// Rows migrated from older deployments can be flagged encrypted while
	// holding a bare key. If the stored string itself parses as one, use it.
	if key, err := parsePrivateKey(ref.Ciphertext); err == nil {
		return key, nil
	}
	return nil, derr
}

func (v *Vault) decryptRef(ref domain.CredentialRef) (solana.PrivateKey, error) {
	blob, err := base64.StdEncoding.DecodeString(ref.Ciphertext)
	if err != nil {
		return nil, domain.WrapError(domain.KindCredential, domain.ReasonInvalidCredential, fmt.Errorf("keyvault: decoding credential: %w", err))
	}
	raw, err := decrypt(blob, v.passphrase)
	if err != nil {
		return nil, err
	}
	if len(raw) == 64 {
		return solana.PrivateKey(raw), nil
	}
	// The plaintext may itself be a textual key rather than raw bytes.
	key, perr := parsePrivateKey(string(raw))
	if perr != nil {
		return nil, domain.NewError(domain.KindCredential, domain.ReasonInvalidCredential, fmt.Sprintf("decrypted credential has %d bytes, want 64", len(raw)))
	}
	return key, nil
}

// parsePrivateKey decodes a textual ed25519 secret key, trying base58
// first and 64-byte hex second.
func parsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if key, err := solana.PrivateKeyFromBase58(s); err == nil && len(key) == 64 {
		return key, nil
	}
	if raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil && len(raw) == 64 {
		return solana.PrivateKey(raw), nil
	}
	return nil, fmt.Errorf("keyvault: credential is neither a base58 nor a 64-byte hex key")
}

type keypairSigner struct {
	key solana.PrivateKey
}

func (s *keypairSigner) PublicKey() string { return s.key.PublicKey().String() }

func (s *keypairSigner) Sign(message []byte) ([]byte, error) {
	sig, err := s.key.Sign(message)
	if err != nil {
		return nil, domain.WrapError(domain.KindCredential, domain.ReasonInvalidCredential, fmt.Errorf("keyvault: signing: %w", err))
	}
	return sig[:], nil
}

// encrypt seals plaintext with a key derived from the passphrase.
func encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keyvault: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("keyvault: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyvault: creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keyvault: generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	return json.Marshal(encryptedKeyJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
}

// decrypt opens a blob produced by encrypt.
func decrypt(blob []byte, passphrase string) ([]byte, error) {
	var stored encryptedKeyJSON
	if err := json.Unmarshal(blob, &stored); err != nil {
		return nil, domain.WrapError(domain.KindCredential, domain.ReasonInvalidCredential, fmt.Errorf("keyvault: parsing credential blob: %w", err))
	}
	if stored.Version != currentVersion {
		return nil, domain.NewError(domain.KindCredential, domain.ReasonInvalidCredential, fmt.Sprintf("unsupported credential version %d", stored.Version))
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, domain.WrapError(domain.KindCredential, domain.ReasonInvalidCredential, fmt.Errorf("keyvault: decoding salt: %w", err))
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, domain.WrapError(domain.KindCredential, domain.ReasonInvalidCredential, fmt.Errorf("keyvault: decoding nonce: %w", err))
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, domain.WrapError(domain.KindCredential, domain.ReasonInvalidCredential, fmt.Errorf("keyvault: decoding ciphertext: %w", err))
	}

	derivedKey := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("keyvault: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyvault: creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, domain.WrapError(domain.KindCredential, domain.ReasonInvalidCredential, fmt.Errorf("keyvault: decryption failed (wrong passphrase?): %w", err))
	}
	return plaintext, nil
}
