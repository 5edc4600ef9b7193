package swap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/nvoloshin/swapbot/internal/domain"
)

// TransferExecutor sends SOL and SPL tokens out of custodial wallets.
type TransferExecutor struct {
	chain    Chain
	decimals DecimalsSource
	logger   *slog.Logger
}

// NewTransferExecutor creates a transfer executor.
func NewTransferExecutor(chain Chain, decimals DecimalsSource, logger *slog.Logger) *TransferExecutor {
	return &TransferExecutor{
		chain:    chain,
		decimals: decimals,
		logger:   logger.With(slog.String("component", "transfer_executor")),
	}
}

// TransferSOL sends amount SOL from the signer's wallet to recipient.
func (t *TransferExecutor) TransferSOL(ctx context.Context, signer Signer, recipient string, amount float64) (domain.Outcome, error) {
	if err := validateTransfer(recipient, amount, signer.PublicKey()); err != nil {
		return domain.Outcome{}, err
	}

	lamports := domain.ToRawAmount(amount, domain.DefaultDecimals)
	balance, err := t.chain.Balance(ctx, signer.PublicKey())
	if err != nil {
		return domain.Outcome{}, classifyCtx(ctx, err)
	}
	if balance < lamports+feeHeadroomLamports {
		return domain.Outcome{}, domain.NewError(domain.KindValidation, domain.ReasonInsufficientBalance,
			fmt.Sprintf("need %d lamports, have %d", lamports+feeHeadroomLamports, balance))
	}

	from := solana.MustPublicKeyFromBase58(signer.PublicKey())
	to := solana.MustPublicKeyFromBase58(recipient)
	instr := system.NewTransferInstruction(lamports, from, to).Build()

	sig, err := t.buildAndSubmit(ctx, signer, from, []solana.Instruction{instr})
	if err != nil {
		return domain.Outcome{}, classifyCtx(ctx, err)
	}

	t.logger.Info("sol transfer submitted",
		slog.String("signature", sig),
		slog.String("recipient", recipient),
		slog.Uint64("lamports", lamports))

	return settle(ctx, t.chain, sig), nil
}

// TransferToken sends amount of mint from the signer's wallet to recipient.
// When the recipient has no associated token account yet, the transaction
// creates it first, at the sender's expense.
func (t *TransferExecutor) TransferToken(ctx context.Context, signer Signer, recipient, mint string, amount float64) (domain.Outcome, error) {
	if err := validateTransfer(recipient, amount, signer.PublicKey()); err != nil {
		return domain.Outcome{}, err
	}
	if !domain.ValidAddress(mint) {
		return domain.Outcome{}, domain.NewError(domain.KindValidation, domain.ReasonInvalidAddress, "invalid mint "+mint)
	}

	decimals := t.decimals.Decimals(ctx, mint)
	amountRaw := domain.ToRawAmount(amount, decimals)

	rawBalance, _, err := t.chain.TokenBalance(ctx, signer.PublicKey(), mint)
	if err != nil {
		return domain.Outcome{}, classifyCtx(ctx, err)
	}
	if rawBalance < amountRaw {
		return domain.Outcome{}, domain.NewError(domain.KindValidation, domain.ReasonInsufficientBalance,
			fmt.Sprintf("need %d raw units, have %d", amountRaw, rawBalance))
	}

	owner := solana.MustPublicKeyFromBase58(signer.PublicKey())
	dest := solana.MustPublicKeyFromBase58(recipient)
	mintKey := solana.MustPublicKeyFromBase58(mint)

	sourceATA, _, err := solana.FindAssociatedTokenAddress(owner, mintKey)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("swap: derive source token account: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(dest, mintKey)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("swap: derive recipient token account: %w", err)
	}

	var instrs []solana.Instruction
	exists, err := t.chain.AccountExists(ctx, destATA.String())
	if err != nil {
		return domain.Outcome{}, classifyCtx(ctx, err)
	}
	if !exists {
		instrs = append(instrs, associatedtokenaccount.NewCreateInstruction(owner, dest, mintKey).Build())
	}
	instrs = append(instrs, token.NewTransferInstruction(amountRaw, sourceATA, destATA, owner, nil).Build())

	sig, err := t.buildAndSubmit(ctx, signer, owner, instrs)
	if err != nil {
		return domain.Outcome{}, classifyCtx(ctx, err)
	}

	t.logger.Info("token transfer submitted",
		slog.String("signature", sig),
		slog.String("recipient", recipient),
		slog.String("mint", mint),
		slog.Uint64("amount_raw", amountRaw),
		slog.Bool("created_token_account", !exists))

	return settle(ctx, t.chain, sig), nil
}

func (t *TransferExecutor) buildAndSubmit(ctx context.Context, signer Signer, payer solana.PublicKey, instrs []solana.Instruction) (string, error) {
	blockhash, err := t.chain.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	tx, err := solana.NewTransaction(instrs, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return "", fmt.Errorf("swap: build transaction: %w", err)
	}
	return signAndSubmit(ctx, t.chain, signer, tx)
}

func validateTransfer(recipient string, amount float64, sender string) error {
	if amount <= 0 {
		return domain.NewError(domain.KindValidation, domain.ReasonInvalidAmount, "transfer amount must be positive")
	}
	if !domain.ValidAddress(recipient) {
		return domain.NewError(domain.KindValidation, domain.ReasonInvalidRecipient, "invalid recipient address "+recipient)
	}
	if recipient == sender {
		return domain.NewError(domain.KindValidation, domain.ReasonInvalidRecipient, "recipient is the sending wallet")
	}
	return nil
}
