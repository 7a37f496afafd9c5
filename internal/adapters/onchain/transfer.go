package onchain

// transfer.go: payout/refund transaction construction and broadcast.
//
// The bot never holds a private key. It packs the ERC-20 transfer calldata,
// assembles the unsigned transaction, asks the delegated signing service
// for a recoverable ECDSA signature over the EIP-155 sighash (scoped to the
// source derivation path), attaches the signature and broadcasts.
//
// This operation is NOT idempotent. The state machine calls it at most once
// per (bet, event) by gating on ledger status; the signing service's
// duplicate-path rejection is the backstop.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
)

const (
	// Plain ERC-20 transfer; conservative upper bound.
	transferGasLimit = uint64(90_000)

	// A send that exceeds this window is ambiguous: the node may or may
	// not have accepted the transaction.
	broadcastTimeout = 30 * time.Second

	// How long to poll for the receipt before returning optimistically.
	confirmWait = 60 * time.Second

	gasPriceUpdateInterval = 5 * time.Minute
)

// PayloadSigner is the slice of the signing service the transfer builder
// needs: a delegated signature over a payload, with the key scoped to a
// path and duplicate operations rejected by opPath.
type PayloadSigner interface {
	Sign(ctx context.Context, payload []byte, path, opPath string) ([]byte, error)
}

// TransferClient implements ports.TransferExecutor.
type TransferClient struct {
	client  *ethclient.Client
	signer  PayloadSigner
	token   common.Address
	chainID *big.Int

	mu           sync.RWMutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
}

// NewTransferClient connects to the settlement chain RPC.
func NewTransferClient(rpcURL string, chainID int64, tokenAddress string, signer PayloadSigner) (*TransferClient, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("onchain.NewTransferClient: invalid token address %q", tokenAddress)
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewTransferClient: dial rpc %s: %w", rpcURL, err)
	}
	return &TransferClient{
		client:  client,
		signer:  signer,
		token:   common.HexToAddress(tokenAddress),
		chainID: big.NewInt(chainID),
	}, nil
}

// Transfer builds, signs and broadcasts one token transfer.
func (tc *TransferClient) Transfer(ctx context.Context, req domain.TransferRequest) (string, error) {
	if !common.IsHexAddress(req.SourceAddress) {
		return "", fmt.Errorf("onchain.Transfer: invalid source address %q", req.SourceAddress)
	}
	if !common.IsHexAddress(req.Destination) {
		return "", fmt.Errorf("onchain.Transfer: invalid destination %q", req.Destination)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return "", fmt.Errorf("onchain.Transfer: non-positive amount")
	}

	callData, err := packTransfer(common.HexToAddress(req.Destination), req.Amount)
	if err != nil {
		return "", fmt.Errorf("onchain.Transfer: pack calldata: %w", err)
	}

	nonce, err := tc.client.PendingNonceAt(ctx, common.HexToAddress(req.SourceAddress))
	if err != nil {
		return "", fmt.Errorf("onchain.Transfer: nonce for %s: %w", req.SourceAddress, err)
	}

	gasPrice, err := tc.getGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("onchain.Transfer: gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, tc.token, big.NewInt(0), transferGasLimit, gasPrice, callData)
	ethSigner := types.NewEIP155Signer(tc.chainID)

	// Delegated signature scoped to the source path. The op path is
	// deterministic per (bet, kind), so a second attempt at the same
	// event gets rejected by the service.
	sig, err := tc.signer.Sign(ctx, ethSigner.Hash(tx).Bytes(), req.SourcePath, req.OpPath)
	if err != nil {
		return "", fmt.Errorf("onchain.Transfer: delegated sign: %w", err)
	}

	signedTx, err := tx.WithSignature(ethSigner, sig)
	if err != nil {
		return "", fmt.Errorf("onchain.Transfer: attach signature: %w", err)
	}
	txHash := signedTx.Hash().Hex()

	sendCtx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()
	if err := tc.client.SendTransaction(sendCtx, signedTx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// The node may have accepted the transaction anyway.
			return txHash, fmt.Errorf("onchain.Transfer: send timed out: %w", ports.ErrBroadcastAmbiguous)
		}
		return "", fmt.Errorf("onchain.Transfer: send tx: %w", err)
	}

	slog.Info("transfer broadcast",
		"bet", req.BetID,
		"kind", req.Kind,
		"amount", req.Amount.String(),
		"tx", txHash,
	)

	receiptCtx, cancel2 := context.WithTimeout(ctx, confirmWait)
	defer cancel2()

	receipt, err := tc.waitForReceipt(receiptCtx, signedTx.Hash())
	if err != nil {
		// Broadcast was accepted; inclusion is just slow. Good enough to
		// advance the bet; the journal keeps the hash for the operator.
		slog.Warn("transfer not yet confirmed, proceeding on accepted broadcast",
			"bet", req.BetID, "tx", txHash, "err", err)
		return txHash, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash, fmt.Errorf("onchain.Transfer: tx %s: %w", txHash, ports.ErrTransferReverted)
	}

	slog.Info("transfer confirmed", "bet", req.BetID, "kind", req.Kind, "tx", txHash)
	return txHash, nil
}

// packTransfer encodes transfer(to, amount) calldata.
func packTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", to, amount)
}

// getGasPrice returns the current gas price, with caching to avoid
// excessive RPC calls.
func (tc *TransferClient) getGasPrice(ctx context.Context) (*big.Int, error) {
	tc.mu.RLock()
	cached := tc.cachedGasWei
	updatedAt := tc.gasUpdatedAt
	tc.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached, nil
	}

	price, err := tc.client.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	// 10% buffer for faster inclusion (copy to avoid mutating the return)
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))

	tc.mu.Lock()
	tc.cachedGasWei = buffered
	tc.gasUpdatedAt = time.Now()
	tc.mu.Unlock()

	return buffered, nil
}

// waitForReceipt polls for a transaction receipt until confirmed or timeout.
func (tc *TransferClient) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := tc.client.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}
