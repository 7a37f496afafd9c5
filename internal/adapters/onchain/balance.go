package onchain

// balance.go: ERC-20 balance reads for funding detection.
//
// The deposit addresses derived by the signing service are plain EOAs; a
// bet goes Live only when both hold a strictly positive token balance in
// the same reconciliation pass. Any RPC failure here must surface as an
// error, never as zero: the state machine treats "unknown" as "not yet
// funded, retry next cycle".

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var erc20ABI abi.ABI

func init() {
	var err error
	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "transfer",
			"type": "function",
			"inputs": [
				{"name": "to", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}

// BalanceReader implements ports.BalanceProvider against the stake token.
type BalanceReader struct {
	client *ethclient.Client
	token  common.Address
}

// NewBalanceReader connects to the given RPC and targets the stake token.
func NewBalanceReader(rpcURL, tokenAddress string) (*BalanceReader, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("onchain.NewBalanceReader: invalid token address %q", tokenAddress)
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain.NewBalanceReader: dial rpc %s: %w", rpcURL, err)
	}
	return &BalanceReader{client: client, token: common.HexToAddress(tokenAddress)}, nil
}

// Balance returns the token balance of address in the smallest unit.
func (r *BalanceReader) Balance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("onchain.Balance: invalid address %q", address)
	}

	callData, err := erc20ABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("onchain.Balance: pack calldata: %w", err)
	}

	result, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &r.token,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("onchain.Balance: call balanceOf(%s): %w", address, err)
	}

	vals, err := erc20ABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("onchain.Balance: unpack balanceOf: %w", err)
	}
	balance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("onchain.Balance: unexpected balanceOf return type %T", vals[0])
	}
	return balance, nil
}
