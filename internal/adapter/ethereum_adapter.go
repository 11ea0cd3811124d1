package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/blocke-ledger/internal/config"
	"github.com/blocke-ledger/internal/types"
)

// TokenABI declares the ERC-20 views the adapter calls
const TokenABI = `[
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// StakingABI declares the staking contract events the adapter sums
const StakingABI = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"periodIndex","type":"uint256"}
	],"name":"Staked","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"user","type":"address"},
		{"indexed":false,"name":"amount","type":"uint256"}
	],"name":"RewardClaimed","type":"event"}
]`

// EthereumAdapter reads the token and staking contracts over JSON-RPC
type EthereumAdapter struct {
	client     ChainReader
	closer     func()
	token      common.Address
	staking    common.Address
	hasStaking bool
	tokenABI   abi.ABI
	stakingABI abi.ABI
}

// NewEthereumAdapter dials the configured RPC endpoint
func NewEthereumAdapter(ctx context.Context, cfg *config.ChainConfig) (*EthereumAdapter, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	var reader ChainReader = client
	if cfg.ComputeUnitsPerSecond > 0 {
		reader, err = NewRateLimitedReader(client, cfg.ComputeUnitsPerSecond, cfg.RPCMaxWait)
		if err != nil {
			client.Close()
			return nil, err
		}
	}

	a, err := NewEthereumAdapterWithClient(reader, cfg.TokenContract, cfg.StakingContract)
	if err != nil {
		client.Close()
		return nil, err
	}
	a.closer = client.Close
	return a, nil
}

// NewEthereumAdapterWithClient builds an adapter over an existing client
func NewEthereumAdapterWithClient(client ChainReader, tokenContract, stakingContract string) (*EthereumAdapter, error) {
	if !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address: %q", tokenContract)
	}
	if stakingContract != "" && !common.IsHexAddress(stakingContract) {
		return nil, fmt.Errorf("invalid staking contract address: %q", stakingContract)
	}

	tokenABI, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	stakingABI, err := abi.JSON(strings.NewReader(StakingABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse staking ABI: %w", err)
	}

	a := &EthereumAdapter{
		client:     client,
		token:      common.HexToAddress(tokenContract),
		tokenABI:   tokenABI,
		stakingABI: stakingABI,
	}
	if stakingContract != "" {
		a.staking = common.HexToAddress(stakingContract)
		a.hasStaking = true
	}
	return a, nil
}

// StakingContract returns the lowercase staking contract address
func (a *EthereumAdapter) StakingContract() string {
	if !a.hasStaking {
		return ""
	}
	return strings.ToLower(a.staking.Hex())
}

// TotalSupply returns the token's totalSupply() in base units
func (a *EthereumAdapter) TotalSupply(ctx context.Context) (*big.Int, error) {
	out, err := a.callToken(ctx, "totalSupply")
	if err != nil {
		return nil, err
	}

	supply, ok := out[0].(*big.Int)
	if !ok {
		return nil, NewAdapterError(a.tokenHex(), "TotalSupply", ErrMalformedResult, map[string]interface{}{
			"type": fmt.Sprintf("%T", out[0]),
		})
	}
	return supply, nil
}

// Decimals returns the token's decimals()
func (a *EthereumAdapter) Decimals(ctx context.Context) (uint8, error) {
	out, err := a.callToken(ctx, "decimals")
	if err != nil {
		return 0, err
	}

	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, NewAdapterError(a.tokenHex(), "Decimals", ErrMalformedResult, map[string]interface{}{
			"type": fmt.Sprintf("%T", out[0]),
		})
	}
	return decimals, nil
}

func (a *EthereumAdapter) callToken(ctx context.Context, method string) ([]interface{}, error) {
	data, err := a.tokenABI.Pack(method)
	if err != nil {
		return nil, NewAdapterError(a.tokenHex(), method, err, nil)
	}

	to := a.token
	result, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, NewAdapterError(a.tokenHex(), method, err, nil)
	}

	out, err := a.tokenABI.Unpack(method, result)
	if err != nil || len(out) == 0 {
		return nil, NewAdapterError(a.tokenHex(), method, ErrMalformedResult, map[string]interface{}{
			"result": common.Bytes2Hex(result),
		})
	}
	return out, nil
}

// BlockNumber returns the current head block
func (a *EthereumAdapter) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, NewAdapterError("", "BlockNumber", err, nil)
	}
	return head, nil
}

// SumEventAmounts sums the amount field of every event of the given kind
// emitted by the staking contract in [fromBlock, toBlock]
func (a *EthereumAdapter) SumEventAmounts(ctx context.Context, event types.OnChainEvent, fromBlock, toBlock uint64) (*big.Int, error) {
	if !a.hasStaking {
		return nil, NewAdapterError("", "SumEventAmounts", ErrNoStakingContract, nil)
	}
	if fromBlock > toBlock {
		return nil, NewAdapterError(a.StakingContract(), "SumEventAmounts", ErrInvalidBlockRange, map[string]interface{}{
			"fromBlock": fromBlock,
			"toBlock":   toBlock,
		})
	}

	ev, ok := a.stakingABI.Events[string(event)]
	if !ok {
		return nil, NewAdapterError(a.StakingContract(), "SumEventAmounts", ErrUnknownEvent, map[string]interface{}{
			"event": string(event),
		})
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{a.staking},
		Topics:    [][]common.Hash{{ev.ID}},
	}

	logs, err := a.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, NewAdapterError(a.StakingContract(), "SumEventAmounts", err, map[string]interface{}{
			"event":     string(event),
			"fromBlock": fromBlock,
			"toBlock":   toBlock,
		})
	}

	sum := new(big.Int)
	for _, log := range logs {
		// Logs from reorged-out blocks are reported with Removed set.
		if log.Removed {
			continue
		}

		fields := map[string]interface{}{}
		if err := ev.Inputs.NonIndexed().UnpackIntoMap(fields, log.Data); err != nil {
			return nil, NewAdapterError(a.StakingContract(), "SumEventAmounts", ErrMalformedResult, map[string]interface{}{
				"event":  string(event),
				"txHash": log.TxHash.Hex(),
			})
		}

		amount, ok := fields["amount"].(*big.Int)
		if !ok {
			return nil, NewAdapterError(a.StakingContract(), "SumEventAmounts", ErrMalformedResult, map[string]interface{}{
				"event":  string(event),
				"txHash": log.TxHash.Hex(),
			})
		}
		sum.Add(sum, amount)
	}

	return sum, nil
}

func (a *EthereumAdapter) tokenHex() string {
	return strings.ToLower(a.token.Hex())
}

// Close closes the RPC client connection
func (a *EthereumAdapter) Close() {
	if a.closer != nil {
		a.closer()
	}
}
