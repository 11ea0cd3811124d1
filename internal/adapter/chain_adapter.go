package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/blocke-ledger/internal/types"
)

// ChainReader is the subset of the JSON-RPC client the adapter needs.
// *ethclient.Client satisfies it.
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// ContractReader reads the token and staking contracts behind the totals routes
type ContractReader interface {
	// TotalSupply returns the token's totalSupply() in base units
	TotalSupply(ctx context.Context) (*big.Int, error)

	// Decimals returns the token's decimals()
	Decimals(ctx context.Context) (uint8, error)

	// BlockNumber returns the current head block
	BlockNumber(ctx context.Context) (uint64, error)

	// SumEventAmounts sums the amount field of every matching staking
	// contract event in [fromBlock, toBlock]
	SumEventAmounts(ctx context.Context, event types.OnChainEvent, fromBlock, toBlock uint64) (*big.Int, error)

	// StakingContract returns the lowercase staking contract address
	StakingContract() string
}

// Common error types for chain adapters

var (
	// ErrInvalidBlockRange indicates an invalid block range was specified
	ErrInvalidBlockRange = fmt.Errorf("invalid block range")

	// ErrUnknownEvent indicates an event not declared in the staking ABI
	ErrUnknownEvent = fmt.Errorf("unknown contract event")

	// ErrNoStakingContract indicates event scans were requested without a staking contract
	ErrNoStakingContract = fmt.Errorf("staking contract not configured")

	// ErrMalformedResult indicates a contract call or log could not be decoded
	ErrMalformedResult = fmt.Errorf("malformed contract result")
)

// AdapterError wraps errors with additional context
type AdapterError struct {
	Contract string
	Op       string // Operation that failed (e.g., "TotalSupply", "SumEventAmounts")
	Err      error
	Details  map[string]interface{}
}

func (e *AdapterError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("chain adapter error [%s:%s]: %v (details: %+v)", e.Contract, e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("chain adapter error [%s:%s]: %v", e.Contract, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(contract string, op string, err error, details map[string]interface{}) *AdapterError {
	return &AdapterError{
		Contract: contract,
		Op:       op,
		Err:      err,
		Details:  details,
	}
}
