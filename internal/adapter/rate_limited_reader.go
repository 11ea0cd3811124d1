package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"github.com/blocke-ledger/internal/logging"
)

// Compute unit costs of the RPC methods the adapter issues, using common
// provider pricing.
const (
	CostEthBlockNumber = 10
	CostEthCall        = 26
	CostEthGetLogs     = 75
)

// RPC method names
const (
	MethodEthBlockNumber = "eth_blockNumber"
	MethodEthCall        = "eth_call"
	MethodEthGetLogs     = "eth_getLogs"
)

// DefaultMaxWait bounds how long a call waits for compute units
const DefaultMaxWait = 30 * time.Second

// ErrMaxWaitExceeded is returned when compute units are not available in time
var ErrMaxWaitExceeded = errors.New("maximum wait time exceeded waiting for rate limit budget")

// RateLimitedReader wraps a ChainReader and spends compute units from a
// token bucket before each call.
type RateLimitedReader struct {
	underlying ChainReader
	limiter    *rate.Limiter
	maxWait    time.Duration
}

var _ ChainReader = (*RateLimitedReader)(nil)

// NewRateLimitedReader allows cuPerSecond compute units per second.
// The bucket holds one second of budget, and never less than one eth_getLogs.
func NewRateLimitedReader(underlying ChainReader, cuPerSecond int, maxWait time.Duration) (*RateLimitedReader, error) {
	if underlying == nil {
		return nil, errors.New("underlying client is required")
	}
	if cuPerSecond <= 0 {
		return nil, fmt.Errorf("compute units per second must be positive, got %d", cuPerSecond)
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	burst := cuPerSecond
	if burst < CostEthGetLogs {
		burst = CostEthGetLogs
	}

	return &RateLimitedReader{
		underlying: underlying,
		limiter:    rate.NewLimiter(rate.Limit(cuPerSecond), burst),
		maxWait:    maxWait,
	}, nil
}

// waitForBudget blocks until cu units are available, ctx ends or maxWait passes
func (c *RateLimitedReader) waitForBudget(ctx context.Context, method string, cu int) error {
	reservation := c.limiter.ReserveN(time.Now(), cu)
	if !reservation.OK() {
		return fmt.Errorf("%s: cost %d exceeds bucket size", method, cu)
	}

	delay := reservation.Delay()
	if delay == 0 {
		return nil
	}
	if delay > c.maxWait {
		reservation.Cancel()
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"method": method,
			"cu":     cu,
			"wait":   delay.String(),
		}).Warn("rpc budget wait exceeds limit")
		return ErrMaxWaitExceeded
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"method": method,
		"cu":     cu,
		"wait":   delay.String(),
	}).Debug("waiting for rpc budget")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BlockNumber wraps eth_blockNumber
func (c *RateLimitedReader) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.waitForBudget(ctx, MethodEthBlockNumber, CostEthBlockNumber); err != nil {
		return 0, fmt.Errorf("rate limit: %w", err)
	}
	return c.underlying.BlockNumber(ctx)
}

// CallContract wraps eth_call
func (c *RateLimitedReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.waitForBudget(ctx, MethodEthCall, CostEthCall); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return c.underlying.CallContract(ctx, msg, blockNumber)
}

// FilterLogs wraps eth_getLogs
func (c *RateLimitedReader) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	if err := c.waitForBudget(ctx, MethodEthGetLogs, CostEthGetLogs); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return c.underlying.FilterLogs(ctx, q)
}
