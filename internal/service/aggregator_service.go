package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/blocke-ledger/internal/adapter"
	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/logging"
	"github.com/blocke-ledger/internal/models"
	"github.com/blocke-ledger/internal/storage"
	"github.com/blocke-ledger/internal/types"
)

// Names of the cached totals
const (
	TotalMinted  = "minted"
	TotalStaked  = "staked"
	TotalClaimed = "claimed"
)

// CheckpointStore persists event scan progress
type CheckpointStore interface {
	Get(ctx context.Context, contract, event string) (*models.ScanCheckpoint, error)
	CompareAndSwap(ctx context.Context, contract, event string, prev, next *models.ScanCheckpoint) error
}

// TotalsCache holds computed totals for a short time
type TotalsCache interface {
	GenerateTotalKey(name string) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ScanObserver is told about every total computation
type ScanObserver interface {
	ObserveScan(total string, err error)
}

// AggregatorConfig controls how event logs are scanned
type AggregatorConfig struct {
	StartBlock    uint64
	BlockSpan     uint64
	Confirmations uint64
	CacheTTL      time.Duration
}

type localTotal struct {
	value   string
	expires time.Time
}

// AggregatorService computes minted, staked and claimed totals from the
// token and staking contracts
type AggregatorService struct {
	reader      adapter.ContractReader
	checkpoints CheckpointStore
	cache       TotalsCache
	observer    ScanObserver
	cfg         AggregatorConfig

	group singleflight.Group

	decimalsMu sync.Mutex
	decimals   *uint8

	localMu sync.Mutex
	local   map[string]localTotal

	now func() time.Time
}

// NewAggregatorService creates a new aggregator.
// checkpoints, cache and observer may be nil.
func NewAggregatorService(reader adapter.ContractReader, checkpoints CheckpointStore, cache TotalsCache, observer ScanObserver, cfg AggregatorConfig) *AggregatorService {
	if cfg.BlockSpan == 0 {
		cfg.BlockSpan = 50000
	}
	return &AggregatorService{
		reader:      reader,
		checkpoints: checkpoints,
		cache:       cache,
		observer:    observer,
		cfg:         cfg,
		local:       make(map[string]localTotal),
		now:         time.Now,
	}
}

// TotalMinted returns the token's total supply as a decimal string
func (s *AggregatorService) TotalMinted(ctx context.Context) (string, error) {
	return s.cached(ctx, TotalMinted, func(ctx context.Context) (string, error) {
		supply, err := s.reader.TotalSupply(ctx)
		if err != nil {
			return "", err
		}
		return s.format(ctx, supply)
	})
}

// TotalStaked returns the sum of all Staked event amounts as a decimal string
func (s *AggregatorService) TotalStaked(ctx context.Context) (string, error) {
	return s.cached(ctx, TotalStaked, func(ctx context.Context) (string, error) {
		return s.sumEvent(ctx, types.EventStaked)
	})
}

// TotalClaimed returns the sum of all RewardClaimed event amounts as a decimal string
func (s *AggregatorService) TotalClaimed(ctx context.Context) (string, error) {
	return s.cached(ctx, TotalClaimed, func(ctx context.Context) (string, error) {
		return s.sumEvent(ctx, types.EventRewardClaimed)
	})
}

// cached serves a total from cache or computes it once for all concurrent callers
func (s *AggregatorService) cached(ctx context.Context, name string, compute func(context.Context) (string, error)) (string, error) {
	if value, ok := s.lookup(ctx, name); ok {
		return value, nil
	}

	// A scan shared by several requests must outlive the caller that started it.
	scanCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(name, func() (interface{}, error) {
		value, err := compute(scanCtx)
		if s.observer != nil {
			s.observer.ObserveScan(name, err)
		}
		if err != nil {
			return "", err
		}
		s.store(scanCtx, name, value)
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", toUpstreamError(res.Err)
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *AggregatorService) lookup(ctx context.Context, name string) (string, bool) {
	if s.cfg.CacheTTL <= 0 {
		return "", false
	}

	if s.cache == nil {
		s.localMu.Lock()
		defer s.localMu.Unlock()
		entry, ok := s.local[name]
		if !ok || s.now().After(entry.expires) {
			return "", false
		}
		return entry.value, true
	}

	var value string
	found, err := s.cache.Get(ctx, s.cache.GenerateTotalKey(name), &value)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("total", name).Warn("totals cache read failed")
		return "", false
	}
	return value, found
}

func (s *AggregatorService) store(ctx context.Context, name, value string) {
	if s.cfg.CacheTTL <= 0 {
		return
	}

	if s.cache == nil {
		s.localMu.Lock()
		s.local[name] = localTotal{value: value, expires: s.now().Add(s.cfg.CacheTTL)}
		s.localMu.Unlock()
		return
	}

	if err := s.cache.SetWithTTL(ctx, s.cache.GenerateTotalKey(name), value, s.cfg.CacheTTL); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("total", name).Warn("totals cache write failed")
	}
}

// sumEvent sums an event's amounts over [StartBlock, head].
// The part up to head-Confirmations is checkpointed; the newer tail is
// rescanned on every call.
func (s *AggregatorService) sumEvent(ctx context.Context, event types.OnChainEvent) (string, error) {
	logger := logging.FromContext(ctx).WithField("event", string(event))
	contract := s.reader.StakingContract()

	head, err := s.reader.BlockNumber(ctx)
	if err != nil {
		return "", err
	}

	safe := uint64(0)
	if head > s.cfg.Confirmations {
		safe = head - s.cfg.Confirmations
	}

	prev := s.loadCheckpoint(ctx, logger, contract, event)

	from := s.cfg.StartBlock
	settled := new(big.Int)
	if prev != nil {
		from = prev.LastBlock + 1
		settled.SetString(prev.Total, 10)
	}

	// Settled range: [from, safe] goes into the checkpoint.
	if from <= safe {
		sum, err := s.scanRange(ctx, event, from, safe)
		if err != nil {
			return "", err
		}
		settled.Add(settled, sum)

		if s.checkpoints != nil {
			next := &models.ScanCheckpoint{LastBlock: safe, Total: settled.String(), UpdatedAt: s.now().UTC()}
			if err := s.checkpoints.CompareAndSwap(ctx, contract, string(event), prev, next); err != nil {
				if errors.Is(err, storage.ErrCheckpointConflict) {
					logger.Debug("checkpoint advanced by another scanner")
				} else {
					logger.WithError(err).Warn("failed to save checkpoint")
				}
			}
		}
		from = safe + 1
	}

	// Tail range: (safe, head] counted but never checkpointed.
	total := new(big.Int).Set(settled)
	if from <= head {
		sum, err := s.scanRange(ctx, event, from, head)
		if err != nil {
			return "", err
		}
		total.Add(total, sum)
	}

	return s.format(ctx, total)
}

func (s *AggregatorService) loadCheckpoint(ctx context.Context, logger *logging.Logger, contract string, event types.OnChainEvent) *models.ScanCheckpoint {
	if s.checkpoints == nil {
		return nil
	}

	cp, err := s.checkpoints.Get(ctx, contract, string(event))
	if err != nil {
		logger.WithError(err).Warn("failed to read checkpoint, scanning from start block")
		return nil
	}
	if cp == nil {
		return nil
	}
	if _, ok := new(big.Int).SetString(cp.Total, 10); !ok || cp.LastBlock < s.cfg.StartBlock {
		logger.WithField("checkpoint", cp.Total).Warn("ignoring unusable checkpoint")
		return nil
	}
	return cp
}

// scanRange sums event amounts over [from, to] in BlockSpan-sized requests
func (s *AggregatorService) scanRange(ctx context.Context, event types.OnChainEvent, from, to uint64) (*big.Int, error) {
	total := new(big.Int)
	for start := from; start <= to; {
		end := start + s.cfg.BlockSpan - 1
		if end > to || end < start {
			end = to
		}

		sum, err := s.reader.SumEventAmounts(ctx, event, start, end)
		if err != nil {
			return nil, err
		}
		total.Add(total, sum)

		if end == to {
			break
		}
		start = end + 1
	}
	return total, nil
}

// format converts base units to a decimal string using the token's decimals
func (s *AggregatorService) format(ctx context.Context, amount *big.Int) (string, error) {
	decimals, err := s.tokenDecimals(ctx)
	if err != nil {
		return "", err
	}
	return FormatUnits(amount, decimals), nil
}

func (s *AggregatorService) tokenDecimals(ctx context.Context) (uint8, error) {
	s.decimalsMu.Lock()
	defer s.decimalsMu.Unlock()

	if s.decimals != nil {
		return *s.decimals, nil
	}

	d, err := s.reader.Decimals(ctx)
	if err != nil {
		return 0, err
	}
	s.decimals = &d
	return d, nil
}

// FormatUnits renders a base-unit amount as an exact decimal string
func FormatUnits(amount *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

func toUpstreamError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return err
	}
	return apperrors.NewUpstreamError("rpc", err)
}
