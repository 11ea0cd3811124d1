package service

import (
	"context"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/logging"
	"github.com/blocke-ledger/internal/models"
)

// StakingStore persists per-address staking documents
type StakingStore interface {
	Get(ctx context.Context, address string) (*models.StakingAccount, error)
	RecordStake(ctx context.Context, address string, stake models.StakeRecord) (bool, error)
	MarkClaimed(ctx context.Context, address, txHash string) (bool, error)
	MarkUnstaked(ctx context.Context, address, txHash string) (bool, error)
}

// StakeInput is a stake record submitted by a client
type StakeInput struct {
	Address         string  `json:"address"`
	TransactionHash string  `json:"transactionHash"`
	Amount          string  `json:"amount"`
	PeriodIndex     int     `json:"periodIndex"`
	StartTime       int64   `json:"startTime"`
	EndTime         int64   `json:"endTime"`
	APR             float64 `json:"apr"`
	ExpectedBE      string  `json:"expectedBE"`
}

// StakingService tracks stake records and their claim/unstake status
type StakingService struct {
	store StakingStore
}

// NewStakingService creates a new staking service
func NewStakingService(store StakingStore) *StakingService {
	return &StakingService{store: store}
}

// GetStaking returns the staking document for an address
func (s *StakingService) GetStaking(ctx context.Context, address string) (*models.StakingAccount, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, addr)
}

// RecordStake appends a stake record. A repeated transaction hash for the
// same address is accepted and ignored.
func (s *StakingService) RecordStake(ctx context.Context, input StakeInput) (bool, error) {
	addr, err := normalizeAddress(input.Address)
	if err != nil {
		return false, err
	}
	hash, err := normalizeTxHash("transactionHash", input.TransactionHash)
	if err != nil {
		return false, err
	}
	amount, err := parsePositiveAmount("amount", input.Amount)
	if err != nil {
		return false, err
	}
	if input.PeriodIndex < 0 {
		return false, apperrors.NewValidationError("periodIndex", "must not be negative")
	}
	if input.EndTime != 0 && input.EndTime < input.StartTime {
		return false, apperrors.NewValidationError("endTime", "must not be before startTime")
	}
	if input.APR < 0 {
		return false, apperrors.NewValidationError("apr", "must not be negative")
	}

	stake := models.StakeRecord{
		TransactionHash: hash,
		Amount:          amount,
		PeriodIndex:     input.PeriodIndex,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		APR:             input.APR,
		ExpectedBE:      input.ExpectedBE,
	}

	added, err := s.store.RecordStake(ctx, addr, stake)
	if err != nil {
		return false, err
	}
	if !added {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"address": addr,
			"txHash":  hash,
		}).Warn("stake already recorded")
	}
	return added, nil
}

// Claim marks the stake identified by txHash as claimed.
// When no unclaimed stake matches, nothing changes and a warning is logged.
func (s *StakingService) Claim(ctx context.Context, address, txHash string) error {
	return s.mark(ctx, address, txHash, "claim", s.store.MarkClaimed)
}

// Unstake marks the stake identified by txHash as unstaked.
// When no matching stake remains staked, nothing changes and a warning is logged.
func (s *StakingService) Unstake(ctx context.Context, address, txHash string) error {
	return s.mark(ctx, address, txHash, "unstake", s.store.MarkUnstaked)
}

func (s *StakingService) mark(ctx context.Context, address, txHash, action string, fn func(context.Context, string, string) (bool, error)) error {
	addr, err := normalizeAddress(address)
	if err != nil {
		return err
	}
	hash, err := normalizeTxHash("txHash", txHash)
	if err != nil {
		return err
	}

	matched, err := fn(ctx, addr, hash)
	if err != nil {
		return err
	}
	if !matched {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"address": addr,
			"txHash":  hash,
			"action":  action,
		}).Warn("no matching stake record")
	}
	return nil
}
