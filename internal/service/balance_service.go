package service

import (
	"context"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/logging"
)

// BalanceStore persists AI credit balances
type BalanceStore interface {
	Get(ctx context.Context, address string) (int64, error)
	Set(ctx context.Context, address string, balance int64) error
	Deduct(ctx context.Context, address string) (int64, error)
	Credit(ctx context.Context, address string, delta int64) (int64, error)
}

// BalanceService manages per-address AI credit balances
type BalanceService struct {
	store BalanceStore
}

// NewBalanceService creates a new balance service
func NewBalanceService(store BalanceStore) *BalanceService {
	return &BalanceService{store: store}
}

// GetBalance returns the normalized address and its balance (0 when unknown)
func (s *BalanceService) GetBalance(ctx context.Context, address string) (string, int64, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return "", 0, err
	}

	balance, err := s.store.Get(ctx, addr)
	if err != nil {
		return "", 0, err
	}
	return addr, balance, nil
}

// SetBalance overwrites the balance for an address
func (s *BalanceService) SetBalance(ctx context.Context, address string, balance int64) (int64, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return 0, err
	}
	if balance < 0 {
		return 0, apperrors.NewValidationError("balance", "must not be negative")
	}

	if err := s.store.Set(ctx, addr, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Deduct spends one credit. It fails with an insufficient balance error when
// the balance is zero or below.
func (s *BalanceService) Deduct(ctx context.Context, address string) (int64, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return 0, err
	}

	newBalance, err := s.store.Deduct(ctx, addr)
	if err != nil {
		return 0, err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"address":    addr,
		"newBalance": newBalance,
	}).Debug("AI credit deducted")

	return newBalance, nil
}

// Credit adds amount credits and returns the new balance
func (s *BalanceService) Credit(ctx context.Context, address string, amount int64) (int64, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, apperrors.NewValidationError("amount", "must be greater than zero")
	}

	newBalance, err := s.store.Credit(ctx, addr, amount)
	if err != nil {
		return 0, err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"address":    addr,
		"amount":     amount,
		"newBalance": newBalance,
	}).Info("AI credit added")

	return newBalance, nil
}
