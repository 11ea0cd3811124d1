// Package service holds the request validation and orchestration between
// the HTTP handlers and the storage and chain layers.
package service

import (
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/types"
)

// normalizeAddress validates a wallet address and returns its lowercase form
func normalizeAddress(address string) (string, error) {
	if strings.TrimSpace(address) == "" {
		return "", apperrors.NewValidationError("address", "required")
	}
	if !types.IsValidAddress(address) {
		return "", apperrors.NewValidationError("address", "must be 0x followed by 40 hex characters")
	}
	return types.NormalizeAddress(address), nil
}

// normalizeTxHash validates a transaction hash and returns its lowercase form
func normalizeTxHash(field, hash string) (string, error) {
	if strings.TrimSpace(hash) == "" {
		return "", apperrors.NewValidationError(field, "required")
	}
	hash = types.NormalizeTxHash(hash)
	if !types.IsValidTxHash(hash) {
		return "", apperrors.NewValidationError(field, "must be 0x followed by 64 hex characters")
	}
	return hash, nil
}

// parsePositiveAmount parses a decimal amount string and returns its canonical form
func parsePositiveAmount(field, amount string) (string, error) {
	if strings.TrimSpace(amount) == "" {
		return "", apperrors.NewValidationError(field, "required")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", apperrors.NewValidationError(field, "must be a decimal number")
	}
	if !d.IsPositive() {
		return "", apperrors.NewValidationError(field, "must be greater than zero")
	}
	return d.String(), nil
}
