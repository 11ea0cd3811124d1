package service

import (
	"context"
	"math"
	"strings"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/models"
	"github.com/blocke-ledger/internal/types"
)

// Page size bounds for ledger listing
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// TransactionStore persists the append-only transaction ledger
type TransactionStore interface {
	Append(ctx context.Context, tx *models.Transaction) error
	List(ctx context.Context, address string, page, limit int) ([]*models.Transaction, int64, error)
}

// AppendTransactionInput is a new ledger entry as submitted by a client
type AppendTransactionInput struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	Amount  string `json:"amount"`
	TxHash  string `json:"txHash"`
}

// LedgerService records and lists wallet transactions
type LedgerService struct {
	store TransactionStore
}

// NewLedgerService creates a new ledger service
func NewLedgerService(store TransactionStore) *LedgerService {
	return &LedgerService{store: store}
}

// Append validates and stores a new ledger entry
func (s *LedgerService) Append(ctx context.Context, input AppendTransactionInput) (*models.Transaction, error) {
	addr, err := normalizeAddress(input.Address)
	if err != nil {
		return nil, err
	}

	txType := types.TransactionType(strings.ToLower(strings.TrimSpace(input.Type)))
	if txType == "" {
		return nil, apperrors.NewValidationError("type", "required")
	}
	if !txType.IsValid() {
		return nil, apperrors.NewValidationError("type", "unsupported transaction type")
	}

	amount, err := parsePositiveAmount("amount", input.Amount)
	if err != nil {
		return nil, err
	}

	hash, err := normalizeTxHash("txHash", input.TxHash)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		Address: addr,
		Type:    txType,
		Amount:  amount,
		TxHash:  hash,
	}
	if err := s.store.Append(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// List returns one page of an address's ledger, newest first.
// page is 1-based; limit defaults to DefaultPageLimit and is capped at MaxPageLimit.
func (s *LedgerService) List(ctx context.Context, address string, page, limit int) (*models.TransactionPage, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	page, limit = normalizePaging(page, limit)

	txs, total, err := s.store.List(ctx, addr, page, limit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}

	return &models.TransactionPage{
		Transactions: txs,
		Total:        total,
		Page:         page,
		Limit:        limit,
	}, nil
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	// (page-1)*limit becomes the query offset and must not overflow.
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return page, limit
}
