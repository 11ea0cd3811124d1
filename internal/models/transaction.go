package models

import (
	"time"

	"github.com/blocke-ledger/internal/types"
)

// Transaction is one append-only ledger entry stored in Postgres
type Transaction struct {
	ID        string                `json:"id" db:"id"`
	Address   string                `json:"address" db:"address"`
	Type      types.TransactionType `json:"type" db:"type"`
	Amount    string                `json:"amount" db:"amount"` // decimal string, exact
	TxHash    string                `json:"txHash" db:"tx_hash"`
	CreatedAt time.Time             `json:"createdAt" db:"created_at"`
}

// TransactionPage is one page of ledger entries plus the full count
type TransactionPage struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int64          `json:"total"`
	Page         int            `json:"page"`
	Limit        int            `json:"limit"`
}
