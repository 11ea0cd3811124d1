package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/models"
	"github.com/blocke-ledger/internal/types"
)

// TransactionRepository persists the append-only transaction ledger in Postgres
type TransactionRepository struct {
	db pgQuerier
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *PostgresDB) *TransactionRepository {
	return &TransactionRepository{db: db.Pool()}
}

// Append inserts a new ledger record, assigning its id and createdAt
func (r *TransactionRepository) Append(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.Address = types.NormalizeAddress(tx.Address)
	tx.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO ledger_transactions (id, address, type, amount, tx_hash, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.Address,
		string(tx.Type),
		tx.Amount,
		tx.TxHash,
		tx.CreatedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseError("append transaction", err)
	}

	return nil
}

// List returns one page of an address's records, newest first, and the
// total number of records for the address
func (r *TransactionRepository) List(ctx context.Context, address string, page, limit int) ([]*models.Transaction, int64, error) {
	address = types.NormalizeAddress(address)

	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_transactions WHERE address = $1`,
		address,
	).Scan(&total)
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError("count transactions", err)
	}

	query := `
		SELECT id::text, address, type, amount::text, tx_hash, created_at
		FROM ledger_transactions
		WHERE address = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, address, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError("list transactions", err)
	}

	transactions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Transaction, error) {
		var tx models.Transaction
		var txType string
		if err := row.Scan(&tx.ID, &tx.Address, &txType, &tx.Amount, &tx.TxHash, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Type = types.TransactionType(txType)
		return &tx, nil
	})
	if err != nil {
		return nil, 0, apperrors.NewDatabaseError("scan transactions", err)
	}

	return transactions, total, nil
}
