package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lalafinance/backend/internal/models"
)

// TransactionLog is the append-only store of ledger records. Nothing in this
// codebase updates or deletes rows in the transactions table.
type TransactionLog struct {
	db *sql.DB
}

func NewTransactionLog(db *sql.DB) *TransactionLog {
	return &TransactionLog{db: db}
}

// Append writes one record inside the caller's transaction so that the record
// and the balance change it represents commit together or not at all.
func (l *TransactionLog) Append(tx *sql.Tx, record *models.Transaction) error {
	_, err := tx.Exec(`
		INSERT INTO transactions (transaction_id, account_num, amount, kind, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.AccountNum, record.Amount.String(), record.Kind, record.Status, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transaction record %s: %w", record.ID, err)
	}
	return nil
}

// ListForAccount returns an account's records in insertion order, oldest
// first. An account with no history gets an empty slice, not an error.
func (l *TransactionLog) ListForAccount(ctx context.Context, accountNum string, limit int) ([]models.Transaction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT transaction_id, account_num, amount::text, kind, status, created_at
		FROM transactions
		WHERE account_num = $1
		ORDER BY id ASC
		LIMIT $2`, accountNum, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountNum, err)
	}
	defer rows.Close()

	records := []models.Transaction{}
	for rows.Next() {
		var record models.Transaction
		var amountStr string
		err := rows.Scan(&record.ID, &record.AccountNum, &amountStr, &record.Kind, &record.Status, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction record: %w", err)
		}
		record.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amountStr, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountNum, err)
	}

	return records, nil
}
