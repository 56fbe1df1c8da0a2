package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionKindCredit = "CREDIT"
	TransactionKindDebit  = "DEBIT"
)

const TransactionStatusSuccessful = "SUCCESSFUL"

// Transaction is one immutable ledger record. A peer-to-peer transfer produces
// two of them, a DEBIT on the source account and a CREDIT on the destination,
// both carrying the same transfer amount. Records are never updated or deleted.
type Transaction struct {
	ID         string          `json:"transaction_id" db:"transaction_id"`
	AccountNum string          `json:"account_num" db:"account_num"`
	Amount     decimal.Decimal `json:"amount" db:"amount"` // always positive; Kind carries the direction
	Kind       string          `json:"kind" db:"kind"`
	Status     string          `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
