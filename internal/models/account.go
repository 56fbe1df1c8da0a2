package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account statuses. Closed accounts keep their rows (and their transaction
// history) but reject every mutating operation.
const (
	AccountStatusActive = "ACTIVE"
	AccountStatusClosed = "CLOSED"
)

type Account struct {
	AccountNum  string          `json:"account_num" db:"account_num"`
	AccountName string          `json:"account_name" db:"account_name"`
	UserID      int             `json:"user_id" db:"user_id"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	Status      string          `json:"status" db:"status"`
	Version     int             `json:"version" db:"version"` // for optimistic locking
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
