package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/lalafinance/backend/internal/models"
)

// AccountStore is the durable account_num -> Account mapping. Every mutation
// runs inside a *sql.Tx owned by the LedgerService, so balance updates and
// transaction-log appends always share one commit point.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `account_num, account_name, user_id, balance::text, status, version, created_at, updated_at`

// Exists reports whether an account number is taken. Used by the account
// number generator outside any transaction.
func (s *AccountStore) Exists(ctx context.Context, accountNum string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM accounts WHERE account_num = $1)`, accountNum).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("account existence check: %w", err)
	}
	return exists, nil
}

// Get reads an account without locking it.
func (s *AccountStore) Get(ctx context.Context, accountNum string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE account_num = $1`, accountNum)
	return scanAccount(row)
}

// GetForUpdate reads an account under a row lock. The lock is held until the
// surrounding transaction commits or rolls back.
func (s *AccountStore) GetForUpdate(tx *sql.Tx, accountNum string) (*models.Account, error) {
	row := tx.QueryRow(`
		SELECT `+accountColumns+`
		FROM accounts
		WHERE account_num = $1
		FOR UPDATE`, accountNum)
	return scanAccount(row)
}

// Create inserts a new account row. The unique constraint on account_num is
// the last line of defence against two concurrent creations drawing the same
// number.
func (s *AccountStore) Create(tx *sql.Tx, account *models.Account) error {
	_, err := tx.Exec(`
		INSERT INTO accounts (account_num, account_name, user_id, balance, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		account.AccountNum, account.AccountName, account.UserID,
		account.Balance.String(), account.Status, account.Version)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("create account %s: %w", account.AccountNum, err)
	}
	return nil
}

// ApplyDelta adds a signed delta to a locked account's balance and writes the
// result back under an optimistic version check. The new balance is computed
// from the account's own prior balance, never from any other account's state.
func (s *AccountStore) ApplyDelta(tx *sql.Tx, account *models.Account, delta decimal.Decimal) (decimal.Decimal, error) {
	if account.Status != models.AccountStatusActive {
		return decimal.Zero, ErrAccountClosed
	}

	newBalance := account.Balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, ErrInsufficientFunds
	}

	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE account_num = $2 AND version = $3`,
		newBalance.String(), account.AccountNum, account.Version)
	if err != nil {
		return decimal.Zero, fmt.Errorf("update balance for %s: %w", account.AccountNum, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return decimal.Zero, fmt.Errorf("update balance for %s: %w", account.AccountNum, err)
	}
	if rowsAffected == 0 {
		// Another writer bumped the version between our read and this write.
		return decimal.Zero, ErrConcurrentConflict
	}

	account.Balance = newBalance
	account.Version++
	return newBalance, nil
}

// UpdateStatus changes a locked account's status under the same optimistic
// version check as balance writes.
func (s *AccountStore) UpdateStatus(tx *sql.Tx, account *models.Account, status string) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE account_num = $2 AND version = $3`,
		status, account.AccountNum, account.Version)
	if err != nil {
		return fmt.Errorf("update status for %s: %w", account.AccountNum, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status for %s: %w", account.AccountNum, err)
	}
	if rowsAffected == 0 {
		return ErrConcurrentConflict
	}
	account.Status = status
	account.Version++
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var account models.Account
	var balanceStr string
	err := row.Scan(&account.AccountNum, &account.AccountName, &account.UserID,
		&balanceStr, &account.Status, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("fetch account: %w", err)
	}

	account.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balanceStr, err)
	}
	return &account, nil
}
