package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lalafinance/backend/internal/models"
)

const (
	// maxConflictRetries bounds re-validation after losing an optimistic
	// version check to a concurrent writer.
	maxConflictRetries = 3

	idempotencyKeyTTL = 24 * time.Hour
)

// LedgerService is the only writer of account balances and transaction
// records. Every balance mutation and the record describing it commit in one
// database transaction; no other component touches either table.
type LedgerService struct {
	db          *sql.DB
	redis       *redis.Client
	accounts    *AccountStore
	records     *TransactionLog
	accountNums *AccountNumberGenerator
	notifier    Notifier
}

func NewLedgerService(db *sql.DB, redisClient *redis.Client, notifier Notifier) *LedgerService {
	return &LedgerService{
		db:          db,
		redis:       redisClient,
		accounts:    NewAccountStore(db),
		records:     NewTransactionLog(db),
		accountNums: NewAccountNumberGenerator(),
		notifier:    notifier,
	}
}

// TransferResult carries the two records a committed transfer produced.
type TransferResult struct {
	DebitRecord  *models.Transaction `json:"debit_record"`
	CreditRecord *models.Transaction `json:"credit_record"`
}

// CreateAccount opens a new zero-balance account for the given owner. A lost
// race on the account_num unique constraint redraws the number and retries.
func (s *LedgerService) CreateAccount(ctx context.Context, userID int, accountName string) (*models.Account, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		num, err := s.accountNums.Next(ctx, s.accounts.Exists)
		if err != nil {
			return nil, err
		}

		account := &models.Account{
			AccountNum:  num,
			AccountName: accountName,
			UserID:      userID,
			Balance:     decimal.Zero,
			Status:      models.AccountStatusActive,
			Version:     1,
		}

		err = s.inTx(ctx, func(tx *sql.Tx) error {
			return s.accounts.Create(tx, account)
		})
		if errors.Is(err, ErrDuplicateAccount) {
			log.Printf("[LEDGER] Account number collision on %s, redrawing", num)
			continue
		}
		if err != nil {
			return nil, err
		}
		return account, nil
	}
	return nil, ErrConcurrentConflict
}

// Credit adds amount to the account and appends one CREDIT record.
func (s *LedgerService) Credit(ctx context.Context, accountNum string, amount decimal.Decimal, idempotencyKey string) (*models.Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.reserveIdempotencyKey(ctx, idempotencyKey); err != nil {
		return nil, err
	}

	var record *models.Transaction
	var newBalance decimal.Decimal
	err := s.withConflictRetry(ctx, func(tx *sql.Tx) error {
		account, err := s.accounts.GetForUpdate(tx, accountNum)
		if err != nil {
			return err
		}
		newBalance, err = s.accounts.ApplyDelta(tx, account, amount)
		if err != nil {
			return err
		}
		record = newRecord(accountNum, amount, models.TransactionKindCredit)
		return s.records.Append(tx, record)
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(NotificationEvent{
		AccountNum: accountNum,
		Kind:       models.TransactionKindCredit,
		Amount:     amount,
		NewBalance: newBalance,
		Timestamp:  record.CreatedAt,
	})
	return record, nil
}

// Debit subtracts amount from the account and appends one DEBIT record.
// ErrInsufficientFunds is the normal outcome of an overdraw attempt; the
// balance is untouched and no record is written.
func (s *LedgerService) Debit(ctx context.Context, accountNum string, amount decimal.Decimal, idempotencyKey string) (*models.Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.reserveIdempotencyKey(ctx, idempotencyKey); err != nil {
		return nil, err
	}

	var record *models.Transaction
	var newBalance decimal.Decimal
	err := s.withConflictRetry(ctx, func(tx *sql.Tx) error {
		account, err := s.accounts.GetForUpdate(tx, accountNum)
		if err != nil {
			return err
		}
		newBalance, err = s.accounts.ApplyDelta(tx, account, amount.Neg())
		if err != nil {
			return err
		}
		record = newRecord(accountNum, amount, models.TransactionKindDebit)
		return s.records.Append(tx, record)
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(NotificationEvent{
		AccountNum: accountNum,
		Kind:       models.TransactionKindDebit,
		Amount:     amount,
		NewBalance: newBalance,
		Timestamp:  record.CreatedAt,
	})
	return record, nil
}

// Transfer moves amount between two accounts as one atomic unit: both balance
// mutations and both records, or none of them.
func (s *LedgerService) Transfer(ctx context.Context, fromAccountNum, toAccountNum string, amount decimal.Decimal, idempotencyKey string) (*TransferResult, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromAccountNum == toAccountNum {
		return nil, ErrSelfTransfer
	}
	if err := s.reserveIdempotencyKey(ctx, idempotencyKey); err != nil {
		return nil, err
	}

	var result *TransferResult
	var events [2]NotificationEvent
	err := s.withConflictRetry(ctx, func(tx *sql.Tx) error {
		// Lock both rows in ascending account-number order, never in caller
		// order, so two opposite transfers between the same pair cannot
		// deadlock.
		firstNum, secondNum := fromAccountNum, toAccountNum
		if firstNum > secondNum {
			firstNum, secondNum = secondNum, firstNum
		}

		first, err := s.accounts.GetForUpdate(tx, firstNum)
		if err != nil {
			return err
		}
		second, err := s.accounts.GetForUpdate(tx, secondNum)
		if err != nil {
			return err
		}

		source, dest := first, second
		if firstNum != fromAccountNum {
			source, dest = second, first
		}

		// Each side settles against its own prior balance: the source loses
		// exactly amount and the destination gains exactly amount.
		srcBalance, err := s.accounts.ApplyDelta(tx, source, amount.Neg())
		if err != nil {
			return err
		}
		dstBalance, err := s.accounts.ApplyDelta(tx, dest, amount)
		if err != nil {
			return err
		}

		debit := newRecord(fromAccountNum, amount, models.TransactionKindDebit)
		credit := newRecord(toAccountNum, amount, models.TransactionKindCredit)
		if err := s.records.Append(tx, debit); err != nil {
			return err
		}
		if err := s.records.Append(tx, credit); err != nil {
			return err
		}

		result = &TransferResult{DebitRecord: debit, CreditRecord: credit}
		events[0] = NotificationEvent{
			AccountNum:       fromAccountNum,
			Kind:             models.TransactionKindDebit,
			Amount:           amount,
			NewBalance:       srcBalance,
			CounterpartyName: dest.AccountName,
			Timestamp:        debit.CreatedAt,
		}
		events[1] = NotificationEvent{
			AccountNum:       toAccountNum,
			Kind:             models.TransactionKindCredit,
			Amount:           amount,
			NewBalance:       dstBalance,
			CounterpartyName: source.AccountName,
			Timestamp:        credit.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(events[0])
	s.dispatch(events[1])
	return result, nil
}

// CloseAccount marks an account CLOSED. The row and its transaction history
// remain; only mutations are rejected from here on.
func (s *LedgerService) CloseAccount(ctx context.Context, accountNum string) error {
	return s.withConflictRetry(ctx, func(tx *sql.Tx) error {
		account, err := s.accounts.GetForUpdate(tx, accountNum)
		if err != nil {
			return err
		}
		if account.Status == models.AccountStatusClosed {
			return ErrAccountClosed
		}
		return s.accounts.UpdateStatus(tx, account, models.AccountStatusClosed)
	})
}

func (s *LedgerService) GetAccount(ctx context.Context, accountNum string) (*models.Account, error) {
	return s.accounts.Get(ctx, accountNum)
}

func (s *LedgerService) GetBalance(ctx context.Context, accountNum string) (decimal.Decimal, error) {
	account, err := s.accounts.Get(ctx, accountNum)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// ListTransactions returns the account's history, oldest first.
func (s *LedgerService) ListTransactions(ctx context.Context, accountNum string, limit int) ([]models.Transaction, error) {
	if _, err := s.accounts.Get(ctx, accountNum); err != nil {
		return nil, err
	}
	return s.records.ListForAccount(ctx, accountNum, limit)
}

func (s *LedgerService) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// withConflictRetry re-runs fn, each attempt in a fresh transaction with a
// fresh read, while it keeps losing the optimistic version check. Business
// and infrastructure errors are never retried here.
func (s *LedgerService) withConflictRetry(ctx context.Context, fn func(*sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.inTx(ctx, fn)
		if !errors.Is(err, ErrConcurrentConflict) {
			break
		}
		log.Printf("[LEDGER] Optimistic lock conflict, retrying (attempt %d)", attempt+1)
	}
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return ErrOperationTimedOut
	}
	return err
}

// reserveIdempotencyKey claims a caller-supplied key before any validation.
// With no key, or no Redis, retried requests are applied again; the key is
// the documented hardening, not a correctness requirement of the ledger.
func (s *LedgerService) reserveIdempotencyKey(ctx context.Context, key string) error {
	if key == "" || s.redis == nil {
		return nil
	}
	ok, err := s.redis.SetNX(ctx, "ledger:idem:"+key, "1", idempotencyKeyTTL).Result()
	if err != nil {
		log.Printf("[LEDGER] Idempotency check unavailable, proceeding: %v", err)
		return nil
	}
	if !ok {
		return ErrDuplicateOperation
	}
	return nil
}

func (s *LedgerService) dispatch(event NotificationEvent) {
	if s.notifier == nil {
		return
	}
	go s.notifier.Notify(event)
}

func newRecord(accountNum string, amount decimal.Decimal, kind string) *models.Transaction {
	return &models.Transaction{
		ID:         uuid.NewString(),
		AccountNum: accountNum,
		Amount:     amount,
		Kind:       kind,
		Status:     models.TransactionStatusSuccessful,
		CreatedAt:  time.Now().UTC(),
	}
}
