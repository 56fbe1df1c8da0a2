package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/lalafinance/backend/internal/models"
)

func TestAccountStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db)

	t.Run("existing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_num = \\$1").
			WithArgs("1234567890").
			WillReturnRows(accountRows("1234567890", "John Doe", 1, "250.75", models.AccountStatusActive, 3))

		account, err := store.Get(context.Background(), "1234567890")
		assert.NoError(t, err)
		assert.Equal(t, "1234567890", account.AccountNum)
		assert.Equal(t, "John Doe", account.AccountName)
		assert.True(t, account.Balance.Equal(mustDecimal(t, "250.75")))
		assert.Equal(t, 3, account.Version)
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_num = \\$1").
			WithArgs("9999999999").
			WillReturnRows(sqlmock.NewRows([]string{"account_num", "account_name", "user_id", "balance", "status", "version", "created_at", "updated_at"}))

		_, err := store.Get(context.Background(), "9999999999")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestAccountStore_Exists(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("1234567890").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("9999999999").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	taken, err := store.Exists(context.Background(), "1234567890")
	assert.NoError(t, err)
	assert.True(t, taken)

	taken, err = store.Exists(context.Background(), "9999999999")
	assert.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db)

	t.Run("duplicate account number maps to sentinel", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("1234567890", "John Doe", 1, "0", models.AccountStatusActive, 1).
			WillReturnError(&pq.Error{Code: "23505"})

		account := &models.Account{
			AccountNum:  "1234567890",
			AccountName: "John Doe",
			UserID:      1,
			Status:      models.AccountStatusActive,
			Version:     1,
		}
		err := store.Create(tx, account)
		assert.ErrorIs(t, err, ErrDuplicateAccount)
	})
}

func TestAccountStore_ApplyDelta(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db)

	activeAccount := func(t *testing.T, balance string, version int) *models.Account {
		return &models.Account{
			AccountNum:  "1234567890",
			AccountName: "John Doe",
			UserID:      1,
			Balance:     mustDecimal(t, balance),
			Status:      models.AccountStatusActive,
			Version:     version,
		}
	}

	t.Run("credit delta", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()
		account := activeAccount(t, "100.00", 1)
		delta := mustDecimal(t, "25.50")

		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1").
			WithArgs(mustDecimal(t, "125.50").String(), account.AccountNum, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		newBalance, err := store.ApplyDelta(tx, account, delta)
		assert.NoError(t, err)
		assert.True(t, newBalance.Equal(mustDecimal(t, "125.50")))
		assert.True(t, account.Balance.Equal(newBalance))
		assert.Equal(t, 2, account.Version)
	})

	t.Run("debit past zero rejected", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()
		account := activeAccount(t, "100.00", 1)

		_, err := store.ApplyDelta(tx, account, mustDecimal(t, "-100.01"))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.True(t, account.Balance.Equal(mustDecimal(t, "100.00")))
		assert.Equal(t, 1, account.Version)
	})

	t.Run("closed account rejected", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()
		account := activeAccount(t, "100.00", 1)
		account.Status = models.AccountStatusClosed

		_, err := store.ApplyDelta(tx, account, mustDecimal(t, "10.00"))
		assert.ErrorIs(t, err, ErrAccountClosed)
	})

	t.Run("lost version check", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()
		account := activeAccount(t, "100.00", 1)

		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1").
			WithArgs(mustDecimal(t, "110.00").String(), account.AccountNum, 1).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := store.ApplyDelta(tx, account, mustDecimal(t, "10.00"))
		assert.ErrorIs(t, err, ErrConcurrentConflict)
		assert.Equal(t, 1, account.Version)
	})
}

func TestAccountStore_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db)

	t.Run("successful status change", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()
		account := &models.Account{
			AccountNum: "1234567890",
			Status:     models.AccountStatusActive,
			Version:    2,
		}

		mock.ExpectExec("UPDATE accounts SET status = \\$1, version = version \\+ 1").
			WithArgs(models.AccountStatusClosed, "1234567890", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateStatus(tx, account, models.AccountStatusClosed)
		assert.NoError(t, err)
		assert.Equal(t, models.AccountStatusClosed, account.Status)
		assert.Equal(t, 3, account.Version)
	})

	t.Run("lost version check", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()
		account := &models.Account{
			AccountNum: "1234567890",
			Status:     models.AccountStatusActive,
			Version:    2,
		}

		mock.ExpectExec("UPDATE accounts SET status = \\$1, version = version \\+ 1").
			WithArgs(models.AccountStatusClosed, "1234567890", 2).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateStatus(tx, account, models.AccountStatusClosed)
		assert.ErrorIs(t, err, ErrConcurrentConflict)
	})
}
