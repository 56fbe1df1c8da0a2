package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/lalafinance/backend/internal/models"
)

func TestTransactionLog_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	logStore := NewTransactionLog(db)

	mock.ExpectBegin()
	tx, _ := db.Begin()

	record := &models.Transaction{
		ID:         "tx-1",
		AccountNum: "1234567890",
		Amount:     mustDecimal(t, "25.50"),
		Kind:       models.TransactionKindCredit,
		Status:     models.TransactionStatusSuccessful,
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(record.ID, record.AccountNum, record.Amount.String(), record.Kind, record.Status, record.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = logStore.Append(tx, record)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionLog_ListForAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	logStore := NewTransactionLog(db)

	t.Run("returns records oldest first", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery("SELECT transaction_id, account_num, amount::text, kind, status, created_at FROM transactions").
			WithArgs("1234567890", 50).
			WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "account_num", "amount", "kind", "status", "created_at"}).
				AddRow("tx-1", "1234567890", "100.00", models.TransactionKindCredit, models.TransactionStatusSuccessful, now.Add(-2*time.Hour)).
				AddRow("tx-2", "1234567890", "40.00", models.TransactionKindDebit, models.TransactionStatusSuccessful, now))

		records, err := logStore.ListForAccount(context.Background(), "1234567890", 50)
		assert.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, "tx-1", records[0].ID)
		assert.Equal(t, models.TransactionKindCredit, records[0].Kind)
		assert.True(t, records[0].Amount.Equal(mustDecimal(t, "100.00")))
		assert.Equal(t, "tx-2", records[1].ID)
		assert.Equal(t, models.TransactionKindDebit, records[1].Kind)
	})

	t.Run("no history gives empty slice", func(t *testing.T) {
		mock.ExpectQuery("SELECT transaction_id, account_num, amount::text, kind, status, created_at FROM transactions").
			WithArgs("2345678901", 50).
			WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "account_num", "amount", "kind", "status", "created_at"}))

		records, err := logStore.ListForAccount(context.Background(), "2345678901", 50)
		assert.NoError(t, err)
		assert.NotNil(t, records)
		assert.Len(t, records, 0)
	})
}
