package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/lalafinance/backend/internal/models"
)

type capturedMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sent []capturedMail
	err  error
}

func (m *fakeMailer) Send(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, capturedMail{to: to, subject: subject, body: body})
	return nil
}

func TestEmailNotifier_Notify(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	t.Run("credit alert for a deposit", func(t *testing.T) {
		mailer := &fakeMailer{}
		notifier := NewEmailNotifier(db, mailer)

		mock.ExpectQuery("SELECT u.email, u.first_name").
			WithArgs("1234567890").
			WillReturnRows(sqlmock.NewRows([]string{"email", "name"}).AddRow("john@example.com", "John Doe"))

		notifier.Notify(NotificationEvent{
			AccountNum: "1234567890",
			Kind:       models.TransactionKindCredit,
			Amount:     mustDecimal(t, "25.50"),
			NewBalance: mustDecimal(t, "125.50"),
			Timestamp:  time.Now(),
		})

		assert.Len(t, mailer.sent, 1)
		assert.Equal(t, "john@example.com", mailer.sent[0].to)
		assert.Equal(t, "Credit Alert", mailer.sent[0].subject)
		assert.Contains(t, mailer.sent[0].body, "Dear John Doe")
		assert.Contains(t, mailer.sent[0].body, "25.50")
		assert.Contains(t, mailer.sent[0].body, "Available Balance: 125.50")
		assert.Contains(t, mailer.sent[0].body, "Description: Deposit")
	})

	t.Run("debit alert for a transfer names the counterparty", func(t *testing.T) {
		mailer := &fakeMailer{}
		notifier := NewEmailNotifier(db, mailer)

		mock.ExpectQuery("SELECT u.email, u.first_name").
			WithArgs("1234567890").
			WillReturnRows(sqlmock.NewRows([]string{"email", "name"}).AddRow("john@example.com", "John Doe"))

		notifier.Notify(NotificationEvent{
			AccountNum:       "1234567890",
			Kind:             models.TransactionKindDebit,
			Amount:           mustDecimal(t, "40.00"),
			NewBalance:       mustDecimal(t, "60.00"),
			CounterpartyName: "Jane Doe",
			Timestamp:        time.Now(),
		})

		assert.Len(t, mailer.sent, 1)
		assert.Equal(t, "Debit Alert", mailer.sent[0].subject)
		assert.Contains(t, mailer.sent[0].body, "Transfer to Jane Doe")
		assert.Contains(t, mailer.sent[0].body, "Available Balance: 60.00")
	})

	t.Run("unknown account skips delivery", func(t *testing.T) {
		mailer := &fakeMailer{}
		notifier := NewEmailNotifier(db, mailer)

		mock.ExpectQuery("SELECT u.email, u.first_name").
			WithArgs("9999999999").
			WillReturnError(errors.New("no rows"))

		notifier.Notify(NotificationEvent{
			AccountNum: "9999999999",
			Kind:       models.TransactionKindCredit,
			Amount:     mustDecimal(t, "10.00"),
			NewBalance: mustDecimal(t, "10.00"),
			Timestamp:  time.Now(),
		})

		assert.Empty(t, mailer.sent)
	})
}

func TestEmailNotifier_NotifyAccountCreated(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mailer := &fakeMailer{}
	notifier := NewEmailNotifier(db, mailer)

	notifier.NotifyAccountCreated(&models.Account{
		AccountNum:  "1234567890",
		AccountName: "John Doe",
	}, "john@example.com")

	assert.Len(t, mailer.sent, 1)
	assert.Equal(t, "john@example.com", mailer.sent[0].to)
	assert.Equal(t, "Welcome to Lala Finance Bank", mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].body, "Account Number: 1234567890")
	assert.Contains(t, mailer.sent[0].body, "Customer Name: John Doe")
}

func TestLogMailer_Send(t *testing.T) {
	err := LogMailer{}.Send("john@example.com", "Credit Alert", "body")
	assert.NoError(t, err)
}
