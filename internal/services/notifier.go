package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/smtp"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/lalafinance/backend/internal/models"
)

// NotificationEvent describes one committed ledger operation. Dispatch is
// best-effort: the operation is already committed by the time an event is
// built, so nothing here may fail the request.
type NotificationEvent struct {
	AccountNum       string
	Kind             string
	Amount           decimal.Decimal
	NewBalance       decimal.Decimal
	CounterpartyName string // set for transfers, empty otherwise
	Timestamp        time.Time
}

type Notifier interface {
	Notify(event NotificationEvent)
	NotifyAccountCreated(account *models.Account, email string)
}

// Mailer delivers a single message. Implementations must enforce their own
// timeouts so a slow mail relay cannot pile up goroutines.
type Mailer interface {
	Send(to, subject, body string) error
}

// EmailNotifier resolves the account holder's address and sends the
// transaction emails the bank has always sent.
type EmailNotifier struct {
	db     *sql.DB
	mailer Mailer
}

func NewEmailNotifier(db *sql.DB, mailer Mailer) *EmailNotifier {
	return &EmailNotifier{db: db, mailer: mailer}
}

func (n *EmailNotifier) Notify(event NotificationEvent) {
	email, name, err := n.lookupHolder(event.AccountNum)
	if err != nil {
		log.Printf("[NOTIFY] Skipping notification for account %s: %v", event.AccountNum, err)
		return
	}

	var subject, body string
	switch event.Kind {
	case models.TransactionKindCredit:
		subject = "Credit Alert"
		body = creditBody(name, event)
	case models.TransactionKindDebit:
		subject = "Debit Alert"
		body = debitBody(name, event)
	default:
		log.Printf("[NOTIFY] Unknown event kind %q for account %s", event.Kind, event.AccountNum)
		return
	}

	if err := n.mailer.Send(email, subject, body); err != nil {
		log.Printf("[NOTIFY] Failed to send %s alert for account %s: %v", event.Kind, event.AccountNum, err)
	}
}

func (n *EmailNotifier) NotifyAccountCreated(account *models.Account, email string) {
	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Thank you for choosing Lala Finance Bank! Your account has been successfully created.\n\n"+
			"Account Summary:\n"+
			"- Customer Name: %s\n"+
			"- Account Number: %s\n"+
			"- Account Type: SAVINGS\n\n"+
			"You can now enjoy seamless banking services, including fund transfers, account management, and more.\n\n"+
			"Warm regards,\n"+
			"Lala Finance Bank",
		account.AccountName, account.AccountName, account.AccountNum)

	if err := n.mailer.Send(email, "Welcome to Lala Finance Bank", body); err != nil {
		log.Printf("[NOTIFY] Failed to send welcome email for account %s: %v", account.AccountNum, err)
	}
}

func (n *EmailNotifier) lookupHolder(accountNum string) (email, name string, err error) {
	err = n.db.QueryRow(`
		SELECT u.email, u.first_name || ' ' || u.last_name
		FROM users u
		INNER JOIN accounts a ON a.user_id = u.id
		WHERE a.account_num = $1`, accountNum).Scan(&email, &name)
	return email, name, err
}

func creditBody(name string, event NotificationEvent) string {
	description := "Deposit"
	if event.CounterpartyName != "" {
		description = "From " + event.CounterpartyName
	}
	return fmt.Sprintf(
		"Dear %s,\n\n"+
			"An amount of %s has been credited to your account.\n\n"+
			"Transaction Details:\n"+
			"- Amount: %s\n"+
			"- Date: %s\n"+
			"- Transaction Type: CREDIT\n"+
			"- Description: %s\n"+
			"- Available Balance: %s\n\n"+
			"Thank you for banking with us.\n\n"+
			"Warm regards,\n"+
			"Lala Finance Bank",
		name, event.Amount.StringFixed(2), event.Amount.StringFixed(2),
		event.Timestamp.Format(time.RFC1123), description, event.NewBalance.StringFixed(2))
}

func debitBody(name string, event NotificationEvent) string {
	description := "Self Withdrawal"
	if event.CounterpartyName != "" {
		description = "Transfer to " + event.CounterpartyName
	}
	return fmt.Sprintf(
		"Dear %s,\n\n"+
			"An amount of %s has been debited from your account.\n\n"+
			"Transaction Details:\n"+
			"- Amount: %s\n"+
			"- Date: %s\n"+
			"- Transaction Type: DEBIT\n"+
			"- Description: %s\n"+
			"- Available Balance: %s\n\n"+
			"If this transaction was not initiated by you, please contact our support team immediately.\n\n"+
			"Thank you,\n"+
			"Lala Finance Bank",
		name, event.Amount.StringFixed(2), event.Amount.StringFixed(2),
		event.Timestamp.Format(time.RFC1123), description, event.NewBalance.StringFixed(2))
}

// SMTPMailer sends through a plain SMTP relay configured via viper.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPMailer() *SMTPMailer {
	host := viper.GetString("smtp.host")
	m := &SMTPMailer{
		addr: fmt.Sprintf("%s:%s", host, viper.GetString("smtp.port")),
		from: viper.GetString("smtp.from"),
	}
	if username := viper.GetString("smtp.username"); username != "" {
		m.auth = smtp.PlainAuth("", username, viper.GetString("smtp.password"), host)
	}
	return m
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body)
	return smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg))
}

// LogMailer is the fallback when no SMTP relay is configured.
type LogMailer struct{}

func (LogMailer) Send(to, subject, body string) error {
	log.Printf("[NOTIFY] Mail to %s: %s", to, subject)
	return nil
}
