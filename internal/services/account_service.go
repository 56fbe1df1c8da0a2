package services

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// AccountService is the HTTP face of the ledger. It shapes requests and
// responses and maps ledger errors to status codes; it holds no balance logic.
type AccountService struct {
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewAccountService(ledger *LedgerService) *AccountService {
	return &AccountService{
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

type CreditDebitRequest struct {
	AccountNum string          `json:"accountNum" validate:"required,len=10,numeric"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
}

type TransferRequest struct {
	FromAccount string          `json:"fromAccount" validate:"required,len=10,numeric"`
	ToAccount   string          `json:"toAccount" validate:"required,len=10,numeric"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
}

var accountNumRegex = regexp.MustCompile(`^[0-9]{10}$`)

// CreateAccount opens an additional account for the authenticated user.
// @Summary Open a new account
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body object{accountName=string} true "Account details"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Router /accounts [post]
func (s *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		AccountName string `json:"accountName" validate:"required,min=2,max=100"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), userID, req.AccountName)
	if err != nil {
		log.Printf("[ACCOUNT] Account creation failed for user %d: %v", userID, err)
		s.sendLedgerError(w, err)
		return
	}

	log.Printf("[ACCOUNT] Account %s created for user %d", account.AccountNum, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// BalanceEnquiry returns the current balance for an account.
// @Summary Get account balance
// @Tags accounts
// @Produce json
// @Param accountNum query string true "Account number"
// @Success 200 {object} object{accountNum=string,availableBalance=string,status=string}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/balance-enquiry [get]
func (s *AccountService) BalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	accountNum := strings.TrimSpace(r.URL.Query().Get("accountNum"))
	if !accountNumRegex.MatchString(accountNum) {
		SendErrorResponse(w, "invalid accountNum format", http.StatusBadRequest, nil)
		return
	}

	account, err := s.ledger.GetAccount(r.Context(), accountNum)
	if err != nil {
		s.sendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountNum":       account.AccountNum,
		"availableBalance": account.Balance.StringFixed(2),
		"status":           account.Status,
	})
}

// NameEnquiry returns the account holder's name, used by clients to confirm
// the destination before a transfer.
// @Summary Get account name
// @Tags accounts
// @Produce json
// @Param accountNum query string true "Account number"
// @Success 200 {object} object{accountNum=string,accountName=string}
// @Failure 404 {object} ErrorResponse
// @Router /accounts/name-enquiry [get]
func (s *AccountService) NameEnquiry(w http.ResponseWriter, r *http.Request) {
	accountNum := strings.TrimSpace(r.URL.Query().Get("accountNum"))
	if !accountNumRegex.MatchString(accountNum) {
		SendErrorResponse(w, "invalid accountNum format", http.StatusBadRequest, nil)
		return
	}

	account, err := s.ledger.GetAccount(r.Context(), accountNum)
	if err != nil {
		s.sendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accountNum":  account.AccountNum,
		"accountName": account.AccountName,
	})
}

// CloseAccount marks an account CLOSED.
// @Summary Close an account
// @Tags accounts
// @Produce json
// @Param accountNum path string true "Account number"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{accountNum}/close [put]
func (s *AccountService) CloseAccount(w http.ResponseWriter, r *http.Request) {
	accountNum := chi.URLParam(r, "accountNum")
	if !accountNumRegex.MatchString(accountNum) {
		SendErrorResponse(w, "invalid accountNum format", http.StatusBadRequest, nil)
		return
	}

	if err := s.ledger.CloseAccount(r.Context(), accountNum); err != nil {
		s.sendLedgerError(w, err)
		return
	}

	log.Printf("[ACCOUNT] Account %s closed", accountNum)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Account closed"})
}

// Credit adds funds to an account.
// @Summary Credit an account
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body CreditDebitRequest true "Credit details"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Router /transactions/credit [post]
func (s *AccountService) Credit(w http.ResponseWriter, r *http.Request) {
	var req CreditDebitRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	record, err := s.ledger.Credit(r.Context(), req.AccountNum, req.Amount, idempotencyKey(r))
	if err != nil {
		log.Printf("[TRANSACTION] Credit failed for account %s: %v", req.AccountNum, err)
		s.sendLedgerError(w, err)
		return
	}

	log.Printf("[TRANSACTION] Credited %s to account %s", req.Amount.StringFixed(2), req.AccountNum)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// Debit withdraws funds from an account.
// @Summary Debit an account
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body CreditDebitRequest true "Debit details"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Router /transactions/debit [post]
func (s *AccountService) Debit(w http.ResponseWriter, r *http.Request) {
	var req CreditDebitRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	record, err := s.ledger.Debit(r.Context(), req.AccountNum, req.Amount, idempotencyKey(r))
	if err != nil {
		log.Printf("[TRANSACTION] Debit failed for account %s: %v", req.AccountNum, err)
		s.sendLedgerError(w, err)
		return
	}

	log.Printf("[TRANSACTION] Debited %s from account %s", req.Amount.StringFixed(2), req.AccountNum)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// Transfer moves funds between two accounts.
// @Summary Transfer funds
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body TransferRequest true "Transfer details"
// @Success 201 {object} TransferResult
// @Failure 400 {object} ErrorResponse
// @Router /transactions/transfer [post]
func (s *AccountService) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.ledger.Transfer(r.Context(), req.FromAccount, req.ToAccount, req.Amount, idempotencyKey(r))
	if err != nil {
		log.Printf("[TRANSACTION] Transfer failed %s -> %s: %v", req.FromAccount, req.ToAccount, err)
		s.sendLedgerError(w, err)
		return
	}

	log.Printf("[TRANSACTION] Transferred %s from %s to %s", req.Amount.StringFixed(2), req.FromAccount, req.ToAccount)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// ListTransactions returns an account's history, oldest first.
// @Summary List transactions
// @Tags transactions
// @Produce json
// @Param accountNum query string true "Account number"
// @Param limit query int false "Maximum records to return (default 50, max 200)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 404 {object} ErrorResponse
// @Router /transactions [get]
func (s *AccountService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountNum := strings.TrimSpace(r.URL.Query().Get("accountNum"))
	if !accountNumRegex.MatchString(accountNum) {
		SendErrorResponse(w, "invalid accountNum format", http.StatusBadRequest, nil)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	transactions, err := s.ledger.ListTransactions(r.Context(), accountNum, limit)
	if err != nil {
		s.sendLedgerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (s *AccountService) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

// sendLedgerError maps ledger errors to transport status codes. Business-rule
// rejections are normal negative results, never system faults.
func (s *AccountService) sendLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSelfTransfer):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, ErrAccountNotFound):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, ErrInsufficientFunds):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, ErrAccountClosed):
		SendErrorResponse(w, err.Error(), http.StatusForbidden, nil)
	case errors.Is(err, ErrDuplicateOperation):
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, ErrConcurrentConflict), errors.Is(err, ErrOperationTimedOut):
		SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
	default:
		SendErrorResponse(w, "Failed to process request", http.StatusInternalServerError, nil)
	}
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func userIDFromContext(r *http.Request) (int, bool) {
	value, ok := r.Context().Value("userID").(string)
	if !ok || value == "" {
		return 0, false
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return id, true
}
