package database

import (
	"database/sql"
	"fmt"
)

// Balances and amounts are NUMERIC so arithmetic is exact; the application
// mirrors this with decimal values and never touches floats.
//
// The transactions table is append-only: no UPDATE or DELETE statement for it
// exists anywhere in this codebase.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone_number TEXT NOT NULL,
		account_num TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		account_num TEXT PRIMARY KEY,
		account_name TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id),
		balance NUMERIC(19,4) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id SERIAL PRIMARY KEY,
		transaction_id TEXT NOT NULL UNIQUE,
		account_num TEXT NOT NULL REFERENCES accounts(account_num),
		amount NUMERIC(19,4) NOT NULL CHECK (amount > 0),
		kind TEXT NOT NULL CHECK (kind IN ('CREDIT', 'DEBIT')),
		status TEXT NOT NULL DEFAULT 'SUCCESSFUL',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account_num ON transactions(account_num, id)`,
}

// EnsureSchema creates the tables the service needs if they do not exist.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
