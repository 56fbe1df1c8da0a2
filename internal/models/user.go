package models

import "time"

type User struct {
	ID          int       `json:"id" example:"1"`                       // User ID
	Email       string    `json:"email" example:"user@example.com"`     // User email
	FirstName   string    `json:"FirstName" example:"John"`             // User first name
	LastName    string    `json:"LastName" example:"Doe"`               // User last name
	AccountNum  string    `json:"AccountNum" example:"1234567890"`      // Primary account number
	PhoneNumber string    `json:"PhoneNumber" example:"+2348012345678"` // User phone number
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
