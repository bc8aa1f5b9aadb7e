package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// MaxNotesLength caps the free-text notes attached to a transaction.
const MaxNotesLength = 500

// earliestDate is the lower bound accepted for transaction dates.
var earliestDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

type (
	// TxType distinguishes income from expense records.
	TxType string

	// Transaction is a single dated income or expense record owned by a user.
	Transaction struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Type      TxType    `json:"type"`
		Category  string    `json:"category"`
		Date      time.Time `json:"date"`
		Amount    Money     `json:"amount"`
		Notes     string    `json:"notes,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// TransactionInput carries the user-editable fields of a transaction.
	TransactionInput struct {
		Type     TxType    `json:"type"`
		Category string    `json:"category"`
		Date     time.Time `json:"date"`
		Amount   Money     `json:"amount"`
		Notes    string    `json:"notes,omitempty"`
	}
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidType     = errors.New("type must be income or expense")
	ErrEmptyCategory   = errors.New("category is required")
	ErrUnknownCategory = errors.New("category does not belong to the transaction type")
	ErrInvalidDate     = errors.New("invalid date")
	ErrNotesTooLong    = errors.New("notes too long (max 500 characters)")
)

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Normalize trims text fields and defaults a zero date to now.
func (in TransactionInput) Normalize(now time.Time) TransactionInput {
	in.Category = strings.TrimSpace(in.Category)
	in.Notes = strings.TrimSpace(in.Notes)
	if in.Date.IsZero() {
		in.Date = now
	}
	return in
}

func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if !IsKnownCategory(in.Type, in.Category) {
		return ErrUnknownCategory
	}
	if in.Date.IsZero() || in.Date.Before(earliestDate) {
		return ErrInvalidDate
	}
	if len([]rune(in.Notes)) > MaxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

// Apply copies the input onto the transaction, leaving identity fields untouched.
func (t Transaction) Apply(in TransactionInput) Transaction {
	t.Type = in.Type
	t.Category = in.Category
	t.Date = in.Date
	t.Amount = in.Amount
	t.Notes = in.Notes
	return t
}

