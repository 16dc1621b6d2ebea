// Package model defines domain types for fintrack transactions, categories and budgets.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money going out from money coming in.
type TransactionType string

const (
	Expenditure TransactionType = "expenditure"
	Income      TransactionType = "income"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Expenditure || t == Income
}

// TransactionRecord is the narrow view of one transaction document.
// Records are rebuilt from scratch on every snapshot and never patched.
type TransactionRecord struct {
	ID       string
	Category string
	Title    string
	Amount   decimal.Decimal
	Type     TransactionType
	Month    string
	Date     time.Time
}
