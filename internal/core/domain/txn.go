package domain

import "time"

// Account is one bank or card account returned by a fetch.
type Account struct {
	AccountNumber string        `json:"accountNumber"`
	Balance       *float64      `json:"balance,omitempty"`
	Txns          []Transaction `json:"txns"`
}

// Transaction mirrors the transaction shape produced by the automation library.
type Transaction struct {
	Type             string        `json:"type,omitempty"`
	Identifier       any           `json:"identifier,omitempty"`
	Date             string        `json:"date"`
	ProcessedDate    string        `json:"processedDate,omitempty"`
	OriginalAmount   float64       `json:"originalAmount"`
	OriginalCurrency string        `json:"originalCurrency,omitempty"`
	ChargedAmount    float64       `json:"chargedAmount"`
	ChargedCurrency  string        `json:"chargedCurrency,omitempty"`
	Description      string        `json:"description"`
	Memo             string        `json:"memo,omitempty"`
	Status           TxStatus      `json:"status,omitempty"`
	Installments     *Installments `json:"installments,omitempty"`
	Category         string        `json:"category,omitempty"`
}

// Installments describes a split card payment.
type Installments struct {
	Number int `json:"number"`
	Total  int `json:"total"`
}

type TxStatus string

const (
	TxStatusCompleted TxStatus = "completed"
	TxStatusPending   TxStatus = "pending"
)

// FetchRequest is the input of a single fetch attempt.
type FetchRequest struct {
	Source      SourceID
	Company     Company
	Credentials Credentials
	StartDate   time.Time
	ShowBrowser bool
}

// FetchResult is the raw outcome reported by the external fetch operation.
// Expected domain failures are reported with Success=false, not as Go errors.
type FetchResult struct {
	Success      bool      `json:"success"`
	Accounts     []Account `json:"accounts,omitempty"`
	ErrorType    string    `json:"errorType,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// TransactionCount sums transactions across all accounts.
func (r *FetchResult) TransactionCount() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, acc := range r.Accounts {
		total += len(acc.Txns)
	}
	return total
}
