package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// LedgerTag classifies a wallet ledger entry.
type LedgerTag string

const (
	LedgerTagCredit    LedgerTag = "credit"
	LedgerTagCancelled LedgerTag = "cancelled"
)

// LedgerStatus is the human-facing status recorded on an entry.
type LedgerStatus string

const (
	LedgerStatusSuccessful LedgerStatus = "Successful"
	LedgerStatusCancelled  LedgerStatus = "Cancelled"
)

// LedgerEntry is an immutable, append-only record of a balance-affecting
// (or cancelled) wallet event. For a credit entry NewBalance equals
// PreviousBalance + Amount, and no two credit entries share a gateway
// reference.
type LedgerEntry struct {
	ID              uuid.UUID    `json:"id"`
	TransactionID   string       `json:"transaction_id"`
	AccountID       string       `json:"account_id"`
	Amount          int64        `json:"amount"` // major units
	PreviousBalance int64        `json:"previous_balance"`
	NewBalance      int64        `json:"new_balance"`
	Tag             LedgerTag    `json:"tag"`
	Status          LedgerStatus `json:"status"`
	Reference       string       `json:"reference"` // gateway transaction reference
	ChatID          string       `json:"chat_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

const txnIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewFundingTransactionID generates a human-traceable transaction id with
// the wallet-fund prefix, a millisecond timestamp and a random suffix.
func NewFundingTransactionID(now time.Time) string {
	return fmt.Sprintf("wallet-fund-%d-%s", now.UnixMilli(), randomSuffix(7))
}

// NewCancellationTransactionID generates the id used for cancelled-payment
// audit entries.
func NewCancellationTransactionID(now time.Time) string {
	return fmt.Sprintf("cancelled-%d", now.UnixMilli())
}

func randomSuffix(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(txnIDAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("transaction id entropy unavailable: " + err.Error())
		}
		out[i] = txnIDAlphabet[idx.Int64()]
	}
	return string(out)
}

// MinorToMajor converts a gateway minor-unit amount (kobo) to major units
// (naira). The remainder is reported so callers can flag off-convention
// amounts.
func MinorToMajor(minor int64) (major int64, remainder int64) {
	return minor / 100, minor % 100
}

// MajorToMinor converts a major-unit amount to the gateway's minor-unit
// convention.
func MajorToMinor(major int64) int64 {
	return major * 100
}
