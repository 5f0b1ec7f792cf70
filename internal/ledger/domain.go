// Package ledger owns the per-lease tenant account and its append-only
// movement log. The account balance is a cached projection of the movement
// sum; every append updates both in one transaction.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates balance-affecting events.
type MovementType string

const (
	MovementCharge     MovementType = "CHARGE"
	MovementPayment    MovementType = "PAYMENT"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementRefund     MovementType = "REFUND"
	MovementInterest   MovementType = "INTEREST"
	MovementLateFee    MovementType = "LATE_FEE"
	MovementDiscount   MovementType = "DISCOUNT"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	switch t {
	case MovementCharge, MovementPayment, MovementAdjustment, MovementRefund,
		MovementInterest, MovementLateFee, MovementDiscount:
		return true
	}
	return false
}

// Account is the per-lease tenant account. A positive balance means the
// tenant owes money.
type Account struct {
	ID             int64
	LeaseID        int64
	Currency       string
	Balance        decimal.Decimal
	LastMovementAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Movement is one immutable, signed ledger entry. BalanceAfter is a snapshot
// taken at append time and never recomputed.
type Movement struct {
	ID            int64
	AccountID     int64
	Type          MovementType
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	ReferenceType string
	ReferenceID   int64
	Description   string
	MovementDate  time.Time
	CreatedAt     time.Time
}

// AddMovementInput describes a movement to append.
type AddMovementInput struct {
	AccountID     int64
	Type          MovementType
	Amount        decimal.Decimal
	ReferenceType string
	ReferenceID   int64
	Description   string
	MovementDate  time.Time
}

// BalanceInfo composes the stored balance with the advisory late fee computed
// from outstanding invoices. The fee is never persisted by a read.
type BalanceInfo struct {
	AccountID int64           `json:"account_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	LateFee   decimal.Decimal `json:"late_fee"`
	Total     decimal.Decimal `json:"total"`
}

// IntegrityReport is the result of replaying an account's movements.
type IntegrityReport struct {
	AccountID     int64
	Movements     int
	ReplayedSum   decimal.Decimal
	StoredBalance decimal.Decimal
	Consistent    bool
	BrokenAt      *int64
}
