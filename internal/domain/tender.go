package domain

import "time"

// Tender is an amount of money applied toward an order's total, split
// by instrument. Components are in céntimos and must be non-negative;
// there is no decrement — corrections are out of scope.
type Tender struct {
	Cash int64
	Yape int64
	Card int64
}

// Total returns the sum of the tender's components.
func (t Tender) Total() int64 {
	return t.Cash + t.Yape + t.Card
}

// IsZero reports whether the tender carries no money at all.
func (t Tender) IsZero() bool {
	return t.Cash == 0 && t.Yape == 0 && t.Card == 0
}

// TenderReceipt records the outcome of one applied tender. Receipts are
// kept per idempotency key so a blind retry of the same request replays
// the recorded result instead of double-counting the payment.
type TenderReceipt struct {
	RequestID     string
	Tender        Tender
	Change        int64
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	AppliedAt     time.Time
}
