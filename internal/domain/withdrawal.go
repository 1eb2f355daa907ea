package domain

// WithdrawalStatus represents withdrawal processing status. Transitions
// out of pending are performed by an external operator process.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// Withdrawal is a payout request. Created once per completed withdrawal
// conversation and never mutated here afterwards.
type Withdrawal struct {
	ID          string
	UserID      string
	UPI         string
	Amount      int64
	Status      WithdrawalStatus
	RequestedAt string
	ProcessedAt string
}
