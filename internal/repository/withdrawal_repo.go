package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"earningbot/internal/domain"
	"earningbot/internal/firestore"

	"github.com/google/uuid"
)

const withdrawalsCollection = "withdrawals"

// WithdrawalRepository persists payout requests. Records are created
// once and resolved later by an out-of-band operator process.
type WithdrawalRepository struct {
	store Store
}

func NewWithdrawalRepository(store Store) *WithdrawalRepository {
	return &WithdrawalRepository{store: store}
}

// NewWithdrawalID derives a record id from the user, the wall clock and
// a random disambiguator. Collisions are operationally unlikely, not
// cryptographically impossible.
func NewWithdrawalID(userID string, now time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s-%d-%s", userID, now.UnixNano(), suffix)
}

// Create persists a withdrawal record under its explicit id.
func (r *WithdrawalRepository) Create(ctx context.Context, w *domain.Withdrawal) error {
	return r.store.Create(ctx, withdrawalsCollection, w.ID, map[string]firestore.Value{
		"userId":      firestore.String(w.UserID),
		"upi":         firestore.String(w.UPI),
		"amount":      firestore.Int(w.Amount),
		"status":      firestore.String(string(w.Status)),
		"requestedAt": firestore.String(w.RequestedAt),
		"processedAt": firestore.String(w.ProcessedAt),
	})
}

// GetByUserID returns all withdrawal records belonging to a user.
// Result order is whatever the store returns.
func (r *WithdrawalRepository) GetByUserID(ctx context.Context, userID string) ([]domain.Withdrawal, error) {
	docs, err := r.store.QueryEquals(ctx, withdrawalsCollection, "userId", firestore.String(userID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Withdrawal, 0, len(docs))
	for _, fields := range docs {
		out = append(out, domain.Withdrawal{
			UserID:      fields["userId"].AsString(),
			UPI:         fields["upi"].AsString(),
			Amount:      fields["amount"].AsInt(),
			Status:      domain.WithdrawalStatus(fields["status"].AsString()),
			RequestedAt: fields["requestedAt"].AsString(),
			ProcessedAt: fields["processedAt"].AsString(),
		})
	}
	return out, nil
}
