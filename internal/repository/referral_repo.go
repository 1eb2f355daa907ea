package repository

import (
	"context"

	"earningbot/internal/firestore"
)

// ReferralRepository derives referral counts by querying the ledger.
// Referral rewards themselves are counted incrementally at registration;
// this recomputed count backs low-frequency stats displays only.
type ReferralRepository struct {
	store Store
}

func NewReferralRepository(store Store) *ReferralRepository {
	return &ReferralRepository{store: store}
}

// CountReferrals returns how many users were referred by id. This scans
// the collection remotely on every call.
func (r *ReferralRepository) CountReferrals(ctx context.Context, id string) (int, error) {
	docs, err := r.store.QueryEquals(ctx, usersCollection, fieldReferredBy, firestore.String(id))
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
