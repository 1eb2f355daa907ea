package repository

import (
	"context"
	"time"

	"earningbot/internal/domain"
	"earningbot/internal/firestore"
)

const usersCollection = "users"

// Wire field names of the user document.
const (
	fieldID               = "id"
	fieldName             = "name"
	fieldCoins            = "coins"
	fieldReferralCount    = "reffer"
	fieldReferredBy       = "refferBy"
	fieldAdsWatched       = "adsWatched"
	fieldTasksCompleted   = "tasksCompleted"
	fieldTotalWithdrawals = "totalWithdrawals"
	fieldVIPTier          = "vipTier"
	fieldVIPActivatedAt   = "vipActivatedAt"
	fieldWithdrawalsDone  = "withdrawalsDone"
	fieldJoinedAt         = "joinedAt"
	fieldLastBonusAt      = "lastBonusAt"
	fieldBanned           = "banned"
)

// UserRepository is the ledger over the users collection.
type UserRepository struct {
	store Store
}

func NewUserRepository(store Store) *UserRepository {
	return &UserRepository{store: store}
}

// Get fetches a user by id. A missing user is firestore.ErrNotFound.
func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	fields, err := r.store.Get(ctx, usersCollection, id)
	if err != nil {
		return nil, err
	}
	return userFromFields(fields), nil
}

// Create persists a new user with every field at its default and
// returns the value just written.
func (r *UserRepository) Create(ctx context.Context, id, name, referredBy string, now time.Time) (*domain.User, error) {
	u := &domain.User{
		ID:         id,
		Name:       name,
		ReferredBy: referredBy,
		VIPTier:    domain.TierFree,
		JoinedAt:   firestore.FormatTimestamp(now),
	}
	if err := r.store.Set(ctx, usersCollection, id, userToFields(u)); err != nil {
		return nil, err
	}
	return u, nil
}

// CreditReferral applies a referral credit to a referrer: new balance
// and incremented referral counter, as a field-mask patch.
func (r *UserRepository) CreditReferral(ctx context.Context, id string, coins, referralCount int64) error {
	return r.store.Patch(ctx, usersCollection, id, map[string]firestore.Value{
		fieldCoins:         firestore.Int(coins),
		fieldReferralCount: firestore.Int(referralCount),
	})
}

// SetCoins overwrites the user's balance.
func (r *UserRepository) SetCoins(ctx context.Context, id string, coins int64) error {
	return r.store.Patch(ctx, usersCollection, id, map[string]firestore.Value{
		fieldCoins: firestore.Int(coins),
	})
}

// RecordAdWatch stores the post-reward balance and ad counter.
func (r *UserRepository) RecordAdWatch(ctx context.Context, id string, coins, adsWatched int64) error {
	return r.store.Patch(ctx, usersCollection, id, map[string]firestore.Value{
		fieldCoins:      firestore.Int(coins),
		fieldAdsWatched: firestore.Int(adsWatched),
	})
}

// RecordBonusClaim stores the post-bonus balance and claim instant.
func (r *UserRepository) RecordBonusClaim(ctx context.Context, id string, coins int64, claimedAt time.Time) error {
	return r.store.Patch(ctx, usersCollection, id, map[string]firestore.Value{
		fieldCoins:       firestore.Int(coins),
		fieldLastBonusAt: firestore.String(firestore.FormatTimestamp(claimedAt)),
	})
}

// ActivateVIP grants a paid tier. Tiers are permanent once granted.
func (r *UserRepository) ActivateVIP(ctx context.Context, id string, tier domain.VIPTier, activatedAt time.Time) error {
	return r.store.Patch(ctx, usersCollection, id, map[string]firestore.Value{
		fieldVIPTier:        firestore.String(string(tier)),
		fieldVIPActivatedAt: firestore.String(firestore.FormatTimestamp(activatedAt)),
	})
}

// ApplyWithdrawal stores the post-debit balance and withdrawal counters.
func (r *UserRepository) ApplyWithdrawal(ctx context.Context, id string, coins, withdrawalsDone, totalWithdrawn int64) error {
	return r.store.Patch(ctx, usersCollection, id, map[string]firestore.Value{
		fieldCoins:            firestore.Int(coins),
		fieldWithdrawalsDone:  firestore.Int(withdrawalsDone),
		fieldTotalWithdrawals: firestore.Int(totalWithdrawn),
	})
}

func userToFields(u *domain.User) map[string]firestore.Value {
	return map[string]firestore.Value{
		fieldID:               firestore.String(u.ID),
		fieldName:             firestore.String(u.Name),
		fieldCoins:            firestore.Int(u.Coins),
		fieldReferralCount:    firestore.Int(u.ReferralCount),
		fieldReferredBy:       firestore.String(u.ReferredBy),
		fieldAdsWatched:       firestore.Int(u.AdsWatched),
		fieldTasksCompleted:   firestore.Int(u.TasksCompleted),
		fieldTotalWithdrawals: firestore.Int(u.TotalWithdrawn),
		fieldVIPTier:          firestore.String(string(u.VIPTier)),
		fieldVIPActivatedAt:   firestore.String(u.VIPActivatedAt),
		fieldWithdrawalsDone:  firestore.Int(u.WithdrawalsDone),
		fieldJoinedAt:         firestore.String(u.JoinedAt),
		fieldLastBonusAt:      firestore.String(u.LastBonusAt),
		fieldBanned:           firestore.Bool(u.Banned),
	}
}

func userFromFields(fields map[string]firestore.Value) *domain.User {
	u := &domain.User{
		ID:              fields[fieldID].AsString(),
		Name:            fields[fieldName].AsString(),
		Coins:           fields[fieldCoins].AsInt(),
		ReferralCount:   fields[fieldReferralCount].AsInt(),
		ReferredBy:      fields[fieldReferredBy].AsString(),
		AdsWatched:      fields[fieldAdsWatched].AsInt(),
		TasksCompleted:  fields[fieldTasksCompleted].AsInt(),
		TotalWithdrawn:  fields[fieldTotalWithdrawals].AsInt(),
		VIPTier:         domain.VIPTier(fields[fieldVIPTier].AsString()),
		VIPActivatedAt:  fields[fieldVIPActivatedAt].AsString(),
		WithdrawalsDone: fields[fieldWithdrawalsDone].AsInt(),
		JoinedAt:        fields[fieldJoinedAt].AsString(),
		LastBonusAt:     fields[fieldLastBonusAt].AsString(),
		Banned:          fields[fieldBanned].AsBool(),
	}
	if u.VIPTier == "" {
		u.VIPTier = domain.TierFree
	}
	return u
}
