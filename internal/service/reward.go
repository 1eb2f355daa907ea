package service

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"earningbot/internal/domain"
	"earningbot/internal/firestore"
	"earningbot/internal/logger"
	"earningbot/internal/repository"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrBanned        = errors.New("user is banned")
	ErrBonusCooldown = errors.New("bonus already claimed today")
	ErrUnknownTier   = errors.New("unknown vip tier")
)

const bonusCooldown = 24 * time.Hour

// VIPMultiplier returns the reward multiplier for a tier. The free (or
// empty) tier and any unrecognized tier are 1.0.
func VIPMultiplier(tier domain.VIPTier, cfg *domain.EconomyConfig) float64 {
	if tier == "" || tier == domain.TierFree {
		return 1.0
	}
	if m, ok := cfg.VIPMultipliers[string(tier)]; ok {
		return m
	}
	return 1.0
}

// TierCost returns the activation price of a tier, or ErrUnknownTier.
func TierCost(tier domain.VIPTier, cfg *domain.EconomyConfig) (int64, error) {
	if c, ok := cfg.VIPCosts[string(tier)]; ok {
		return c, nil
	}
	return 0, ErrUnknownTier
}

// BonusEligible reports whether a bonus may be claimed at now given the
// last claim instant. An empty or unparseable instant is eligible.
func BonusEligible(lastClaim string, now time.Time) bool {
	if lastClaim == "" {
		return true
	}
	last, err := time.Parse(time.RFC3339Nano, lastClaim)
	if err != nil {
		return true
	}
	return now.Sub(last) >= bonusCooldown
}

// scaleReward applies the VIP multiplier to a base payout, rounding
// half away from zero.
func scaleReward(base int64, multiplier float64) int64 {
	return int64(math.Round(float64(base) * multiplier))
}

// RewardService applies the economy rules to the ledger. All mutating
// operations take the per-user lock for the duration of their
// read-modify-write.
type RewardService struct {
	users     *repository.UserRepository
	referrals *repository.ReferralRepository
	config    *repository.ConfigCache
	locks     *UserLocks

	now     func() time.Time
	randInt func(min, max int64) int64
}

func NewRewardService(
	users *repository.UserRepository,
	referrals *repository.ReferralRepository,
	config *repository.ConfigCache,
	locks *UserLocks,
) *RewardService {
	return &RewardService{
		users:     users,
		referrals: referrals,
		config:    config,
		locks:     locks,
		now:       func() time.Time { return time.Now().UTC() },
		randInt: func(min, max int64) int64 {
			return min + rand.Int63n(max-min+1)
		},
	}
}

// Register ensures a ledger entry exists for the user. On first contact
// the new user is credited the referral reward, and a valid non-self
// referrer is credited the same amount once. Calling it again for an
// existing user changes nothing.
func (s *RewardService) Register(ctx context.Context, id, name, referredBy string) (*domain.User, bool, error) {
	if referredBy == id {
		referredBy = ""
	}

	u, created, reward, err := s.register(ctx, id, name, referredBy)
	if err != nil || !created {
		return u, created, err
	}

	// Credited outside the new user's lock so two users referring each
	// other cannot hold each other's locks.
	if referredBy != "" {
		s.creditReferrer(ctx, referredBy, reward)
	}
	return u, true, nil
}

func (s *RewardService) register(ctx context.Context, id, name, referredBy string) (*domain.User, bool, int64, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	existing, err := s.users.Get(ctx, id)
	if err == nil {
		return existing, false, 0, nil
	}
	if !firestore.IsNotFound(err) {
		return nil, false, 0, err
	}

	cfg, err := s.config.Get(ctx, false)
	if err != nil {
		return nil, false, 0, err
	}

	u, err := s.users.Create(ctx, id, name, referredBy, s.now())
	if err != nil {
		return nil, false, 0, err
	}

	if err := s.users.SetCoins(ctx, id, cfg.ReferralReward); err != nil {
		return nil, false, 0, err
	}
	u.Coins = cfg.ReferralReward
	return u, true, cfg.ReferralReward, nil
}

// creditReferrer credits the referrer once. An unknown referrer id is
// silently ignored; other failures are logged but do not fail the
// registration that is already committed.
func (s *RewardService) creditReferrer(ctx context.Context, referrerID string, reward int64) {
	unlock := s.locks.Lock(referrerID)
	defer unlock()

	ref, err := s.users.Get(ctx, referrerID)
	if err != nil {
		if !firestore.IsNotFound(err) {
			logger.Warn("referrer lookup failed", "referrer", referrerID, "err", err)
		}
		return
	}
	if err := s.users.CreditReferral(ctx, referrerID, ref.Coins+reward, ref.ReferralCount+1); err != nil {
		logger.Warn("referrer credit failed", "referrer", referrerID, "err", err)
	}
}

// AdResult describes one credited ad view.
type AdResult struct {
	Base       int64
	Multiplier float64
	Reward     int64
	Balance    int64
	AdURL      string
}

// WatchAd draws a payout in [adRewardMin, adRewardMax], applies the VIP
// multiplier and credits the user.
func (s *RewardService) WatchAd(ctx context.Context, id, name string) (*AdResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	cfg, err := s.config.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	u, err := s.getOrCreate(ctx, id, name)
	if err != nil {
		return nil, err
	}
	if u.Banned {
		return nil, ErrBanned
	}

	base := s.randInt(cfg.AdRewardMin, cfg.AdRewardMax)
	mult := VIPMultiplier(u.VIPTier, cfg)
	reward := scaleReward(base, mult)

	coins := u.Coins + reward
	if err := s.users.RecordAdWatch(ctx, id, coins, u.AdsWatched+1); err != nil {
		return nil, err
	}

	return &AdResult{
		Base:       base,
		Multiplier: mult,
		Reward:     reward,
		Balance:    coins,
		AdURL:      cfg.AdWebsiteURL,
	}, nil
}

// BonusResult describes one credited daily bonus.
type BonusResult struct {
	Reward  int64
	Balance int64
}

// ClaimBonus credits the daily bonus if the cooldown has elapsed,
// otherwise returns ErrBonusCooldown without touching the ledger.
func (s *RewardService) ClaimBonus(ctx context.Context, id, name string) (*BonusResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	cfg, err := s.config.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	u, err := s.getOrCreate(ctx, id, name)
	if err != nil {
		return nil, err
	}
	if u.Banned {
		return nil, ErrBanned
	}

	now := s.now()
	if !BonusEligible(u.LastBonusAt, now) {
		return nil, ErrBonusCooldown
	}

	reward := scaleReward(cfg.BonusReward, VIPMultiplier(u.VIPTier, cfg))
	coins := u.Coins + reward
	if err := s.users.RecordBonusClaim(ctx, id, coins, now); err != nil {
		return nil, err
	}

	return &BonusResult{Reward: reward, Balance: coins}, nil
}

// ActivateTier grants a VIP tier after an authorized external payment.
// No proration, no downgrade, no expiry.
func (s *RewardService) ActivateTier(ctx context.Context, id string, tier domain.VIPTier) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.users.ActivateVIP(ctx, id, tier, s.now())
}

// Stats is the user profile shown on the stats display.
type Stats struct {
	User      *domain.User
	Referrals int
}

// UserStats returns the user plus a recomputed referral count. The
// count degrades to zero on a store failure; it backs a display only.
func (s *RewardService) UserStats(ctx context.Context, id string) (*Stats, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if firestore.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &Stats{User: u, Referrals: s.CountReferrals(ctx, id)}, nil
}

// CountReferrals recomputes the referral count for display, degrading
// to zero when the query fails.
func (s *RewardService) CountReferrals(ctx context.Context, id string) int {
	n, err := s.referrals.CountReferrals(ctx, id)
	if err != nil {
		logger.Warn("referral count failed", "user", id, "err", err)
		return 0
	}
	return n
}

// Config exposes the cached economy config to callers that only render it.
func (s *RewardService) Config(ctx context.Context) (*domain.EconomyConfig, error) {
	return s.config.Get(ctx, false)
}

// GetUser returns the ledger entry, mapping absence to ErrUserNotFound.
func (s *RewardService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if firestore.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// getOrCreate mirrors the first-contact shortcut on earn paths: a user
// who never ran /start still gets a ledger entry, without any referral
// attribution.
func (s *RewardService) getOrCreate(ctx context.Context, id, name string) (*domain.User, error) {
	u, err := s.users.Get(ctx, id)
	if err == nil {
		return u, nil
	}
	if !firestore.IsNotFound(err) {
		return nil, err
	}
	return s.users.Create(ctx, id, name, "", s.now())
}
