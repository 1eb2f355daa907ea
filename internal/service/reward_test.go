package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"earningbot/internal/domain"
	"earningbot/internal/firestore"
	"earningbot/internal/firestore/firestoretest"
	"earningbot/internal/repository"
)

func newRewardFixture(t *testing.T) (*RewardService, *firestoretest.Store) {
	t.Helper()
	store := firestoretest.New()
	users := repository.NewUserRepository(store)
	refs := repository.NewReferralRepository(store)
	cache := repository.NewConfigCache(store)
	s := NewRewardService(users, refs, cache, NewUserLocks())
	s.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s, store
}

func TestVIPMultiplier(t *testing.T) {
	cfg := domain.DefaultEconomyConfig()
	cases := []struct {
		tier domain.VIPTier
		want float64
	}{
		{"", 1.0},
		{domain.TierFree, 1.0},
		{domain.TierVIP1, 1.5},
		{domain.TierVIP2, 2.0},
		{domain.TierVIP3, 3.0},
		{"vip99", 1.0},
	}
	for _, tc := range cases {
		if got := VIPMultiplier(tc.tier, cfg); got != tc.want {
			t.Fatalf("VIPMultiplier(%q) = %f; want %f", tc.tier, got, tc.want)
		}
	}
}

func TestScaleRewardRounding(t *testing.T) {
	cases := []struct {
		base int64
		mult float64
		want int64
	}{
		{3, 1.0, 3},
		{3, 1.5, 5},  // 4.5 rounds half away from zero
		{1, 1.5, 2},  // 1.5 -> 2
		{2, 1.5, 3},
		{5, 3.0, 15},
	}
	for _, tc := range cases {
		if got := scaleReward(tc.base, tc.mult); got != tc.want {
			t.Fatalf("scaleReward(%d, %g) = %d; want %d", tc.base, tc.mult, got, tc.want)
		}
	}
}

func TestAdRewardBounds(t *testing.T) {
	cfg := domain.DefaultEconomyConfig()
	for _, tier := range []domain.VIPTier{domain.TierFree, domain.TierVIP1, domain.TierVIP2, domain.TierVIP3} {
		mult := VIPMultiplier(tier, cfg)
		for base := cfg.AdRewardMin; base <= cfg.AdRewardMax; base++ {
			reward := scaleReward(base, mult)
			if reward < base {
				t.Fatalf("tier %s base %d: reward %d below base", tier, base, reward)
			}
			if reward < 0 {
				t.Fatalf("tier %s base %d: negative reward %d", tier, base, reward)
			}
		}
	}
}

func TestRegisterNewUserScenarioA(t *testing.T) {
	s, _ := newRewardFixture(t)
	ctx := context.Background()

	u, created, err := s.Register(ctx, "u1", "User One", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !created {
		t.Fatalf("created = false; want true")
	}
	if u.Coins != 10 {
		t.Fatalf("coins = %d; want referralReward 10", u.Coins)
	}

	got, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VIPTier != domain.TierFree {
		t.Fatalf("vipTier = %q; want free", got.VIPTier)
	}
	if got.Coins != 10 {
		t.Fatalf("persisted coins = %d; want 10", got.Coins)
	}
}

func TestRegisterReferralAttribution(t *testing.T) {
	s, _ := newRewardFixture(t)
	ctx := context.Background()

	ref, _, err := s.Register(ctx, "ref", "Referrer", "")
	if err != nil {
		t.Fatalf("register referrer: %v", err)
	}
	startCoins := ref.Coins

	if _, _, err := s.Register(ctx, "new", "Newbie", "ref"); err != nil {
		t.Fatalf("register newbie: %v", err)
	}

	got, err := s.GetUser(ctx, "ref")
	if err != nil {
		t.Fatalf("get referrer: %v", err)
	}
	if got.Coins != startCoins+10 {
		t.Fatalf("referrer coins = %d; want %d", got.Coins, startCoins+10)
	}
	if got.ReferralCount != 1 {
		t.Fatalf("referral count = %d; want 1", got.ReferralCount)
	}

	// Registration is first-contact-only: repeating it must not
	// double-credit the referrer.
	if _, created, err := s.Register(ctx, "new", "Newbie", "ref"); err != nil || created {
		t.Fatalf("second register: created=%v err=%v", created, err)
	}
	got, _ = s.GetUser(ctx, "ref")
	if got.Coins != startCoins+10 || got.ReferralCount != 1 {
		t.Fatalf("referrer double-credited: coins=%d count=%d", got.Coins, got.ReferralCount)
	}
}

func TestRegisterIgnoresSelfAndUnknownReferrer(t *testing.T) {
	s, _ := newRewardFixture(t)
	ctx := context.Background()

	u, _, err := s.Register(ctx, "self", "Selfie", "self")
	if err != nil {
		t.Fatalf("self referral: %v", err)
	}
	if u.ReferredBy != "" {
		t.Fatalf("referredBy = %q; want empty for self-referral", u.ReferredBy)
	}

	// Unknown referrer: silently ignored, registration still succeeds.
	if _, _, err := s.Register(ctx, "u2", "U2", "ghost"); err != nil {
		t.Fatalf("unknown referrer: %v", err)
	}
}

func TestWatchAdCreditsAndCounts(t *testing.T) {
	s, _ := newRewardFixture(t)
	ctx := context.Background()
	s.randInt = func(min, max int64) int64 { return 4 }

	s.Register(ctx, "u1", "U1", "")

	res, err := s.WatchAd(ctx, "u1", "U1")
	if err != nil {
		t.Fatalf("watch ad: %v", err)
	}
	if res.Base != 4 || res.Reward != 4 || res.Multiplier != 1.0 {
		t.Fatalf("result = %+v", res)
	}
	if res.Balance != 14 {
		t.Fatalf("balance = %d; want 14", res.Balance)
	}

	u, _ := s.GetUser(ctx, "u1")
	if u.AdsWatched != 1 {
		t.Fatalf("adsWatched = %d; want 1", u.AdsWatched)
	}
}

func TestWatchAdAppliesVIPMultiplier(t *testing.T) {
	s, _ := newRewardFixture(t)
	ctx := context.Background()
	s.randInt = func(min, max int64) int64 { return 3 }

	s.Register(ctx, "vip", "Vip", "")
	if err := s.ActivateTier(ctx, "vip", domain.TierVIP1); err != nil {
		t.Fatalf("activate: %v", err)
	}

	res, err := s.WatchAd(ctx, "vip", "Vip")
	if err != nil {
		t.Fatalf("watch ad: %v", err)
	}
	if res.Reward != 5 { // round(3 * 1.5) = 5, half away from zero
		t.Fatalf("reward = %d; want 5", res.Reward)
	}
}

func TestWatchAdBanned(t *testing.T) {
	s, store := newRewardFixture(t)
	ctx := context.Background()

	s.Register(ctx, "bad", "Bad", "")
	doc, _ := store.Doc("users", "bad")
	doc["banned"] = firestore.Bool(true)
	store.Set(ctx, "users", "bad", doc)

	if _, err := s.WatchAd(ctx, "bad", "Bad"); !errors.Is(err, ErrBanned) {
		t.Fatalf("err = %v; want ErrBanned", err)
	}
}

func TestBonusCooldown(t *testing.T) {
	s, _ := newRewardFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Register(ctx, "u1", "U1", "")

	first, err := s.ClaimBonus(ctx, "u1", "U1")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if first.Reward != 20 {
		t.Fatalf("reward = %d; want 20", first.Reward)
	}

	// Immediate second claim: rejected, balance untouched.
	if _, err := s.ClaimBonus(ctx, "u1", "U1"); !errors.Is(err, ErrBonusCooldown) {
		t.Fatalf("second claim err = %v; want ErrBonusCooldown", err)
	}
	u, _ := s.GetUser(ctx, "u1")
	if u.Coins != first.Balance {
		t.Fatalf("balance changed on rejected claim: %d", u.Coins)
	}

	// One second short of the cooldown: still rejected.
	s.now = func() time.Time { return base.Add(24*time.Hour - time.Second) }
	if _, err := s.ClaimBonus(ctx, "u1", "U1"); !errors.Is(err, ErrBonusCooldown) {
		t.Fatalf("claim at 23:59:59 err = %v; want ErrBonusCooldown", err)
	}

	// At 24h plus a second it succeeds again.
	s.now = func() time.Time { return base.Add(24*time.Hour + time.Second) }
	if _, err := s.ClaimBonus(ctx, "u1", "U1"); err != nil {
		t.Fatalf("claim after cooldown: %v", err)
	}
}

func TestBonusEligibleFailsOpen(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	if !BonusEligible("", now) {
		t.Fatalf("empty last claim should be eligible")
	}
	if !BonusEligible("garbage-timestamp", now) {
		t.Fatalf("unparseable last claim should be eligible")
	}
	if BonusEligible("2025-05-01T11:00:00Z", now) {
		t.Fatalf("claim one hour ago should not be eligible")
	}
}

func TestActivateTier(t *testing.T) {
	s, _ := newRewardFixture(t)
	ctx := context.Background()

	s.Register(ctx, "u1", "U1", "")
	if err := s.ActivateTier(ctx, "u1", domain.TierVIP2); err != nil {
		t.Fatalf("activate: %v", err)
	}

	u, _ := s.GetUser(ctx, "u1")
	if u.VIPTier != domain.TierVIP2 {
		t.Fatalf("tier = %q; want vip2", u.VIPTier)
	}
	if u.VIPActivatedAt == "" {
		t.Fatalf("vipActivatedAt not set")
	}
}

func TestCountReferralsFailSoft(t *testing.T) {
	s, store := newRewardFixture(t)
	ctx := context.Background()

	s.Register(ctx, "u1", "U1", "")
	store.FailWith = errors.New("store down")

	if n := s.CountReferrals(ctx, "u1"); n != 0 {
		t.Fatalf("count = %d; want safe default 0", n)
	}
}
