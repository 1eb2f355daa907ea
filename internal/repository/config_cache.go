package repository

import (
	"context"
	"sync"

	"earningbot/internal/domain"
	"earningbot/internal/firestore"
)

const (
	configCollection = "config"
	configDocID      = "global"
)

// ConfigCache is a process-wide snapshot of the economy config. The
// snapshot is filled lazily and kept until an explicit refresh; a
// missing remote key always falls back to its literal default, so
// consumers never observe an absent key.
type ConfigCache struct {
	store Store

	mu  sync.Mutex
	cfg *domain.EconomyConfig
}

func NewConfigCache(store Store) *ConfigCache {
	return &ConfigCache{store: store}
}

// Get returns the cached snapshot, fetching it first if the cache is
// empty or force is set.
func (c *ConfigCache) Get(ctx context.Context, force bool) (*domain.EconomyConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg != nil && !force {
		return c.cfg, nil
	}

	fields, err := c.store.Get(ctx, configCollection, configDocID)
	if err != nil && !firestore.IsNotFound(err) {
		return nil, err
	}

	c.cfg = configFromFields(fields)
	return c.cfg, nil
}

// Ping checks the remote store is reachable, bypassing the cache. A
// missing config document still counts as reachable.
func (c *ConfigCache) Ping(ctx context.Context) error {
	_, err := c.store.Get(ctx, configCollection, configDocID)
	if err != nil && !firestore.IsNotFound(err) {
		return err
	}
	return nil
}

// Refresh forces a remote fetch and returns the new snapshot.
func (c *ConfigCache) Refresh(ctx context.Context) (*domain.EconomyConfig, error) {
	return c.Get(ctx, true)
}

// configFromFields merges the remote document over the literal
// defaults: a present remote value wins, an absent key keeps its
// default. fields may be nil for a missing document.
func configFromFields(fields map[string]firestore.Value) *domain.EconomyConfig {
	cfg := domain.DefaultEconomyConfig()

	if v, ok := fields["referralReward"]; ok {
		cfg.ReferralReward = v.AsInt()
	}
	if v, ok := fields["bonusReward"]; ok {
		cfg.BonusReward = v.AsInt()
	}
	if v, ok := fields["adRewardMin"]; ok {
		cfg.AdRewardMin = v.AsInt()
	}
	if v, ok := fields["adRewardMax"]; ok {
		cfg.AdRewardMax = v.AsInt()
	}
	// The reward draw needs min <= max.
	if cfg.AdRewardMax < cfg.AdRewardMin {
		cfg.AdRewardMax = cfg.AdRewardMin
	}
	if v, ok := fields["adWebsiteURL"]; ok {
		cfg.AdWebsiteURL = v.AsString()
	}
	if v, ok := fields["supportBot"]; ok {
		cfg.SupportBot = v.AsString()
	}
	if v, ok := fields["vipMultipliers"]; ok && v.Kind == firestore.KindMap {
		m := make(map[string]float64, len(v.Map))
		for tier, mv := range v.Map {
			m[tier] = mv.AsFloat()
		}
		cfg.VIPMultipliers = m
	}
	if v, ok := fields["vipCosts"]; ok && v.Kind == firestore.KindMap {
		m := make(map[string]int64, len(v.Map))
		for tier, cv := range v.Map {
			m[tier] = cv.AsInt()
		}
		cfg.VIPCosts = m
	}
	if v, ok := fields["minRefForWithdraw"]; ok {
		cfg.MinRefForWithdraw = v.AsInt()
	}
	if v, ok := fields["requiredChannels"]; ok && v.Kind == firestore.KindArray {
		for _, cv := range v.Arr {
			if cv.Kind != firestore.KindMap {
				continue
			}
			cfg.RequiredChannels = append(cfg.RequiredChannels, domain.Channel{
				Name: cv.Map["name"].AsString(),
				Link: cv.Map["link"].AsString(),
			})
		}
	}

	return cfg
}
