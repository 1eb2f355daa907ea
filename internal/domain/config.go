package domain

// Channel is an external channel the membership gate may require.
type Channel struct {
	Name string
	Link string
}

// EconomyConfig holds the tunable economy parameters. A snapshot is
// immutable once handed out; missing remote keys are filled with the
// defaults below so consumers never see an absent key.
type EconomyConfig struct {
	ReferralReward    int64
	BonusReward       int64
	AdRewardMin       int64
	AdRewardMax       int64
	AdWebsiteURL      string
	SupportBot        string
	VIPMultipliers    map[string]float64
	VIPCosts          map[string]int64
	MinRefForWithdraw int64
	RequiredChannels  []Channel
}

// DefaultEconomyConfig returns the literal defaults used to fill any
// key the remote config document does not carry.
func DefaultEconomyConfig() *EconomyConfig {
	return &EconomyConfig{
		ReferralReward: 10,
		BonusReward:    20,
		AdRewardMin:    1,
		AdRewardMax:    5,
		AdWebsiteURL:   "https://example.com",
		SupportBot:     "https://t.me/ExampleSupportBot",
		VIPMultipliers: map[string]float64{"vip1": 1.5, "vip2": 2.0, "vip3": 3.0},
		VIPCosts:       map[string]int64{"vip1": 10, "vip2": 20, "vip3": 50},
	}
}
