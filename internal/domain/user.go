package domain

// VIPTier is one of the fixed paid upgrade levels.
type VIPTier string

const (
	TierFree VIPTier = "free"
	TierVIP1 VIPTier = "vip1"
	TierVIP2 VIPTier = "vip2"
	TierVIP3 VIPTier = "vip3"
)

// User is a ledger entry in the users collection. The id is the
// platform user id as a string. Timestamps are stored as ISO-8601
// strings with a Z suffix, or "" when unset.
type User struct {
	ID              string
	Name            string
	Coins           int64
	ReferralCount   int64
	ReferredBy      string
	AdsWatched      int64
	TasksCompleted  int64
	TotalWithdrawn  int64
	VIPTier         VIPTier
	VIPActivatedAt  string
	WithdrawalsDone int64
	JoinedAt        string
	LastBonusAt     string
	Banned          bool
}
