package service

import (
	"context"
	"errors"
	"strings"

	"earningbot/internal/domain"
	"earningbot/internal/logger"
	"earningbot/internal/repository"
)

// ErrChannelNotFound marks a required channel that could not be
// resolved at all (misconfigured name, bot not in channel).
var ErrChannelNotFound = errors.New("channel not found")

// MemberChecker resolves a user's membership status in a channel.
// Statuses follow the messaging platform: member, administrator,
// creator, left, kicked, restricted.
type MemberChecker interface {
	ChatMemberStatus(ctx context.Context, channel string, userID int64) (string, error)
}

// MembershipGate requires the user to belong to every configured
// channel. Stateless; re-invocations always reflect current membership.
type MembershipGate struct {
	checker MemberChecker
	config  *repository.ConfigCache
}

func NewMembershipGate(checker MemberChecker, config *repository.ConfigCache) *MembershipGate {
	return &MembershipGate{checker: checker, config: config}
}

// Verify reports whether the user passes the gate, returning the
// channels still missing. An unresolvable channel is skipped rather
// than locking everyone out; any other lookup failure fails the gate
// closed.
func (g *MembershipGate) Verify(ctx context.Context, userID int64) (bool, []domain.Channel, error) {
	cfg, err := g.config.Get(ctx, false)
	if err != nil {
		return false, nil, err
	}

	var missing []domain.Channel
	for _, ch := range cfg.RequiredChannels {
		status, err := g.checker.ChatMemberStatus(ctx, ChannelUsername(ch.Link), userID)
		if err != nil {
			if errors.Is(err, ErrChannelNotFound) {
				logger.Warn("required channel unresolvable, skipping", "channel", ch.Name)
				continue
			}
			return false, nil, err
		}
		if !memberStatusOK(status) {
			missing = append(missing, ch)
		}
	}
	return len(missing) == 0, missing, nil
}

func memberStatusOK(status string) bool {
	switch status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}

// ChannelUsername derives an @username from a configured channel link.
func ChannelUsername(link string) string {
	s := strings.TrimSpace(link)
	s = strings.TrimPrefix(s, "https://t.me/")
	s = strings.TrimPrefix(s, "http://t.me/")
	s = strings.TrimPrefix(s, "t.me/")
	if !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	return s
}
