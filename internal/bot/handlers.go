package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"earningbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	uid := strconv.FormatInt(msg.From.ID, 10)

	switch msg.Command() {
	case "start":
		refBy := strings.TrimSpace(msg.CommandArguments())
		name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if _, _, err := b.rewards.Register(ctx, uid, name, refBy); err != nil {
			return err
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID,
			fmt.Sprintf("👋 Welcome, %s!\nUse the buttons below to earn and manage your balance.", name))
		reply.ReplyMarkup = mainMenuKeyboard()
		b.send(reply)
		return nil

	case "cancel":
		text := "Nothing to cancel."
		if b.withdraws.Cancel(uid) {
			text = "❌ Withdrawal cancelled."
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		reply.ReplyMarkup = mainMenuKeyboard()
		b.send(reply)
		return nil

	default:
		reply := tgbotapi.NewMessage(msg.Chat.ID, "❓ Please use the buttons below.")
		reply.ReplyMarkup = mainMenuKeyboard()
		b.send(reply)
		return nil
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	uid := strconv.FormatInt(msg.From.ID, 10)

	// An active withdrawal conversation consumes all text input.
	if b.withdraws.State(uid) != service.StateIdle {
		return b.handleWithdrawInput(ctx, msg)
	}

	text := strings.ToLower(msg.Text)
	switch {
	case strings.Contains(text, "ad"):
		return b.handleAdWatch(ctx, msg)
	case strings.Contains(text, "bonus"):
		return b.handleBonus(ctx, msg)
	case strings.Contains(text, "refer"):
		return b.handleRefer(ctx, msg.Chat.ID, uid)
	case strings.Contains(text, "balance"):
		return b.handleBalance(ctx, msg)
	case strings.Contains(text, "extra"):
		cfg, err := b.rewards.Config(ctx)
		if err != nil {
			return err
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, "✨ Extra")
		reply.ReplyMarkup = extraMenuKeyboard(cfg)
		b.send(reply)
		return nil
	default:
		reply := tgbotapi.NewMessage(msg.Chat.ID, "❓ Please use the buttons below.")
		reply.ReplyMarkup = mainMenuKeyboard()
		b.send(reply)
		return nil
	}
}

// passesGate runs the channel membership gate, messaging the user with
// the channels still to join when it denies.
func (b *Bot) passesGate(ctx context.Context, chatID, userID int64) (bool, error) {
	ok, missing, err := b.gate.Verify(ctx, userID)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	reply := tgbotapi.NewMessage(chatID, "🔒 Join our channels first, then try again:")
	reply.ReplyMarkup = channelsKeyboard(missing)
	b.send(reply)
	return false, nil
}

func (b *Bot) handleAdWatch(ctx context.Context, msg *tgbotapi.Message) error {
	uid := strconv.FormatInt(msg.From.ID, 10)

	if ok, err := b.passesGate(ctx, msg.Chat.ID, msg.From.ID); err != nil || !ok {
		return err
	}

	res, err := b.rewards.WatchAd(ctx, uid, msg.From.FirstName)
	if errors.Is(err, service.ErrBanned) {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "❌ You are not allowed to use this bot."))
		return nil
	}
	if err != nil {
		return err
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(
		"🎬 Ad watched!\nReward: +%d coins (base %d × VIP %gx)\nCurrent Balance: %d",
		res.Reward, res.Base, res.Multiplier, res.Balance))
	reply.ReplyMarkup = mainMenuKeyboard()
	b.send(reply)
	return nil
}

func (b *Bot) handleBonus(ctx context.Context, msg *tgbotapi.Message) error {
	uid := strconv.FormatInt(msg.From.ID, 10)

	if ok, err := b.passesGate(ctx, msg.Chat.ID, msg.From.ID); err != nil || !ok {
		return err
	}

	res, err := b.rewards.ClaimBonus(ctx, uid, msg.From.FirstName)
	switch {
	case errors.Is(err, service.ErrBonusCooldown):
		reply := tgbotapi.NewMessage(msg.Chat.ID, "⏳ Bonus already claimed today.")
		reply.ReplyMarkup = mainMenuKeyboard()
		b.send(reply)
		return nil
	case errors.Is(err, service.ErrBanned):
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "❌ You are not allowed to use this bot."))
		return nil
	case err != nil:
		return err
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(
		"🎁 Bonus +%d coins!\nCurrent Balance: %d", res.Reward, res.Balance))
	reply.ReplyMarkup = mainMenuKeyboard()
	b.send(reply)
	return nil
}

func (b *Bot) handleRefer(ctx context.Context, chatID int64, uid string) error {
	link := fmt.Sprintf("https://t.me/%s?start=%s", b.username, uid)
	refs := b.rewards.CountReferrals(ctx, uid)

	reply := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"👥 Refer & Earn\nYour link:\n%s\nReferrals: %d", link, refs))
	reply.DisableWebPagePreview = true
	reply.ReplyMarkup = mainMenuKeyboard()
	b.send(reply)
	return nil
}

func (b *Bot) handleBalance(ctx context.Context, msg *tgbotapi.Message) error {
	uid := strconv.FormatInt(msg.From.ID, 10)
	u, err := b.rewards.GetUser(ctx, uid)
	if errors.Is(err, service.ErrUserNotFound) {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "❌ Please /start first."))
		return nil
	}
	if err != nil {
		return err
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(
		"💰 Coins: %d\nVIP: %s", u.Coins, u.VIPTier))
	reply.ReplyMarkup = balanceMenuKeyboard()
	b.send(reply)
	return nil
}

func (b *Bot) handleWithdrawInput(ctx context.Context, msg *tgbotapi.Message) error {
	uid := strconv.FormatInt(msg.From.ID, 10)

	res, err := b.withdraws.HandleInput(ctx, uid, msg.Text)
	if errors.Is(err, service.ErrNotWithdrawing) {
		return nil
	}
	if errors.Is(err, service.ErrUserNotFound) {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "❌ Please /start first."))
		return nil
	}
	if err != nil {
		return err
	}

	var text string
	switch res.Outcome {
	case service.OutcomeInvalidUPI:
		text = "❌ That doesn't look like a UPI ID. Send it like name@bank, or /cancel."
	case service.OutcomeUPIAccepted:
		text = "💳 How many coins do you want to withdraw?"
	case service.OutcomeInvalidAmount:
		text = "❌ Send a positive whole number of coins, or /cancel."
	case service.OutcomeInsufficientBalance:
		text = fmt.Sprintf("❌ Not enough coins. Your balance is %d.", res.Balance)
	case service.OutcomeCompleted:
		text = fmt.Sprintf(
			"✅ Withdrawal requested!\nAmount: %d coins → %s\nRemaining balance: %d\nYou'll be notified once it is processed.",
			res.Withdrawal.Amount, res.Withdrawal.UPI, res.Balance)
	default:
		return nil
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	if res.Outcome == service.OutcomeCompleted {
		reply.ReplyMarkup = mainMenuKeyboard()
	}
	b.send(reply)
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	// Always answer, otherwise the client shows a spinner forever.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Warn("callback answer failed", "err", err)
	}
	if cq.Message == nil {
		return nil
	}

	chatID := cq.Message.Chat.ID
	msgID := cq.Message.MessageID
	uid := strconv.FormatInt(cq.From.ID, 10)

	switch {
	case cq.Data == "back_home":
		reply := tgbotapi.NewMessage(chatID, "🏠 Home")
		reply.ReplyMarkup = mainMenuKeyboard()
		b.send(reply)
		return nil

	case cq.Data == "extra":
		cfg, err := b.rewards.Config(ctx)
		if err != nil {
			return err
		}
		b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, "✨ Extra", extraMenuKeyboard(cfg)))
		return nil

	case cq.Data == "stats":
		return b.handleStats(ctx, chatID, msgID, uid)

	case cq.Data == "vip":
		cfg, err := b.rewards.Config(ctx)
		if err != nil {
			return err
		}
		b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, "👑 Choose your VIP tier:", vipMenuKeyboard(cfg)))
		return nil

	case strings.HasPrefix(cq.Data, "vip_set:"):
		tier := strings.TrimPrefix(cq.Data, "vip_set:")
		return b.sendVIPInvoice(ctx, chatID, tier)

	case cq.Data == "withdraw":
		return b.handleWithdrawStart(ctx, chatID, uid)

	case cq.Data == "withdraw_cancel":
		if b.withdraws.Cancel(uid) {
			b.send(tgbotapi.NewEditMessageText(chatID, msgID, "❌ Withdrawal cancelled."))
		}
		return nil
	}
	return nil
}

func (b *Bot) handleStats(ctx context.Context, chatID int64, msgID int, uid string) error {
	stats, err := b.rewards.UserStats(ctx, uid)
	if errors.Is(err, service.ErrUserNotFound) {
		b.send(tgbotapi.NewEditMessageText(chatID, msgID, "❌ Please /start first."))
		return nil
	}
	if err != nil {
		return err
	}

	u := stats.User
	text := fmt.Sprintf(
		"📊 Stats\n\nName: %s\nCoins: %d\nVIP: %s\nAds Watched: %d\nReferrals: %d\nTotal Withdrawals: %d",
		u.Name, u.Coins, u.VIPTier, u.AdsWatched, stats.Referrals, u.TotalWithdrawn)
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, backKeyboard("extra")))
	return nil
}

func (b *Bot) handleWithdrawStart(ctx context.Context, chatID int64, uid string) error {
	res, err := b.withdraws.Begin(ctx, uid)
	if err != nil {
		return err
	}
	if res.Outcome == service.OutcomeTooFewReferrals {
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
			"🔒 You need at least %d referrals to withdraw. Share your link from Refer & Earn!",
			res.NeedReferral)))
		return nil
	}

	reply := tgbotapi.NewMessage(chatID, "🏦 Send your UPI ID (e.g. name@bank), or /cancel.")
	reply.ReplyMarkup = withdrawCancelKeyboard()
	b.send(reply)
	return nil
}
