package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"earningbot/internal/logger"
	"earningbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const handlerTimeout = 30 * time.Second

// Bot runs the user-facing Telegram bot: the earn menu, the withdrawal
// conversation, VIP payments and the channel membership gate.
type Bot struct {
	api       *tgbotapi.BotAPI
	username  string
	rewards   *service.RewardService
	withdraws *service.WithdrawService
	gate      *service.MembershipGate

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *slog.Logger
}

// New authorizes against the Bot API and wires the services together.
// The membership gate is built here because it needs the bot connection.
func New(
	token string,
	rewards *service.RewardService,
	withdraws *service.WithdrawService,
	newGate func(service.MemberChecker) *service.MembershipGate,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log := logger.With("component", "bot")
	log.Info("bot authorized", "username", api.Self.UserName)

	b := &Bot{
		api:       api,
		username:  api.Self.UserName,
		rewards:   rewards,
		withdraws: withdraws,
		stopCh:    make(chan struct{}),
		log:       log,
	}
	b.gate = newGate(&chatMemberChecker{api: api})
	return b, nil
}

// Start runs the long-polling update loop until Stop is called.
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(update)
			}(update)
		}
	}
}

// Stop gracefully stops the bot.
func (b *Bot) Stop() {
	close(b.stopCh)
	b.api.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("bot shutdown timeout, some handlers may not have completed")
	}
}

// handleUpdate dispatches one update. A panic or unexpected error never
// kills the process: it is logged and answered with a generic apology.
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in update handler", "panic", r)
			b.apologize(update)
		}
	}()

	var err error
	switch {
	case update.PreCheckoutQuery != nil:
		err = b.handlePreCheckout(update.PreCheckoutQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		err = b.handleSuccessfulPayment(ctx, update.Message)
	case update.Message != nil && update.Message.IsCommand():
		err = b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		err = b.handleText(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.handleCallback(ctx, update.CallbackQuery)
	}

	if err != nil {
		b.log.Error("update handler failed", "err", err)
		b.apologize(update)
	}
}

func (b *Bot) apologize(update tgbotapi.Update) {
	var chatID int64
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
	default:
		return
	}
	b.send(tgbotapi.NewMessage(chatID, "⚠️ An error occurred. Please try again."))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Warn("send failed", "err", err)
	}
}

// chatMemberChecker adapts the Bot API to the membership gate.
type chatMemberChecker struct {
	api *tgbotapi.BotAPI
}

func (c *chatMemberChecker) ChatMemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "chat not found") {
			return "", service.ErrChannelNotFound
		}
		return "", err
	}
	return member.Status, nil
}
