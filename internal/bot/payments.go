package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"earningbot/internal/domain"
	"earningbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const vipPayloadPrefix = "vip_"

// sendVIPInvoice shows a Telegram Stars invoice for the chosen tier.
// Stars invoices use the XTR currency and no provider token.
func (b *Bot) sendVIPInvoice(ctx context.Context, chatID int64, tier string) error {
	cfg, err := b.rewards.Config(ctx)
	if err != nil {
		return err
	}
	cost, err := service.TierCost(domain.VIPTier(tier), cfg)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "❌ Unknown VIP tier."))
		return nil
	}

	upper := strings.ToUpper(tier)
	invoice := tgbotapi.InvoiceConfig{
		BaseChat:       tgbotapi.BaseChat{ChatID: chatID},
		Title:          fmt.Sprintf("VIP %s Activation", upper),
		Description:    fmt.Sprintf("Unlock VIP %s — multipliers apply to Ads & Bonus.", upper),
		Payload:        vipPayloadPrefix + tier,
		Currency:       "XTR",
		StartParameter: vipPayloadPrefix + tier,
		Prices: []tgbotapi.LabeledPrice{
			{Label: fmt.Sprintf("VIP %s Access", upper), Amount: int(cost)},
		},
	}
	b.send(invoice)
	return nil
}

// handlePreCheckout approves the pre-checkout query. The payment
// provider is opaque to us; a failure to answer cancels the payment.
func (b *Bot) handlePreCheckout(q *tgbotapi.PreCheckoutQuery) error {
	_, err := b.api.Request(tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: q.ID,
		OK:                 true,
	})
	if err != nil {
		b.log.Error("precheckout answer failed", "err", err)
		_, _ = b.api.Request(tgbotapi.PreCheckoutConfig{
			PreCheckoutQueryID: q.ID,
			OK:                 false,
			ErrorMessage:       "Payment error. Please try again later.",
		})
	}
	return nil
}

// handleSuccessfulPayment activates the purchased tier.
func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) error {
	payload := msg.SuccessfulPayment.InvoicePayload
	if !strings.HasPrefix(payload, vipPayloadPrefix) {
		return nil
	}
	tier := domain.VIPTier(strings.TrimPrefix(payload, vipPayloadPrefix))
	uid := strconv.FormatInt(msg.From.ID, 10)

	if err := b.rewards.ActivateTier(ctx, uid, tier); err != nil {
		return err
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID,
		fmt.Sprintf("✅ VIP %s activated!", strings.ToUpper(string(tier))))
	reply.ReplyMarkup = mainMenuKeyboard()
	b.send(reply)
	return nil
}
