// payments.go — оплата спайса через Telegram Stars.
package bot

import (
	"context"
	"encoding/json"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/features/spice"
	"companion-bot/internal/features/users"
)

// handlePreCheckout подтверждает платёж. Состав пакета проверен на
// этапе создания инвойса, здесь отклонять нечего.
func (b *Bot) handlePreCheckout(query *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	}
	if _, err := b.api.Request(answer); err != nil {
		log.WithError(err).WithField("user_id", query.From.ID).Error("Не удалось подтвердить pre-checkout")
	}
}

// handleSuccessfulPayment зачисляет купленный спайс и сразу запускает
// ответ персонажа: пользователь платил, чтобы продолжить диалог.
func (b *Bot) handleSuccessfulPayment(ctx context.Context, user *users.User, message *tgbotapi.Message) {
	payment := message.SuccessfulPayment

	var payload invoicePayload
	if err := json.Unmarshal([]byte(payment.InvoicePayload), &payload); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось разобрать payload платежа")
		return
	}

	log.WithFields(log.Fields{
		"user_id":      user.ID,
		"spice_amount": payload.SpiceAmount,
		"total":        payment.TotalAmount,
		"currency":     payment.Currency,
		"charge_id":    payment.TelegramPaymentChargeID,
	}).Info("Получен платёж Telegram Stars")

	if err := b.spiceService.Credit(ctx, user.ID, payload.SpiceAmount, spice.TypeStarsDeposit); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось зачислить купленный спайс")
		return
	}

	balance, err := b.spiceService.Balance(ctx, user.ID)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось получить баланс")
		return
	}
	b.sender.SendText(ctx, user.ID, b.t(user, "messages.payment_successful", payload.SpiceAmount, balance))

	// Баланс пополнен — персонаж может ответить на повисшее сообщение
	if user.HasCharacter() {
		b.respond(ctx, user)
	}
}
