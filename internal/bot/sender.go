// sender.go — транспортный адаптер: отправка сообщений персонажа в Telegram
// с записью каждого исходящего в историю треда.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/config"
	"companion-bot/internal/features/characters"
	"companion-bot/internal/features/history"
	"companion-bot/internal/features/spice"
	"companion-bot/internal/features/users"
	"companion-bot/internal/generation"
	"companion-bot/internal/i18n"
)

// Пакеты пополнения: спайс за Telegram Stars
var topupPackages = []struct {
	Spice int64
	Stars int
}{
	{500, 99},
	{1000, 179},
	{2000, 439},
}

// Sender отправляет сообщения в Telegram и сохраняет их в историю.
// Реализует chat.Sender.
type Sender struct {
	api     *tgbotapi.BotAPI
	cfg     *config.Config
	history *history.Service
	spice   *spice.Service
}

func NewSender(api *tgbotapi.BotAPI, cfg *config.Config, historyService *history.Service, spiceService *spice.Service) *Sender {
	return &Sender{
		api:     api,
		cfg:     cfg,
		history: historyService,
		spice:   spiceService,
	}
}

// ChatAction показывает индикатор активности ("печатает...").
func (s *Sender) ChatAction(chatID int64, action string) error {
	if _, err := s.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		return fmt.Errorf("не удалось отправить chat action: %w", err)
	}
	return nil
}

// SendResponse отправляет текстовый ответ персонажа с клавиатурой
// подсказок и записывает его в историю как реплику персонажа.
func (s *Sender) SendResponse(ctx context.Context, user *users.User, character *characters.Character, resp *generation.Response) error {
	msg := tgbotapi.NewMessage(user.ID, resp.Answer)
	msg.ReplyMarkup = suggestionKeyboard(resp.ReplySuggestions)

	sent, err := s.api.Send(msg)
	if err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %w", err)
	}

	s.record(ctx, &sent, &character.ID, resp)
	return nil
}

// SendResponsePhoto отправляет фото с ответом персонажа в подписи.
func (s *Sender) SendResponsePhoto(ctx context.Context, user *users.User, character *characters.Character, resp *generation.Response, photoURL string) error {
	msg := tgbotapi.NewPhoto(user.ID, tgbotapi.FileURL(photoURL))
	msg.Caption = resp.Answer
	msg.ReplyMarkup = suggestionKeyboard(resp.ReplySuggestions)

	sent, err := s.api.Send(msg)
	if err != nil {
		return fmt.Errorf("не удалось отправить фото: %w", err)
	}

	s.record(ctx, &sent, &character.ID, resp)
	return nil
}

// NotifyInsufficientSpice показывает баланс, стоимость ответов и кнопки
// пополнения за Telegram Stars плюс приглашение друга.
func (s *Sender) NotifyInsufficientSpice(ctx context.Context, user *users.User) error {
	balance, err := s.spice.Balance(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("не удалось получить баланс: %w", err)
	}

	lang := user.Lang()
	text := i18n.T(lang, "messages.insufficient_spice",
		balance,
		s.cfg.SpiceTextResponseCost,
		s.cfg.SpiceImageGenerationCost,
		s.cfg.SpiceVideoGenerationCost,
	)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(topupPackages)+1)
	for _, pkg := range topupPackages {
		link, err := s.CreateStarsInvoiceLink(user, pkg.Spice, pkg.Stars)
		if err != nil {
			log.WithError(err).WithField("user_id", user.ID).Error("Не удалось создать ссылку на оплату")
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(fmt.Sprintf("%d 🌶 за %d ⭐", pkg.Spice, pkg.Stars), link),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL(
			i18n.T(lang, "buttons.invite_friend", s.cfg.SpiceInviterBonus),
			s.shareDeepLink(user),
		),
	))

	msg := tgbotapi.NewMessage(user.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	sent, err := s.api.Send(msg)
	if err != nil {
		return fmt.Errorf("не удалось отправить сообщение о балансе: %w", err)
	}
	s.record(ctx, &sent, nil, nil)
	return nil
}

// SendText — служебное сообщение без клавиатуры (локализованное).
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	sent, err := s.api.Send(msg)
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
		return
	}
	s.record(ctx, &sent, nil, nil)
}

// CreateStarsInvoiceLink создаёт ссылку на оплату пакета спайса
// в Telegram Stars (валюта XTR, provider_token не нужен).
func (s *Sender) CreateStarsInvoiceLink(user *users.User, spiceAmount int64, starsCost int) (string, error) {
	title := fmt.Sprintf("%d 🌶", spiceAmount)

	payload, err := json.Marshal(invoicePayload{UserID: user.ID, SpiceAmount: spiceAmount})
	if err != nil {
		return "", err
	}
	prices, err := json.Marshal([]tgbotapi.LabeledPrice{{Label: title, Amount: starsCost}})
	if err != nil {
		return "", err
	}

	params := tgbotapi.Params{
		"title":       title,
		"description": i18n.T(user.Lang(), "payment.invoice_description", spiceAmount, starsCost),
		"payload":     string(payload),
		"currency":    "XTR",
		"prices":      string(prices),
	}

	resp, err := s.api.MakeRequest("createInvoiceLink", params)
	if err != nil {
		return "", fmt.Errorf("createInvoiceLink: %w", err)
	}

	var link string
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("не удалось разобрать ссылку на оплату: %w", err)
	}
	return link, nil
}

// invoicePayload — полезная нагрузка инвойса, возвращается Telegram
// в successful_payment.
type invoicePayload struct {
	UserID      int64 `json:"user_id"`
	SpiceAmount int64 `json:"spice_amount"`
}

// DeleteMessage удаляет сообщение из чата и помечает его удалённым
// в истории. Ошибка транспорта не критична (сообщение могло быть
// уже удалено).
func (s *Sender) DeleteMessage(ctx context.Context, chatID int64, messageID int) {
	if _, err := s.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id":    chatID,
			"message_id": messageID,
		}).Debug("Не удалось удалить сообщение в Telegram")
	}
	if err := s.history.Tombstone(ctx, chatID, messageID); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Не удалось пометить сообщение удалённым")
	}
}

// inviteLink — deep-link /start с ID пригласившего в payload.
func (s *Sender) inviteLink(user *users.User) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", s.api.Self.UserName, user.ID)
}

// shareDeepLink — ссылка "поделиться ботом" с готовым текстом.
func (s *Sender) shareDeepLink(user *users.User) string {
	return "https://t.me/share/url?url=" + url.QueryEscape(s.inviteLink(user)) +
		"&text=" + url.QueryEscape(i18n.T(user.Lang(), "share.invite_text"))
}

func (s *Sender) record(ctx context.Context, sent *tgbotapi.Message, characterID *int64, resp *generation.Response) {
	if _, err := s.history.Record(ctx, sent, characterID, resp); err != nil {
		log.WithError(err).WithField("chat_id", sent.Chat.ID).Error("Не удалось сохранить исходящее сообщение")
	}
}

// suggestionKeyboard строит клавиатуру подсказок ответа.
// Без подсказок предыдущая клавиатура убирается.
func suggestionKeyboard(suggestions []string) any {
	if len(suggestions) == 0 {
		return tgbotapi.NewRemoveKeyboard(false)
	}
	rows := make([][]tgbotapi.KeyboardButton, 0, len(suggestions))
	for _, s := range suggestions {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(s)))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
