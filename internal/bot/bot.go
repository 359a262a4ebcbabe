// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go создаёт цикл polling и маршрутизирует апдейты по обработчикам.
package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/bot/middleware"
	"companion-bot/internal/common"
	"companion-bot/internal/config"
	"companion-bot/internal/features/characters"
	"companion-bot/internal/features/chat"
	"companion-bot/internal/features/history"
	"companion-bot/internal/features/spice"
	"companion-bot/internal/features/users"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	sender      *Sender
	rateLimiter *middleware.RateLimiter

	chatService       *chat.Service
	usersService      *users.Service
	charactersService *characters.Service
	spiceService      *spice.Service
	historyService    *history.Service

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	sender *Sender,
	chatService *chat.Service,
	usersService *users.Service,
	charactersService *characters.Service,
	spiceService *spice.Service,
	historyService *history.Service,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:               api,
		cfg:               cfg,
		sender:            sender,
		rateLimiter:       middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		chatService:       chatService,
		usersService:      usersService,
		charactersService: charactersService,
		spiceService:      spiceService,
		historyService:    historyService,
		inflight:          make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverUpdate(update.UpdateID)

	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(update.PreCheckoutQuery)

	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)

	case update.MyChatMember != nil:
		b.handleMyChatMember(ctx, update.MyChatMember)

	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage обрабатывает входящее сообщение (личка, не от ботов).
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.From.IsBot {
		return
	}
	if message.Chat == nil || !message.Chat.IsPrivate() {
		return
	}

	middleware.LogMessage(message)

	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	user, err := b.registerFromMessage(ctx, message)
	if err != nil {
		log.WithError(err).WithField("user_id", message.From.ID).Error("Не удалось зарегистрировать пользователя")
		return
	}

	if message.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(ctx, user, message)
		return
	}

	// Каждое входящее попадает в историю. Реплика треда — только если
	// выбран персонаж и это не команда.
	var characterID *int64
	if user.HasCharacter() && !strings.HasPrefix(message.Text, "/") {
		characterID = user.SelectedCharacterID
	}
	if _, err := b.historyService.Record(ctx, message, characterID, nil); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Не удалось сохранить входящее сообщение")
	}

	text := strings.TrimSpace(message.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(ctx, user)

	case text == "/language":
		b.sender.DeleteMessage(ctx, user.ID, message.MessageID)
		b.sendLanguageSelection(ctx, user)

	case text == "/characters":
		b.sender.DeleteMessage(ctx, user.ID, message.MessageID)
		b.sendCharacterCarousel(ctx, user, 0)

	case text == "/stats":
		b.sender.DeleteMessage(ctx, user.ID, message.MessageID)
		b.sendStats(ctx, user)

	case text == "/transactions":
		b.sender.DeleteMessage(ctx, user.ID, message.MessageID)
		b.sendTransactions(ctx, user)

	case text == "/help":
		b.sender.SendText(ctx, user.ID, b.t(user, "messages.help"))

	case strings.HasPrefix(text, "/"):
		b.sender.DeleteMessage(ctx, user.ID, message.MessageID)
		b.sender.SendText(ctx, user.ID, b.t(user, "errors.unknown_command", text))

	default:
		b.respond(ctx, user)
	}
}

// registerFromMessage создаёт/обновляет пользователя по сообщению
// и следит за стартовым бонусом и реферальными начислениями.
func (b *Bot) registerFromMessage(ctx context.Context, message *tgbotapi.Message) (*users.User, error) {
	startPayload := ""
	if strings.HasPrefix(message.Text, "/start") {
		if parts := strings.Fields(message.Text); len(parts) > 1 {
			startPayload = parts[1]
		}
	}
	return b.register(ctx, message.From, startPayload)
}

func (b *Bot) register(ctx context.Context, from *tgbotapi.User, startPayload string) (*users.User, error) {
	reg, err := b.usersService.Register(ctx, users.Profile{
		ID:           from.ID,
		Username:     from.UserName,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		LanguageCode: from.LanguageCode,
	}, startPayload)
	if err != nil {
		return nil, err
	}

	// Стартовый бонус идемпотентен: выдаётся только при пустой
	// истории транзакций
	if err := b.spiceService.GrantInitialBonusIfFirstTime(ctx, reg.User.ID, b.cfg.SpiceInitialBonus); err != nil {
		log.WithError(err).WithField("user_id", reg.User.ID).Error("Не удалось выдать стартовый бонус")
	}

	if reg.Inviter != nil {
		b.awardReferral(ctx, reg.Inviter, reg.User)
	}

	return reg.User, nil
}

// awardReferral начисляет бонусы пригласившему и приглашённому
// и уведомляет обоих.
func (b *Bot) awardReferral(ctx context.Context, inviter, invitee *users.User) {
	err := b.spiceService.GrantReferralBonuses(ctx, inviter.ID, invitee.ID,
		b.cfg.SpiceInviterBonus, b.cfg.SpiceInviteeBonus)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"inviter_id": inviter.ID,
			"invitee_id": invitee.ID,
		}).Error("Не удалось начислить реферальные бонусы")
		return
	}

	if balance, err := b.spiceService.Balance(ctx, inviter.ID); err == nil {
		b.sender.SendText(ctx, inviter.ID,
			b.t(inviter, "messages.inviter_reward", b.cfg.SpiceInviterBonus, invitee.FullName(), balance))
	}
	if balance, err := b.spiceService.Balance(ctx, invitee.ID); err == nil {
		b.sender.SendText(ctx, invitee.ID,
			b.t(invitee, "messages.invitee_reward", b.cfg.SpiceInviteeBonus, inviter.FullName(), balance))
	}
}

// handleMyChatMember реагирует на блокировку/разблокировку бота.
func (b *Bot) handleMyChatMember(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	user, err := b.register(ctx, &upd.From, "")
	if err != nil {
		log.WithError(err).WithField("user_id", upd.From.ID).Warn("my_chat_member: регистрация не удалась")
		return
	}

	status := upd.NewChatMember.Status
	if status == "left" || status == "kicked" {
		if err := b.usersService.Deactivate(ctx, user.ID); err != nil {
			log.WithError(err).WithField("user_id", user.ID).Warn("Не удалось деактивировать пользователя")
		}
		return
	}
	if err := b.usersService.Activate(ctx, user.ID); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Не удалось активировать пользователя")
	}
}

// respond запускает генерацию ответа персонажа и переводит ожидаемые
// ошибки в понятные пользователю действия.
func (b *Bot) respond(ctx context.Context, user *users.User) {
	err := b.chatService.Respond(ctx, user)
	b.handleRespondError(ctx, user, err)
}

func (b *Bot) handleRespondError(ctx context.Context, user *users.User, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, common.ErrNoCharacterSelected):
		b.sendCharacterCarousel(ctx, user, 0)
	case errors.Is(err, common.ErrGenerationBusy):
		// Генерация уже идёт, ответ придёт по прошлому запросу
		log.WithField("user_id", user.ID).Debug("Генерация уже выполняется, запрос пропущен")
	default:
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось ответить пользователю")
		b.sender.SendText(ctx, user.ID, b.t(user, "messages.try_again"))
	}
}
