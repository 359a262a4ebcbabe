// handlers.go — обработчики команд и экранов онбординга.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/common"
	"companion-bot/internal/features/characters"
	"companion-bot/internal/features/users"
	"companion-bot/internal/i18n"
)

// t — локализованная строка для пользователя.
func (b *Bot) t(user *users.User, key string, args ...any) string {
	return i18n.T(user.Lang(), key, args...)
}

// handleStart ведёт пользователя по онбордингу:
// язык → персонаж → экран "с возвращением".
func (b *Bot) handleStart(ctx context.Context, user *users.User) {
	if user.SelectedLanguage == "" {
		b.sendLanguageSelection(ctx, user)
		return
	}
	if !user.HasCharacter() {
		b.sendCharacterCarousel(ctx, user, 0)
		return
	}
	b.sendWelcomeBack(ctx, user)
}

func (b *Bot) sendLanguageSelection(ctx context.Context, user *users.User) {
	msg := tgbotapi.NewMessage(user.ID, b.t(user, "messages.select_language"))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇷🇺", "lang_ru"),
			tgbotapi.NewInlineKeyboardButtonData("🇬🇧", "lang_en"),
		),
	)

	sent, err := b.api.Send(msg)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось отправить выбор языка")
		return
	}
	if _, err := b.historyService.Record(ctx, &sent, nil, nil); err != nil {
		log.WithError(err).Warn("Не удалось сохранить сообщение выбора языка")
	}
}

// sendWelcomeBack — экран возвращения с вариантами: продолжить,
// сменить персонажа, очистить историю.
func (b *Bot) sendWelcomeBack(ctx context.Context, user *users.User) {
	character, err := b.charactersService.GetByID(ctx, *user.SelectedCharacterID)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось загрузить персонажа")
		b.sendCharacterCarousel(ctx, user, 0)
		return
	}

	msg := tgbotapi.NewMessage(user.ID, b.t(user, "messages.welcome_back", character.GetName(user.Lang())))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.t(user, "buttons.continue_chatting"), "welcome_continue"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.t(user, "buttons.choose_another_character"), "welcome_change_char"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.t(user, "buttons.clear_history_restart"), "welcome_clear_all"),
		),
	)

	sent, err := b.api.Send(msg)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось отправить welcome-экран")
		return
	}
	if _, err := b.historyService.Record(ctx, &sent, nil, nil); err != nil {
		log.WithError(err).Warn("Не удалось сохранить welcome-сообщение")
	}
}

// carouselMarkup строит клавиатуру карусели персонажей:
// навигация по кругу + кнопка выбора текущего.
func (b *Bot) carouselMarkup(user *users.User, list []*characters.Character, index int) tgbotapi.InlineKeyboardMarkup {
	current := list[index]
	total := len(list)

	var rows [][]tgbotapi.InlineKeyboardButton
	if total > 1 {
		prev := (index - 1 + total) % total
		next := (index + 1) % total
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👈🏼", fmt.Sprintf("char_nav_%d", prev)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d / %d", index+1, total), "_"),
			tgbotapi.NewInlineKeyboardButtonData("👉🏼", fmt.Sprintf("char_nav_%d", next)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(
			b.t(user, "buttons.select_character", current.GetName(user.Lang())),
			fmt.Sprintf("char_select_%d", current.ID),
		),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) carouselCaption(user *users.User, c *characters.Character) string {
	lang := user.Lang()
	return b.t(user, "messages.character_selection", c.GetName(lang), c.GetDescription(lang))
}

// sendCharacterCarousel показывает карусель персонажей с видео.
func (b *Bot) sendCharacterCarousel(ctx context.Context, user *users.User, index int) {
	list, err := b.charactersService.ListActive(ctx)
	if err != nil || len(list) == 0 {
		log.WithError(err).Error("Не удалось загрузить персонажей")
		return
	}
	if index < 0 || index >= len(list) {
		index = 0
	}
	current := list[index]

	msg := tgbotapi.NewVideo(user.ID, tgbotapi.FileURL(current.VideoURL))
	msg.Caption = b.carouselCaption(user, current)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = b.carouselMarkup(user, list, index)

	sent, err := b.api.Send(msg)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось отправить карусель персонажей")
		return
	}
	if _, err := b.historyService.Record(ctx, &sent, nil, nil); err != nil {
		log.WithError(err).Warn("Не удалось сохранить сообщение карусели")
	}
}

// editCharacterCarousel листает карусель на месте (char_nav_).
func (b *Bot) editCharacterCarousel(ctx context.Context, user *users.User, messageID, index int) {
	list, err := b.charactersService.ListActive(ctx)
	if err != nil || len(list) == 0 {
		log.WithError(err).Error("Не удалось загрузить персонажей")
		return
	}
	if index < 0 || index >= len(list) {
		index = 0
	}
	current := list[index]

	media := tgbotapi.NewInputMediaVideo(tgbotapi.FileURL(current.VideoURL))
	media.Caption = b.carouselCaption(user, current)
	media.ParseMode = tgbotapi.ModeHTML

	markup := b.carouselMarkup(user, list, index)
	edit := tgbotapi.EditMessageMediaConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:      user.ID,
			MessageID:   messageID,
			ReplyMarkup: &markup,
		},
		Media: media,
	}

	sent, err := b.api.Send(edit)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Debug("Не удалось отредактировать карусель")
		return
	}
	if err := b.historyService.SyncPayload(ctx, &sent); err != nil {
		log.WithError(err).Debug("Не удалось обновить payload карусели")
	}
}

// sendStats показывает персонажа, уровень симпатии и баланс спайса.
func (b *Bot) sendStats(ctx context.Context, user *users.User) {
	if !user.HasCharacter() {
		b.handleStart(ctx, user)
		return
	}

	character, err := b.charactersService.GetByID(ctx, *user.SelectedCharacterID)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось загрузить персонажа")
		return
	}

	sympathy := 0
	if s, ok, err := b.historyService.LastSympathy(ctx, user.ID, character.ID); err == nil && ok {
		sympathy = s
	}

	balance, err := b.spiceService.Balance(ctx, user.ID)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось получить баланс")
		return
	}

	b.sender.SendText(ctx, user.ID, b.t(user, "messages.stats",
		character.GetName(user.Lang()), sympathy, sympathyEmoji(sympathy), balance))
}

func sympathyEmoji(level int) string {
	switch {
	case level >= 80:
		return "😍"
	case level >= 60:
		return "🥰"
	case level >= 40:
		return "😊"
	case level >= 20:
		return "🙂"
	default:
		return "😐"
	}
}

// transactionsLimit — сколько последних записей журнала показывать.
const transactionsLimit = 15

// sendTransactions показывает последние операции со спайсом.
func (b *Bot) sendTransactions(ctx context.Context, user *users.User) {
	list, err := b.spiceService.Transactions(ctx, user.ID, transactionsLimit)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось получить журнал транзакций")
		return
	}
	if len(list) == 0 {
		b.sender.SendText(ctx, user.ID, b.t(user, "messages.transactions_empty"))
		return
	}

	var sb strings.Builder
	sb.WriteString(b.t(user, "messages.transactions_header", len(list)))
	for _, tx := range list {
		sb.WriteString(fmt.Sprintf("\n%s  %s 🌶  %s",
			common.FormatDateTime(tx.CreatedAt), common.FormatSigned(int(tx.Amount)), tx.Type))
	}
	b.sender.SendText(ctx, user.ID, sb.String())
}
