// callbacks.go — обработка inline-кнопок: выбор языка, карусель
// персонажей, welcome-экран.
package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/features/users"
	"companion-bot/internal/i18n"
)

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Data == "" {
		return
	}

	user, err := b.register(ctx, query.From, "")
	if err != nil {
		log.WithError(err).WithField("user_id", query.From.ID).Error("callback: регистрация не удалась")
		return
	}

	data := query.Data
	switch {
	case strings.HasPrefix(data, "lang_"):
		b.callbackSelectLanguage(ctx, user, query, strings.TrimPrefix(data, "lang_"))

	case strings.HasPrefix(data, "char_nav_"):
		index, err := strconv.Atoi(strings.TrimPrefix(data, "char_nav_"))
		if err != nil {
			b.answerCallback(query.ID, "")
			return
		}
		if query.Message != nil {
			b.editCharacterCarousel(ctx, user, query.Message.MessageID, index)
		}
		b.answerCallback(query.ID, "")

	case strings.HasPrefix(data, "char_select_"):
		characterID, err := strconv.ParseInt(strings.TrimPrefix(data, "char_select_"), 10, 64)
		if err != nil {
			b.answerCallback(query.ID, "")
			return
		}
		b.callbackSelectCharacter(ctx, user, query, characterID)

	case data == "welcome_continue":
		b.answerCallback(query.ID, b.t(user, "status.continue_chatting_confirmed"))
		b.deleteQueryMessage(ctx, query)

	case data == "welcome_change_char":
		b.answerCallback(query.ID, "")
		b.deleteQueryMessage(ctx, query)
		b.sendCharacterCarousel(ctx, user, 0)

	case data == "welcome_clear_all":
		b.callbackClearHistory(ctx, user, query)

	case data == "_":
		// Декоративная кнопка-счётчик карусели
		b.answerCallback(query.ID, "")
	}
}

func (b *Bot) callbackSelectLanguage(ctx context.Context, user *users.User, query *tgbotapi.CallbackQuery, lang string) {
	if !i18n.Has(lang) {
		b.answerCallback(query.ID, "")
		return
	}

	if err := b.usersService.SelectLanguage(ctx, user.ID, lang); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось сохранить язык")
		return
	}
	user.SelectedLanguage = lang

	b.answerCallback(query.ID, b.t(user, "status.language_set"))
	b.deleteQueryMessage(ctx, query)

	if !user.HasCharacter() {
		b.sendCharacterCarousel(ctx, user, 0)
	}
}

func (b *Bot) callbackSelectCharacter(ctx context.Context, user *users.User, query *tgbotapi.CallbackQuery, characterID int64) {
	character, err := b.charactersService.GetByID(ctx, characterID)
	if err != nil {
		log.WithError(err).WithField("character_id", characterID).Warn("Выбран несуществующий персонаж")
		b.answerCallback(query.ID, "")
		return
	}

	if err := b.usersService.SelectCharacter(ctx, user.ID, character.ID); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Не удалось сохранить выбор персонажа")
		return
	}
	user.SelectedCharacterID = &character.ID

	b.answerCallback(query.ID, b.t(user, "status.character_selected", character.GetName(user.Lang())))
	b.deleteQueryMessage(ctx, query)

	// Персонаж выбран — он сразу делает первый шаг
	b.respond(ctx, user)
}

// callbackClearHistory очищает тред с текущим персонажем: помечает
// сообщения удалёнными и по возможности убирает их из чата.
func (b *Bot) callbackClearHistory(ctx context.Context, user *users.User, query *tgbotapi.CallbackQuery) {
	if user.HasCharacter() {
		messageIDs, err := b.historyService.TombstoneThread(ctx, user.ID, *user.SelectedCharacterID)
		if err != nil {
			log.WithError(err).WithField("user_id", user.ID).Error("Не удалось очистить историю")
			return
		}
		for _, id := range messageIDs {
			if _, err := b.api.Request(tgbotapi.NewDeleteMessage(user.ID, id)); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"chat_id":    user.ID,
					"message_id": id,
				}).Debug("Не удалось удалить сообщение треда")
			}
		}
	}

	b.answerCallback(query.ID, b.t(user, "status.history_cleared"))
	b.deleteQueryMessage(ctx, query)
}

func (b *Bot) answerCallback(queryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}

func (b *Bot) deleteQueryMessage(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	b.sender.DeleteMessage(ctx, query.Message.Chat.ID, query.Message.MessageID)
}
