// setup.go — регистрация метаданных бота в Telegram: команды, имя,
// описание для каждого поддерживаемого языка.
package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/i18n"
)

// SetupMeta выставляет команды, имя и описания бота для всех локалей.
// Ошибки не фатальны: 429 на смену имени — обычное дело при частых
// рестартах.
func (b *Bot) SetupMeta() {
	for _, lang := range i18n.Langs {
		commands := tgbotapi.NewSetMyCommandsWithScopeAndLanguage(
			tgbotapi.NewBotCommandScopeAllPrivateChats(),
			lang,
			tgbotapi.BotCommand{Command: "start", Description: i18n.T(lang, "commands.start")},
			tgbotapi.BotCommand{Command: "help", Description: i18n.T(lang, "commands.help")},
			tgbotapi.BotCommand{Command: "language", Description: i18n.T(lang, "commands.language")},
			tgbotapi.BotCommand{Command: "characters", Description: i18n.T(lang, "commands.characters")},
			tgbotapi.BotCommand{Command: "stats", Description: i18n.T(lang, "commands.stats")},
			tgbotapi.BotCommand{Command: "transactions", Description: i18n.T(lang, "commands.transactions")},
		)
		if _, err := b.api.Request(commands); err != nil {
			log.WithError(err).WithField("lang", lang).Warn("Не удалось выставить команды бота")
		}

		b.setMeta("setMyName", "name", i18n.T(lang, "bot.name"), lang)
		b.setMeta("setMyDescription", "description", i18n.T(lang, "bot.description"), lang)
		b.setMeta("setMyShortDescription", "short_description", i18n.T(lang, "bot.short_description"), lang)
	}
}

func (b *Bot) setMeta(endpoint, field, value, lang string) {
	params := tgbotapi.Params{
		field:           value,
		"language_code": lang,
	}
	if _, err := b.api.MakeRequest(endpoint, params); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"endpoint": endpoint,
			"lang":     lang,
		}).Warn("Не удалось обновить метаданные бота")
	}
}

// NotifyAdminsRestart сообщает администраторам о перезапуске бота.
func (b *Bot) NotifyAdminsRestart(ctx context.Context) {
	admins, err := b.usersService.Admins(ctx)
	if err != nil {
		log.WithError(err).Warn("Не удалось получить список админов")
		return
	}
	for _, admin := range admins {
		b.sender.SendText(ctx, admin.ID, "♻️ Бот перезапущен и готов к работе")
	}
}
