// Package i18n — локализация строк интерфейса бота.
// Таблицы строк встроены в бинарник (en/ru), ключи вида "messages.stats".
// Подстановки — обычный fmt.Sprintf, порядок аргументов фиксирован ключом.
package i18n

import "fmt"

// DefaultLang используется при неизвестном языке пользователя.
const DefaultLang = "en"

// Langs — поддерживаемые языки в порядке показа.
var Langs = []string{"en", "ru"}

// T возвращает локализованную строку по ключу.
// Если ключа нет в выбранном языке — берём английский,
// если нет и там — возвращаем сам ключ (видно в интерфейсе = баг).
func T(lang, key string, args ...any) string {
	table, ok := tables[lang]
	if !ok {
		table = tables[DefaultLang]
	}
	tmpl, ok := table[key]
	if !ok {
		tmpl, ok = tables[DefaultLang][key]
		if !ok {
			return key
		}
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Has сообщает, поддерживается ли язык.
func Has(lang string) bool {
	_, ok := tables[lang]
	return ok
}

var tables = map[string]map[string]string{
	"en": {
		"bot.name":              "AI Companion",
		"bot.description":       "Chat with an AI companion: pick a character, talk, get photos and build sympathy.",
		"bot.short_description": "Your AI companion in Telegram",

		"commands.start":        "Start over",
		"commands.help":         "How the bot works",
		"commands.language":     "Change language",
		"commands.characters":   "Choose a character",
		"commands.stats":        "Sympathy and balance",
		"commands.transactions": "Spice history",

		"messages.select_language":     "🌍 Choose your language:",
		"messages.character_selection": "💕 %s\n\n%s",
		"messages.welcome_back":        "Welcome back! %s missed you. What shall we do?",
		"messages.stats":               "📊 <b>Your stats</b>\n\nCharacter: %s\nSympathy: %d/100 %s\nBalance: %d 🌶",
		"messages.insufficient_spice":  "😔 <b>Not enough spice</b>\n\nYour balance: %d 🌶\nText reply costs %d 🌶, photo %d 🌶, video %d 🌶.\n\nTop up or invite a friend:",
		"messages.payment_successful":  "✅ Payment received! +%d 🌶\nYour balance: %d 🌶",
		"messages.inviter_reward":      "🎁 +%d 🌶 for inviting %s! Balance: %d 🌶",
		"messages.invitee_reward":      "🎁 Welcome bonus +%d 🌶 from %s! Balance: %d 🌶",
		"messages.try_again":           "😵 Something went wrong, the reply did not come through. Please try again.",
		"messages.help":                "Just write a message — your character will answer. Commands:\n/characters — choose a character\n/language — change language\n/stats — sympathy and balance\n/transactions — spice history",
		"messages.transactions_empty":  "📋 No transactions yet",
		"messages.transactions_header": "📋 Last %d transactions:",

		"buttons.select_character":         "Chat with %s 💕",
		"buttons.continue_chatting":        "💬 Continue chatting",
		"buttons.choose_another_character": "👥 Choose another character",
		"buttons.clear_history_restart":    "🗑 Clear history and restart",
		"buttons.invite_friend":            "🎁 Invite a friend (+%d 🌶)",

		"status.language_set":                "Language set!",
		"status.character_selected":          "%s is waiting for you 💕",
		"status.continue_chatting_confirmed": "Go on, write something!",
		"status.history_cleared":             "History cleared, starting fresh!",

		"payment.invoice_description": "%d spice for %d Telegram Stars",
		"share.invite_text":           "💕 Chat with an AI companion and get bonuses!\n",

		"errors.unknown_command": "Unknown command: %s",
	},
	"ru": {
		"bot.name":              "AI Собеседница",
		"bot.description":       "Общайся с AI-собеседницей: выбери персонажа, переписывайся, получай фото и развивай симпатию.",
		"bot.short_description": "Твоя AI-собеседница в Telegram",

		"commands.start":        "Начать сначала",
		"commands.help":         "Как работает бот",
		"commands.language":     "Сменить язык",
		"commands.characters":   "Выбрать персонажа",
		"commands.stats":        "Симпатия и баланс",
		"commands.transactions": "История спайса",

		"messages.select_language":     "🌍 Выбери язык:",
		"messages.character_selection": "💕 %s\n\n%s",
		"messages.welcome_back":        "С возвращением! %s скучала. Что делаем?",
		"messages.stats":               "📊 <b>Твоя статистика</b>\n\nПерсонаж: %s\nСимпатия: %d/100 %s\nБаланс: %d 🌶",
		"messages.insufficient_spice":  "😔 <b>Недостаточно спайса</b>\n\nТвой баланс: %d 🌶\nТекстовый ответ стоит %d 🌶, фото %d 🌶, видео %d 🌶.\n\nПополни баланс или пригласи друга:",
		"messages.payment_successful":  "✅ Оплата получена! +%d 🌶\nТвой баланс: %d 🌶",
		"messages.inviter_reward":      "🎁 +%d 🌶 за приглашение %s! Баланс: %d 🌶",
		"messages.invitee_reward":      "🎁 Приветственный бонус +%d 🌶 от %s! Баланс: %d 🌶",
		"messages.try_again":           "😵 Что-то пошло не так, ответ не дошёл. Попробуй ещё раз.",
		"messages.help":                "Просто напиши сообщение — персонаж ответит. Команды:\n/characters — выбрать персонажа\n/language — сменить язык\n/stats — симпатия и баланс\n/transactions — история спайса",
		"messages.transactions_empty":  "📋 У тебя пока нет транзакций",
		"messages.transactions_header": "📋 Последние %d транзакций:",

		"buttons.select_character":         "Общаться с %s 💕",
		"buttons.continue_chatting":        "💬 Продолжить общение",
		"buttons.choose_another_character": "👥 Выбрать другого персонажа",
		"buttons.clear_history_restart":    "🗑 Очистить историю и начать заново",
		"buttons.invite_friend":            "🎁 Пригласить друга (+%d 🌶)",

		"status.language_set":                "Язык установлен!",
		"status.character_selected":          "%s уже ждёт тебя 💕",
		"status.continue_chatting_confirmed": "Давай, напиши что-нибудь!",
		"status.history_cleared":             "История очищена, начинаем заново!",

		"payment.invoice_description": "%d спайса за %d Telegram Stars",
		"share.invite_text":           "💕 Пообщайся с AI-собеседницей и получи бонусы!\n",

		"errors.unknown_command": "Неизвестная команда: %s",
	},
}
