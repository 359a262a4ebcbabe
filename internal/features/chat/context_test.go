package chat

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-bot/internal/features/characters"
	"companion-bot/internal/features/history"
	"companion-bot/internal/generation"
)

func testCharacter() *characters.Character {
	return &characters.Character{
		ID:   1,
		Slug: "anfisa",
		Name: map[string]string{"en": "Anfisa", "ru": "Анфиса"},
		Description: map[string]string{
			"en": "27-year-old bartender with emerald eyes.",
		},
		Appearance: "green eyes, wavy brown hair",
	}
}

// userMsg — входящее сообщение пользователя.
func userMsg(date int64, text string) *history.Message {
	return &history.Message{
		ChatID: 10,
		Date:   date,
		Payload: tgbotapi.Message{
			Text: text,
			From: &tgbotapi.User{ID: 10},
		},
	}
}

// botMsg — реплика персонажа с результатом генерации.
func botMsg(date int64, text string, resp *generation.Response) *history.Message {
	return &history.Message{
		ChatID: 10,
		Date:   date,
		Payload: tgbotapi.Message{
			Text: text,
			From: &tgbotapi.User{ID: 99, IsBot: true},
		},
		AIResponse: resp,
	}
}

// newestFirst разворачивает хронологический список в порядок хранения.
func newestFirst(msgs ...*history.Message) []*history.Message {
	out := make([]*history.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}

func systemEntries(msgs []generation.Message) []string {
	var out []string
	for _, m := range msgs[1:] { // без головного системного промпта
		if m.Role == generation.RoleSystem {
			out = append(out, m.Content)
		}
	}
	return out
}

func TestBuildContextChronologicalOrderWithLeadingSystemPrompt(t *testing.T) {
	thread := newestFirst(
		userMsg(100, "привет"),
		botMsg(110, "Привет!", &generation.Response{Answer: "Привет!", Sympathy: 5}),
		userMsg(120, "как дела?"),
	)

	msgs := BuildContext(testCharacter(), "ru", thread)

	require.GreaterOrEqual(t, len(msgs), 4)
	assert.Equal(t, generation.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `You are "Анфиса"`)
	assert.Contains(t, msgs[0].Content, "Reply in the user's language: RU")

	assert.Equal(t, generation.RoleUser, msgs[1].Role)
	assert.Equal(t, "привет", msgs[1].Content)
	assert.Equal(t, generation.RoleAssistant, msgs[2].Role)
	assert.Equal(t, generation.RoleUser, msgs[3].Role)
	assert.Equal(t, "как дела?", msgs[3].Content)
}

func TestBuildContextTimeGapAnnotation(t *testing.T) {
	// Паузы: 30с (ниже порога 45с — без аннотации) и 90с (аннотация в минутах)
	thread := newestFirst(
		userMsg(0, "раз"),
		userMsg(30, "два"),
		userMsg(120, "три"),
	)

	msgs := BuildContext(testCharacter(), "en", thread)

	var gaps []int
	for i, m := range msgs {
		if m.Role == generation.RoleSystem && strings.Contains(m.Content, "passed]") {
			gaps = append(gaps, i)
		}
	}
	require.Len(t, gaps, 1, "ровно одна аннотация паузы")
	assert.Equal(t, "[1 minute passed]", msgs[gaps[0]].Content)

	// Аннотация стоит СРАЗУ ПЕРЕД сообщением с date=120
	assert.Equal(t, "три", msgs[gaps[0]+1].Content)
}

func TestBuildContextGapExactlyAtThresholdNotAnnotated(t *testing.T) {
	thread := newestFirst(
		userMsg(0, "раз"),
		userMsg(45, "два"), // ровно 45с — порог строгий
	)

	msgs := BuildContext(testCharacter(), "en", thread)
	assert.Empty(t, systemEntries(msgs))
}

func TestBuildContextSympathyChangeAnnotations(t *testing.T) {
	// Симпатии реплик: 5, 5, 40, 40, 75 → ровно две аннотации (+35 и +35)
	sympathies := []int{5, 5, 40, 40, 75}
	var chrono []*history.Message
	for i, s := range sympathies {
		chrono = append(chrono,
			userMsg(int64(i*20), "сообщение"),
			botMsg(int64(i*20+1), "ответ", &generation.Response{Answer: "ответ", Sympathy: s}),
		)
	}

	msgs := BuildContext(testCharacter(), "en", newestFirst(chrono...))

	var changes []string
	for _, c := range systemEntries(msgs) {
		if strings.Contains(c, "Sympathy changed") {
			changes = append(changes, c)
		}
	}
	require.Len(t, changes, 2)
	assert.Equal(t, "[Sympathy changed: +35, now at 40/100]", changes[0])
	assert.Equal(t, "[Sympathy changed: +35, now at 75/100]", changes[1])

	// Текущая симпатия в системном промпте — последняя известная
	assert.Contains(t, msgs[0].Content, "Current sympathy level: 75")
}

func TestBuildContextDefaultSympathyWhenHistoryEmpty(t *testing.T) {
	msgs := BuildContext(testCharacter(), "en", nil)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "Current sympathy level: 5")
}

func TestBuildContextSkipsTextlessMessages(t *testing.T) {
	sticker := &history.Message{
		ChatID:  10,
		Date:    50,
		Payload: tgbotapi.Message{From: &tgbotapi.User{ID: 10}}, // ни текста, ни подписи
	}
	thread := newestFirst(
		userMsg(0, "привет"),
		sticker,
		userMsg(60, "ты тут?"),
	)

	msgs := BuildContext(testCharacter(), "en", thread)

	for _, m := range msgs {
		assert.NotEmpty(t, m.Content)
	}
	// Пауза считается от последнего ТЕКСТОВОГО сообщения (0 → 60 = 60с > 45с)
	entries := systemEntries(msgs)
	require.Len(t, entries, 1)
	assert.Equal(t, "[1 minute passed]", entries[0])
}

func TestBuildContextPhotoAnnotation(t *testing.T) {
	resp := &generation.Response{
		Answer:      "Смотри, что у меня тут",
		Sympathy:    5,
		PhotoPrompt: "young woman at a bar, warm lighting",
	}
	thread := newestFirst(
		userMsg(0, "покажи фото"),
		botMsg(10, "Смотри, что у меня тут", resp),
	)

	msgs := BuildContext(testCharacter(), "en", thread)

	entries := systemEntries(msgs)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "The assistant attached a photo that shows")
	assert.Contains(t, entries[0], "young woman at a bar")
}

func TestBuildContextCaptionFallsBackAsText(t *testing.T) {
	photoFromUser := &history.Message{
		ChatID: 10,
		Date:   0,
		Payload: tgbotapi.Message{
			Caption: "это я на море",
			From:    &tgbotapi.User{ID: 10},
		},
	}

	msgs := BuildContext(testCharacter(), "en", newestFirst(photoFromUser))
	require.Len(t, msgs, 2)
	assert.Equal(t, generation.RoleUser, msgs[1].Role)
	assert.Equal(t, "это я на море", msgs[1].Content)
}
