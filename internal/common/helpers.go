// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование временных промежутков для контекста модели
// и форматирование дат для истории транзакций.
package common

import (
	"fmt"
	"time"
)

// FormatTimeGap описывает промежуток времени в самой крупной подходящей
// единице (дни > часы > минуты > секунды) с английской плюрализацией.
// Строка уходит в системный контекст модели, поэтому всегда на английском.
//
// Примеры:
//
//	FormatTimeGap(50)    → "50 seconds"
//	FormatTimeGap(90)    → "1 minute"
//	FormatTimeGap(7200)  → "2 hours"
//	FormatTimeGap(90000) → "1 day"
func FormatTimeGap(seconds int64) string {
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%d day%s", days, englishPlural(days))
	case hours > 0:
		return fmt.Sprintf("%d hour%s", hours, englishPlural(hours))
	case minutes > 0:
		return fmt.Sprintf("%d minute%s", minutes, englishPlural(minutes))
	default:
		return fmt.Sprintf("%d seconds", seconds)
	}
}

func englishPlural(n int64) string {
	if n > 1 {
		return "s"
	}
	return ""
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется для отображения дат транзакций.
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// FormatSigned добавляет явный знак к числу: "+35" или "-12".
// Нужно для аннотаций изменения симпатии в контексте модели.
func FormatSigned(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}
