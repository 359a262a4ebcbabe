// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки экономики (спайс)
var (
	// ErrInsufficientBalance — недостаточно спайса на счёте.
	// Ожидаемая ошибка: пользователю показываем варианты пополнения.
	ErrInsufficientBalance = errors.New("недостаточно спайса на счёте")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки генерации
var (
	// ErrNoCharacterSelected — у пользователя не выбран персонаж
	ErrNoCharacterSelected = errors.New("персонаж не выбран")
	// ErrGenerationFailed — генерация текста не удалась после всех повторов
	ErrGenerationFailed = errors.New("генерация ответа не удалась")
	// ErrInvalidAIResponse — модель вернула ответ неожиданной формы
	ErrInvalidAIResponse = errors.New("некорректный ответ модели")
	// ErrImageTimeout — генерация изображения не уложилась в лимит опроса
	ErrImageTimeout = errors.New("таймаут генерации изображения")
	// ErrGenerationBusy — для этого пользователя уже идёт генерация
	ErrGenerationBusy = errors.New("генерация уже выполняется")
)

// Ошибки каталога персонажей
var (
	// ErrCharacterNotFound — персонаж не найден или отключён
	ErrCharacterNotFound = errors.New("персонаж не найден")
)
