// Package spice управляет виртуальной валютой «спайс» 🌶.
// models.go описывает журнал транзакций.
//
// Журнал append-only: транзакции никогда не обновляются и не удаляются,
// баланс пользователя — это ВСЕГДА сумма amount по его транзакциям.
// Кэшированного поля баланса нет нигде.
package spice

import "time"

// Type — тип транзакции. Закрытый перечислимый набор:
// отчёты считают по типам, поэтому новые типы добавляем только сюда.
type Type string

const (
	TypeInitialBonus    Type = "initial_bonus"    // Стартовый бонус при первом появлении
	TypeTextResponse    Type = "text_response"    // Списание за текстовый ответ
	TypeImageGeneration Type = "image_generation" // Списание за сгенерированное фото
	TypeVideoGeneration Type = "video_generation" // Списание за видео
	TypeAdminAdjustment Type = "admin_adjustment" // Ручная корректировка админом
	TypeDailyBonus      Type = "daily_bonus"      // Ежедневный бонус
	TypeStarsDeposit    Type = "stars_deposit"    // Пополнение через Telegram Stars
	TypeInviterBonus    Type = "inviter_bonus"    // Бонус пригласившему
	TypeInviteeBonus    Type = "invitee_bonus"    // Бонус приглашённому
)

// Transaction — одна запись журнала. Неизменяема после создания.
// amount со знаком: начисления положительные, списания отрицательные.
type Transaction struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Amount    int64     `db:"amount"`
	Type      Type      `db:"transaction_type"`
	CreatedAt time.Time `db:"created_at"`
}
