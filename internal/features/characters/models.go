// Package characters — каталог персонажей.
// models.go описывает карточку персонажа.
//
// Каталог статичен в рантайме: единственная запись — идемпотентный
// посев дефолтных персонажей при старте.
package characters

import "time"

// Character — карточка персонажа.
// Имя и описание локализованы: map язык → строка.
type Character struct {
	ID          int64             `db:"id"`
	Slug        string            `db:"slug"` // также имя LoRA-модели для генерации фото
	Name        map[string]string `db:"name"`
	Description map[string]string `db:"description"`
	// Постоянные черты внешности — дописываются к каждому фото-промпту
	Appearance string    `db:"appearance"`
	PhotoURL   string    `db:"photo_url"`
	VideoURL   string    `db:"video_url"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
}

// GetName возвращает имя на языке lang с фолбэком на английский.
func (c *Character) GetName(lang string) string {
	if name, ok := c.Name[lang]; ok && name != "" {
		return name
	}
	if name, ok := c.Name["en"]; ok && name != "" {
		return name
	}
	return "—"
}

// GetDescription возвращает описание на языке lang с фолбэком на английский.
func (c *Character) GetDescription(lang string) string {
	if d, ok := c.Description[lang]; ok && d != "" {
		return d
	}
	if d, ok := c.Description["en"]; ok && d != "" {
		return d
	}
	return "—"
}

// LoraModel — имя файла LoRA-модели для ComfyUI.
func (c *Character) LoraModel() string {
	return c.Slug + ".safetensors"
}
