// service.go — оркестратор ответа персонажа: единая точка, через которую
// проходят и ответы на входящие сообщения, и проактивные «первые шаги».
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"companion-bot/internal/common"
	"companion-bot/internal/config"
	"companion-bot/internal/features/characters"
	"companion-bot/internal/features/history"
	"companion-bot/internal/features/spice"
	"companion-bot/internal/features/users"
	"companion-bot/internal/generation"
)

// Индикаторы активности чата
const (
	ActionTyping      = "typing"
	ActionUploadPhoto = "upload_photo"
)

// Generator — генерация текстового ответа по контексту диалога.
type Generator interface {
	Generate(ctx context.Context, messages []generation.Message) (*generation.Response, error)
}

// ImageGenerator — генерация изображения по промпту и LoRA персонажа.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, loraModel string) ([]byte, error)
}

// PhotoUploader — публикация сгенерированного фото, возвращает URL.
type PhotoUploader interface {
	UploadPhoto(data []byte, contentType string) (string, error)
}

// Ledger — операции со спайсом, нужные оркестратору.
type Ledger interface {
	CanAfford(ctx context.Context, userID int64, amount int64) (bool, error)
	Debit(ctx context.Context, userID int64, amount int64, txType spice.Type) error
}

// ThreadStore — чтение истории треда.
type ThreadStore interface {
	Thread(ctx context.Context, chatID, characterID int64) ([]*history.Message, error)
}

// CharacterStore — каталог персонажей.
type CharacterStore interface {
	GetByID(ctx context.Context, id int64) (*characters.Character, error)
}

// Sender — транспортный слой. Реализация (адаптер бота) отправляет
// сообщение в Telegram И сохраняет его в историю треда.
type Sender interface {
	// ChatAction показывает индикатор активности ("печатает...")
	ChatAction(chatID int64, action string) error
	// SendResponse отправляет текстовый ответ персонажа с подсказками
	SendResponse(ctx context.Context, user *users.User, character *characters.Character, resp *generation.Response) error
	// SendResponsePhoto отправляет фото с ответом в подписи
	SendResponsePhoto(ctx context.Context, user *users.User, character *characters.Character, resp *generation.Response, photoURL string) error
	// NotifyInsufficientSpice показывает баланс и варианты пополнения
	NotifyInsufficientSpice(ctx context.Context, user *users.User) error
}

// Service — оркестратор ответа персонажа.
type Service struct {
	cfg        *config.Config
	sender     Sender
	generator  Generator
	images     ImageGenerator
	photos     PhotoUploader
	ledger     Ledger
	threads    ThreadStore
	characters CharacterStore

	// Защита от параллельных генераций для одного пользователя:
	// пока идёт одна, вторая не начинается.
	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewService(
	cfg *config.Config,
	sender Sender,
	generator Generator,
	images ImageGenerator,
	photos PhotoUploader,
	ledger Ledger,
	threads ThreadStore,
	characterStore CharacterStore,
) *Service {
	return &Service{
		cfg:        cfg,
		sender:     sender,
		generator:  generator,
		images:     images,
		photos:     photos,
		ledger:     ledger,
		threads:    threads,
		characters: characterStore,
		inflight:   make(map[int64]struct{}),
	}
}

// Respond генерирует и отправляет ответ персонажа на последнее сообщение
// пользователя. При нехватке спайса пользователь получает сообщение
// с вариантами пополнения.
//
// Возвращает common.ErrNoCharacterSelected, если персонаж не выбран
// (обработчик покажет карусель), и common.ErrGenerationBusy, если для
// пользователя уже идёт генерация.
func (s *Service) Respond(ctx context.Context, user *users.User) error {
	return s.respond(ctx, user, false)
}

// RespondProactive — «первый шаг» персонажа по решению сканера.
// Отличие от Respond: при нехватке спайса молча пропускаем, навязывать
// пополнение инициативным сообщением нельзя.
func (s *Service) RespondProactive(ctx context.Context, user *users.User) error {
	return s.respond(ctx, user, true)
}

func (s *Service) respond(ctx context.Context, user *users.User, proactive bool) error {
	if !user.HasCharacter() {
		return common.ErrNoCharacterSelected
	}

	if !s.acquire(user.ID) {
		return common.ErrGenerationBusy
	}
	defer s.release(user.ID)

	log := logrus.WithFields(logrus.Fields{
		"user_id":      user.ID,
		"character_id": *user.SelectedCharacterID,
		"proactive":    proactive,
	})

	canAfford, err := s.ledger.CanAfford(ctx, user.ID, s.cfg.SpiceTextResponseCost)
	if err != nil {
		return fmt.Errorf("не удалось проверить баланс: %w", err)
	}
	if !canAfford {
		if proactive {
			log.Debug("Пропуск первого шага: не хватает спайса")
			return nil
		}
		return s.sender.NotifyInsufficientSpice(ctx, user)
	}

	character, err := s.characters.GetByID(ctx, *user.SelectedCharacterID)
	if err != nil {
		return fmt.Errorf("не удалось загрузить персонажа: %w", err)
	}

	thread, err := s.threads.Thread(ctx, user.ID, character.ID)
	if err != nil {
		return fmt.Errorf("не удалось загрузить историю: %w", err)
	}

	messages := BuildContext(character, user.Lang(), thread)

	resp, err := s.generateWithRetry(ctx, user.ID, messages)
	if err != nil {
		return err
	}

	// Фото в ответе: пробуем сгенерировать и опубликовать.
	// Любой сбой на этом пути деградирует до текстового ответа.
	photoURL := ""
	if resp.HasPhoto() {
		photoURL = s.generatePhoto(ctx, user, character, resp)
	}

	if photoURL != "" {
		affordImage, err := s.ledger.CanAfford(ctx, user.ID, s.cfg.SpiceImageGenerationCost)
		if err != nil {
			return fmt.Errorf("не удалось проверить баланс: %w", err)
		}
		if affordImage {
			if err := s.sender.SendResponsePhoto(ctx, user, character, resp, photoURL); err != nil {
				return fmt.Errorf("не удалось отправить фото: %w", err)
			}
			return s.charge(ctx, user.ID, s.cfg.SpiceImageGenerationCost, spice.TypeImageGeneration)
		}

		// Фото готово, но платить за него нечем: отдаём текст
		// и показываем варианты пополнения.
		if err := s.sender.SendResponse(ctx, user, character, resp); err != nil {
			return fmt.Errorf("не удалось отправить ответ: %w", err)
		}
		if err := s.charge(ctx, user.ID, s.cfg.SpiceTextResponseCost, spice.TypeTextResponse); err != nil {
			return err
		}
		return s.sender.NotifyInsufficientSpice(ctx, user)
	}

	if err := s.sender.SendResponse(ctx, user, character, resp); err != nil {
		return fmt.Errorf("не удалось отправить ответ: %w", err)
	}
	return s.charge(ctx, user.ID, s.cfg.SpiceTextResponseCost, spice.TypeTextResponse)
}

// generateWithRetry — генерация с ограниченным числом повторов.
// Индикатор "печатает..." держится всё время генерации.
func (s *Service) generateWithRetry(ctx context.Context, chatID int64, messages []generation.Message) (*generation.Response, error) {
	stop := s.keepTyping(ctx, chatID, ActionTyping)
	defer stop()

	delay := s.cfg.GenerationRetryDelay
	var lastErr error

	for attempt := 1; attempt <= s.cfg.GenerationMaxAttempts; attempt++ {
		resp, err := s.generator.Generate(ctx, messages)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		logrus.WithError(err).WithFields(logrus.Fields{
			"chat_id": chatID,
			"attempt": attempt,
		}).Warn("Сбой генерации ответа")

		if attempt == s.cfg.GenerationMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%w: %v", common.ErrGenerationFailed, lastErr)
}

// generatePhoto генерирует и публикует фото. Возвращает пустую строку
// при любом сбое: фото — необязательная часть ответа.
func (s *Service) generatePhoto(ctx context.Context, user *users.User, character *characters.Character, resp *generation.Response) string {
	stop := s.keepTyping(ctx, user.ID, ActionUploadPhoto)
	defer stop()

	log := logrus.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"character": character.Slug,
	})

	// Черты внешности персонажа дописываются к каждому промпту,
	// иначе фото от сообщения к сообщению "плывут"
	prompt := resp.PhotoPrompt
	if character.Appearance != "" {
		prompt += ", " + character.Appearance
	}

	data, err := s.images.Generate(ctx, prompt, character.LoraModel())
	if err != nil {
		if errors.Is(err, common.ErrImageTimeout) {
			log.Warn("Генерация фото не уложилась в лимит ожидания")
		} else {
			log.WithError(err).Error("Сбой генерации фото")
		}
		return ""
	}

	url, err := s.photos.UploadPhoto(data, "image/png")
	if err != nil {
		log.WithError(err).Error("Не удалось загрузить фото в хранилище")
		return ""
	}
	return url
}

// keepTyping показывает индикатор активности и обновляет его каждые
// несколько секунд, пока не вызван stop.
func (s *Service) keepTyping(ctx context.Context, chatID int64, action string) (stop func()) {
	tickerCtx, cancel := context.WithCancel(ctx)

	if err := s.sender.ChatAction(chatID, action); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Debug("Не удалось показать индикатор активности")
	}

	go func() {
		ticker := time.NewTicker(s.cfg.TypingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-tickerCtx.Done():
				return
			case <-ticker.C:
				if err := s.sender.ChatAction(chatID, action); err != nil {
					logrus.WithError(err).WithField("chat_id", chatID).Debug("Не удалось обновить индикатор активности")
				}
			}
		}
	}()

	return cancel
}

func (s *Service) charge(ctx context.Context, userID, amount int64, txType spice.Type) error {
	if err := s.ledger.Debit(ctx, userID, amount, txType); err != nil {
		// Списание после отправки: баланс мог утечь в ноль между
		// проверкой и списанием. Ответ уже у пользователя, поэтому
		// только логируем.
		if errors.Is(err, common.ErrInsufficientBalance) {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"amount":  amount,
				"type":    txType,
			}).Warn("Баланс закончился между проверкой и списанием")
			return nil
		}
		return fmt.Errorf("не удалось списать спайс: %w", err)
	}
	return nil
}

func (s *Service) acquire(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[userID]; busy {
		return false
	}
	s.inflight[userID] = struct{}{}
	return true
}

func (s *Service) release(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, userID)
}
