package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-bot/internal/common"
	"companion-bot/internal/config"
	"companion-bot/internal/features/characters"
	"companion-bot/internal/features/history"
	"companion-bot/internal/features/spice"
	"companion-bot/internal/features/users"
	"companion-bot/internal/generation"
)

// --- фейки зависимостей оркестратора ---

type fakeGenerator struct {
	mu        sync.Mutex
	responses []*generation.Response
	errs      []error
	calls     int
	block     chan struct{} // если задан, Generate ждёт закрытия
}

func (g *fakeGenerator) Generate(ctx context.Context, _ []generation.Message) (*generation.Response, error) {
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return g.responses[len(g.responses)-1], nil
}

type fakeImages struct {
	data []byte
	err  error
}

func (f *fakeImages) Generate(context.Context, string, string) ([]byte, error) {
	return f.data, f.err
}

type fakePhotos struct{ url string }

func (f *fakePhotos) UploadPhoto([]byte, string) (string, error) { return f.url, nil }

type fakeLedger struct {
	mu      sync.Mutex
	balance int64
	debits  []spice.Type
}

func (l *fakeLedger) CanAfford(_ context.Context, _ int64, amount int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance >= amount, nil
}

func (l *fakeLedger) Debit(_ context.Context, _ int64, amount int64, txType spice.Type) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance < amount {
		return common.ErrInsufficientBalance
	}
	l.balance -= amount
	l.debits = append(l.debits, txType)
	return nil
}

type fakeThreads struct{ thread []*history.Message }

func (f *fakeThreads) Thread(context.Context, int64, int64) ([]*history.Message, error) {
	return f.thread, nil
}

type fakeCharacters struct{ character *characters.Character }

func (f *fakeCharacters) GetByID(context.Context, int64) (*characters.Character, error) {
	return f.character, nil
}

type fakeSender struct {
	mu            sync.Mutex
	actions       int
	texts         []*generation.Response
	photos        []string
	insufficients int
}

func (s *fakeSender) ChatAction(int64, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions++
	return nil
}

func (s *fakeSender) SendResponse(_ context.Context, _ *users.User, _ *characters.Character, resp *generation.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, resp)
	return nil
}

func (s *fakeSender) SendResponsePhoto(_ context.Context, _ *users.User, _ *characters.Character, resp *generation.Response, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = append(s.photos, url)
	return nil
}

func (s *fakeSender) NotifyInsufficientSpice(context.Context, *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insufficients++
	return nil
}

// --- сборка сервиса ---

type fixture struct {
	service *Service
	sender  *fakeSender
	ledger  *fakeLedger
	gen     *fakeGenerator
	user    *users.User
}

func newFixture(balance int64, gen *fakeGenerator, images *fakeImages) *fixture {
	cfg := &config.Config{
		SpiceTextResponseCost:    1,
		SpiceImageGenerationCost: 30,
		GenerationMaxAttempts:    3,
		GenerationRetryDelay:     time.Millisecond,
		TypingInterval:           time.Hour,
	}
	sender := &fakeSender{}
	ledger := &fakeLedger{balance: balance}
	charID := int64(1)
	svc := NewService(
		cfg,
		sender,
		gen,
		images,
		&fakePhotos{url: "https://cdn.test/photo.png"},
		ledger,
		&fakeThreads{},
		&fakeCharacters{character: testCharacter()},
	)
	return &fixture{
		service: svc,
		sender:  sender,
		ledger:  ledger,
		gen:     gen,
		user:    &users.User{ID: 10, SelectedCharacterID: &charID, SelectedLanguage: "en"},
	}
}

func textResponse() *generation.Response {
	return &generation.Response{Answer: "Привет!", Sympathy: 10, ReplySuggestions: []string{"И тебе привет"}}
}

func photoResponse() *generation.Response {
	return &generation.Response{Answer: "Смотри!", Sympathy: 40, PhotoPrompt: "young woman at a bar"}
}

// --- сценарии ---

func TestRespondSendsTextAndChargesOnce(t *testing.T) {
	f := newFixture(5, &fakeGenerator{responses: []*generation.Response{textResponse()}}, &fakeImages{})

	require.NoError(t, f.service.Respond(context.Background(), f.user))

	require.Len(t, f.sender.texts, 1)
	assert.Equal(t, "Привет!", f.sender.texts[0].Answer)
	assert.Equal(t, []spice.Type{spice.TypeTextResponse}, f.ledger.debits)
	assert.Equal(t, int64(4), f.ledger.balance)
	assert.Zero(t, f.sender.insufficients)
}

func TestRespondNoCharacterSelected(t *testing.T) {
	f := newFixture(5, &fakeGenerator{responses: []*generation.Response{textResponse()}}, &fakeImages{})
	f.user.SelectedCharacterID = nil

	err := f.service.Respond(context.Background(), f.user)
	assert.ErrorIs(t, err, common.ErrNoCharacterSelected)
	assert.Empty(t, f.sender.texts)
}

func TestRespondInsufficientForText(t *testing.T) {
	f := newFixture(0, &fakeGenerator{responses: []*generation.Response{textResponse()}}, &fakeImages{})

	require.NoError(t, f.service.Respond(context.Background(), f.user))

	assert.Empty(t, f.sender.texts)
	assert.Equal(t, 1, f.sender.insufficients)
	assert.Zero(t, f.gen.calls, "генерация не запускается без спайса")
}

func TestRespondProactiveInsufficientIsSilent(t *testing.T) {
	f := newFixture(0, &fakeGenerator{responses: []*generation.Response{textResponse()}}, &fakeImages{})

	require.NoError(t, f.service.RespondProactive(context.Background(), f.user))

	assert.Empty(t, f.sender.texts)
	assert.Zero(t, f.sender.insufficients, "инициативное сообщение не навязывает пополнение")
}

func TestRespondPhotoAffordable(t *testing.T) {
	f := newFixture(50, &fakeGenerator{responses: []*generation.Response{photoResponse()}}, &fakeImages{data: []byte{1, 2, 3}})

	require.NoError(t, f.service.Respond(context.Background(), f.user))

	require.Len(t, f.sender.photos, 1)
	assert.Equal(t, "https://cdn.test/photo.png", f.sender.photos[0])
	assert.Empty(t, f.sender.texts)
	assert.Equal(t, []spice.Type{spice.TypeImageGeneration}, f.ledger.debits)
	assert.Equal(t, int64(20), f.ledger.balance)
}

func TestRespondPhotoUnaffordableDegradesToText(t *testing.T) {
	// Спайса на текст хватает, на фото нет: текст уходит, списывается
	// стоимость текста, пользователь получает предложение пополнить
	f := newFixture(5, &fakeGenerator{responses: []*generation.Response{photoResponse()}}, &fakeImages{data: []byte{1}})

	require.NoError(t, f.service.Respond(context.Background(), f.user))

	assert.Empty(t, f.sender.photos)
	require.Len(t, f.sender.texts, 1)
	assert.Equal(t, []spice.Type{spice.TypeTextResponse}, f.ledger.debits)
	assert.Equal(t, int64(4), f.ledger.balance)
	assert.Equal(t, 1, f.sender.insufficients)
}

func TestRespondImageFailureDegradesToTextSilently(t *testing.T) {
	f := newFixture(50, &fakeGenerator{responses: []*generation.Response{photoResponse()}}, &fakeImages{err: common.ErrImageTimeout})

	require.NoError(t, f.service.Respond(context.Background(), f.user))

	assert.Empty(t, f.sender.photos)
	require.Len(t, f.sender.texts, 1)
	assert.Equal(t, []spice.Type{spice.TypeTextResponse}, f.ledger.debits)
	assert.Zero(t, f.sender.insufficients)
}

func TestRespondRetriesThenSucceedsWithoutDoubleCharge(t *testing.T) {
	gen := &fakeGenerator{
		errs:      []error{errors.New("boom"), errors.New("boom")},
		responses: []*generation.Response{nil, nil, textResponse()},
	}
	f := newFixture(5, gen, &fakeImages{})

	require.NoError(t, f.service.Respond(context.Background(), f.user))

	assert.Equal(t, 3, gen.calls)
	require.Len(t, f.sender.texts, 1)
	assert.Equal(t, []spice.Type{spice.TypeTextResponse}, f.ledger.debits, "одно списание несмотря на повторы")
}

func TestRespondGivesUpAfterMaxAttempts(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	f := newFixture(5, gen, &fakeImages{})

	err := f.service.Respond(context.Background(), f.user)

	assert.ErrorIs(t, err, common.ErrGenerationFailed)
	assert.Equal(t, 3, gen.calls)
	assert.Empty(t, f.sender.texts)
	assert.Empty(t, f.ledger.debits, "без отправки нет списания")
}

func TestRespondRejectsConcurrentGenerationForSameUser(t *testing.T) {
	block := make(chan struct{})
	gen := &fakeGenerator{responses: []*generation.Response{textResponse()}, block: block}
	f := newFixture(5, gen, &fakeImages{})

	done := make(chan error, 1)
	go func() {
		done <- f.service.Respond(context.Background(), f.user)
	}()

	// Ждём, пока первая генерация займёт слот
	require.Eventually(t, func() bool {
		f.service.mu.Lock()
		defer f.service.mu.Unlock()
		_, busy := f.service.inflight[f.user.ID]
		return busy
	}, time.Second, time.Millisecond)

	err := f.service.Respond(context.Background(), f.user)
	assert.ErrorIs(t, err, common.ErrGenerationBusy)

	close(block)
	require.NoError(t, <-done)
	require.Len(t, f.sender.texts, 1)
}
