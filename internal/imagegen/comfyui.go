// Package imagegen — клиент ComfyUI для генерации фотографий персонажа.
//
// Воркфлоу зашит в бинарь как JSON-шаблон, на каждый запрос клонируется
// и заполняется: позитивный промпт, LoRA персонажа, случайный seed.
package imagegen

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"companion-bot/internal/common"
)

//go:embed workflow.json
var workflowTemplate []byte

// Узлы воркфлоу, которые заполняются на каждый запрос
const (
	nodePositivePrompt = "6"
	nodeSaveImage      = "9"
	nodeLoraLoader     = "29"
	nodeSampler        = "30"
)

// Client — клиент HTTP API ComfyUI.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	pollInterval time.Duration
	pollAttempts int
}

// NewClient создаёт клиент ComfyUI.
// baseURL нормализуется до завершающего слэша.
func NewClient(baseURL string, pollInterval time.Duration, pollAttempts int) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
	}
}

type queueRequest struct {
	Prompt   map[string]json.RawMessage `json:"prompt"`
	ClientID string                     `json:"client_id"`
}

type queueResponse struct {
	PromptID string `json:"prompt_id"`
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []imageRef `json:"images"`
	} `json:"outputs"`
}

type imageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// buildWorkflow клонирует шаблон и подставляет параметры запроса.
func buildWorkflow(prompt, loraModel string) (map[string]json.RawMessage, error) {
	var workflow map[string]json.RawMessage
	if err := json.Unmarshal(workflowTemplate, &workflow); err != nil {
		return nil, fmt.Errorf("не удалось разобрать шаблон воркфлоу: %w", err)
	}

	setInput := func(node, key string, value any) error {
		var n map[string]any
		if err := json.Unmarshal(workflow[node], &n); err != nil {
			return fmt.Errorf("узел %s: %w", node, err)
		}
		inputs, ok := n["inputs"].(map[string]any)
		if !ok {
			return fmt.Errorf("узел %s: нет секции inputs", node)
		}
		inputs[key] = value
		raw, err := json.Marshal(n)
		if err != nil {
			return err
		}
		workflow[node] = raw
		return nil
	}

	if err := setInput(nodePositivePrompt, "text", prompt); err != nil {
		return nil, err
	}
	if err := setInput(nodeLoraLoader, "lora_name", loraModel); err != nil {
		return nil, err
	}
	if err := setInput(nodeSampler, "seed", rand.Int63n(1_000_000_000_000_000)); err != nil {
		return nil, err
	}
	return workflow, nil
}

// Generate ставит воркфлоу в очередь, ждёт завершения и скачивает
// готовое изображение. При превышении лимита ожидания возвращает
// common.ErrImageTimeout.
func (c *Client) Generate(ctx context.Context, prompt, loraModel string) ([]byte, error) {
	workflow, err := buildWorkflow(prompt, loraModel)
	if err != nil {
		return nil, err
	}

	promptID, err := c.queue(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("не удалось поставить генерацию в очередь: %w", err)
	}

	log.WithFields(log.Fields{
		"prompt_id": promptID,
		"lora":      loraModel,
	}).Debug("Воркфлоу поставлен в очередь ComfyUI")

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		img, done, err := c.checkHistory(ctx, promptID)
		if err != nil {
			return nil, err
		}
		if done {
			return c.download(ctx, img)
		}
	}

	return nil, common.ErrImageTimeout
}

func (c *Client) queue(ctx context.Context, workflow map[string]json.RawMessage) (string, error) {
	body, err := json.Marshal(queueRequest{
		Prompt:   workflow,
		ClientID: uuid.NewString(),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"prompt", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ComfyUI вернул статус %d: %s", resp.StatusCode, raw)
	}

	var queued queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return "", fmt.Errorf("не удалось разобрать ответ очереди: %w", err)
	}
	if queued.PromptID == "" {
		return "", fmt.Errorf("ComfyUI не вернул prompt_id")
	}
	return queued.PromptID, nil
}

// checkHistory возвращает ссылку на готовое изображение, когда
// воркфлоу завершился. Пока генерация идёт, история пустая.
func (c *Client) checkHistory(ctx context.Context, promptID string) (imageRef, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"history/"+promptID, nil)
	if err != nil {
		return imageRef{}, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return imageRef{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return imageRef{}, false, fmt.Errorf("ComfyUI history вернул статус %d", resp.StatusCode)
	}

	var history map[string]historyEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return imageRef{}, false, fmt.Errorf("не удалось разобрать историю: %w", err)
	}

	entry, ok := history[promptID]
	if !ok {
		return imageRef{}, false, nil
	}
	output, ok := entry.Outputs[nodeSaveImage]
	if !ok || len(output.Images) == 0 {
		return imageRef{}, false, nil
	}
	return output.Images[0], true, nil
}

func (c *Client) download(ctx context.Context, img imageRef) ([]byte, error) {
	imgType := img.Type
	if imgType == "" {
		imgType = "output"
	}

	q := url.Values{}
	q.Set("filename", img.Filename)
	q.Set("subfolder", img.Subfolder)
	q.Set("type", imgType)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"view?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("не удалось скачать изображение: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ComfyUI view вернул статус %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать изображение: %w", err)
	}
	return data, nil
}
