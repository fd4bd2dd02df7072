// Package notifier отвечает за доставку сигналов подписчикам через Telegram.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramClient минимальный клиент Telegram Bot API поверх HTTP
type TelegramClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTelegramClient создает новый клиент Telegram
func NewTelegramClient(token string) *TelegramClient {
	return &TelegramClient{
		baseURL:    fmt.Sprintf("https://api.telegram.org/bot%s", token),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Update входящее обновление Telegram
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message входящее сообщение
type Message struct {
	MessageID int64   `json:"message_id"`
	From      *TgUser `json:"from"`
	Chat      Chat    `json:"chat"`
	Text      string  `json:"text"`
}

// TgUser пользователь Telegram
type TgUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Chat чат Telegram
type Chat struct {
	ID int64 `json:"id"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// SendMessage отправляет текстовое сообщение в чат
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}

	_, err := c.call(ctx, "sendMessage", payload)
	return err
}

// GetUpdates получает входящие обновления long-polling запросом
func (c *TelegramClient) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	payload := map[string]interface{}{
		"offset":          offset,
		"timeout":         timeoutSeconds,
		"allowed_updates": []string{"message"},
	}

	result, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("ошибка разбора обновлений: %w", err)
	}

	return updates, nil
}

// call выполняет метод Bot API с JSON-телом
func (c *TelegramClient) call(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа %s: %w", method, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram API вернул ошибку: %s", parsed.Description)
	}

	return parsed.Result, nil
}
