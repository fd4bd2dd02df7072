// Package sentiment реализует клиент индекса Fear & Greed (alternative.me).
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"github.com/skalibog/bpdb/internal/config"
)

// Index значение индекса страха и жадности
type Index struct {
	Value          int
	Classification string
}

// Client клиент API индекса Fear & Greed
type Client struct {
	apiURL  string
	retries int
	http    *http.Client
}

// NewClient создает новый клиент
func NewClient(cfg config.SentimentConfig) *Client {
	return &Client{
		apiURL:  cfg.APIURL,
		retries: cfg.Retries,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

// Fetch запрашивает текущее значение индекса с ограниченными ретраями.
// Пауза между попытками растет до фиксированного потолка.
func (c *Client) Fetch(ctx context.Context) (*Index, error) {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		idx, err := c.fetchOnce(ctx)
		if err == nil {
			return idx, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("индекс Fear & Greed недоступен: %w", lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) (*Index, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса индекса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("неожиданный статус ответа: %d", resp.StatusCode)
	}

	var parsed fngResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("пустой ответ индекса")
	}

	value, err := strconv.Atoi(parsed.Data[0].Value)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга значения индекса: %w", err)
	}
	if value < 0 || value > 100 {
		return nil, fmt.Errorf("значение индекса вне диапазона: %d", value)
	}

	return &Index{
		Value:          value,
		Classification: parsed.Data[0].ValueClassification,
	}, nil
}
