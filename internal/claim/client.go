// Package claim предоставляет клиент внешней операции получения бесплатного билета по предложению.
package claim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotConfigured возвращается, если адрес операции не задан.
var ErrNotConfigured = errors.New("claim client not configured")

// RejectedError описывает отказ внешней операции.
type RejectedError struct {
	StatusCode int
	// Message предназначено для показа пользователю.
	Message string
	// Detail содержит техническую информацию для логов.
	Detail string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("claim rejected (status %d): %s", e.StatusCode, e.Message)
}

// Client вызывает внешнюю операцию claim-free-offer.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient создаёт клиент операции по указанному адресу.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type claimRequest struct {
	OfferID        string `json:"offer_id"`
	SkipMintingFee bool   `json:"skip_minting_fee,omitempty"`
}

// ClaimFreeOffer выполняет операцию от имени пользователя с токеном accessToken.
// Неуспешный ответ возвращается как *RejectedError.
func (c *Client) ClaimFreeOffer(ctx context.Context, accessToken, offerID string, skipMintingFee bool) (map[string]any, error) {
	if c == nil || c.url == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(claimRequest{OfferID: offerID, SkipMintingFee: skipMintingFee})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result map[string]any
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, rejected(resp.StatusCode, result, body)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if _, failed := result["error"]; failed {
		return nil, rejected(resp.StatusCode, result, body)
	}

	return result, nil
}

func rejected(status int, result map[string]any, body []byte) *RejectedError {
	e := &RejectedError{
		StatusCode: status,
		Message:    "Unable to claim this offer",
		Detail:     string(body),
	}
	if msg, ok := result["error"].(string); ok && msg != "" {
		e.Message = msg
	}
	if detail, ok := result["details"].(string); ok && detail != "" {
		e.Detail = detail
	}
	return e
}
