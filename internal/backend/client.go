package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"querai-chat/internal/config"
	"querai-chat/internal/model"
	"querai-chat/internal/utils"
)

// ErrNotConfigured is returned by every call when no base URL is set.
var ErrNotConfigured = errors.New("backend not configured")

// APIError is a non-2xx answer from the backend. Detail carries the
// backend's own explanation when it sent one.
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// DetailOf returns the backend detail carried by err, if any.
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the SQL-generation service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.BackendConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: utils.NewHTTPClient(timeout),
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// CreateChat asks the backend for a new chat id. An empty title is sent as
// null.
func (c *Client) CreateChat(ctx context.Context, userID, title string) (string, error) {
	req := model.BackendCreateRequest{UserID: userID}
	if title != "" {
		req.Title = &title
	}

	body, err := c.do(ctx, http.MethodPost, "/api/chat/create", nil, req)
	if err != nil {
		return "", err
	}

	var resp model.BackendCreateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode create response: %w", err)
	}
	if resp.ChatID == "" {
		return "", fmt.Errorf("create response carried no chat_id")
	}
	return resp.ChatID, nil
}

// SendMessage posts one question and returns the raw response body for
// the normaliser.
func (c *Client) SendMessage(ctx context.Context, chatID, userID, message string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/api/chat/message", nil, model.BackendMessageRequest{
		ChatID:  chatID,
		UserID:  userID,
		Message: message,
	})
}

func (c *Client) DeleteChat(ctx context.Context, chatID, userID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/chat/"+url.PathEscape(chatID), url.Values{"user_id": {userID}}, nil)
	return err
}

func (c *Client) DeleteAllChats(ctx context.Context, userID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/chat/delete_all", url.Values{"user_id": {userID}}, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(body),
			Body:       string(body),
		}
	}
	return body, nil
}

func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"detail", "error"} {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
