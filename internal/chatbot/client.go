package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ripplehq/ripple-backend/internal/domain"
)

// APIClient drives one bot identity through the public HTTP API. The
// simulator never touches the database or the queue directly; whatever a
// phone client can do is all a bot can do.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// SignToken mints the bot's bearer token with the shared verification
// secret. Produces the same claim shape the identity service issues.
func SignToken(secret string, userID int, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type waveItem struct {
	Wave        *domain.Wave `json:"wave"`
	UserID      int          `json:"user_id"`
	DisplayName string       `json:"display_name"`
}

type conversationItem struct {
	Conversation *domain.Conversation `json:"conversation"`
	UnreadCount  int                  `json:"unread_count"`
}

func (c *APIClient) IncomingWaves(ctx context.Context) ([]*waveItem, error) {
	var out struct {
		Waves []*waveItem `json:"waves"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/waves/incoming", nil, &out); err != nil {
		return nil, err
	}
	return out.Waves, nil
}

func (c *APIClient) RespondWave(ctx context.Context, waveID int, accept bool) error {
	body := map[string]bool{"accept": accept}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/waves/%d/respond", waveID), body, nil)
}

func (c *APIClient) Conversations(ctx context.Context) ([]*conversationItem, error) {
	var out struct {
		Conversations []*conversationItem `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *APIClient) History(ctx context.Context, conversationID, limit int) ([]*domain.Message, error) {
	var out struct {
		Messages []*domain.Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/v1/conversations/%d/messages?limit=%d", conversationID, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *APIClient) SendMessage(ctx context.Context, conversationID int, content string) error {
	body := map[string]string{"content": content}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/messages", conversationID), body, nil)
}

func (c *APIClient) MarkRead(ctx context.Context, conversationID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/read", conversationID), nil, nil)
}

func (c *APIClient) UpdateLocation(ctx context.Context, lat, lng float64) error {
	body := map[string]float64{"lat": lat, "lng": lng}
	return c.do(ctx, http.MethodPut, "/api/v1/profile/me/location", body, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: %d %s (%s)", method, path, resp.StatusCode, apiErr.Error, apiErr.Code)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
