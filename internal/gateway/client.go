package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/felipemacedo1/go-msg-wss-app/internal/auth"
	"github.com/felipemacedo1/go-msg-wss-app/internal/models"
	"github.com/felipemacedo1/go-msg-wss-app/internal/observability"
)

// Client is the HTTP gateway to the room/message backend. All calls attach
// the session bearer token and return a *RequestError on non-2xx responses.
type Client struct {
	baseURL string
	http    *http.Client
	session auth.Session
}

// NewClient builds a gateway client for the given base URL and session.
func NewClient(baseURL string, session auth.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		session: session,
	}
}

// ListRooms returns all rooms.
func (c *Client) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := c.do(ctx, "list_rooms", http.MethodGet, "/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room with the given theme.
func (c *Client) CreateRoom(ctx context.Context, theme string) (models.Room, error) {
	var room models.Room
	body := map[string]string{"theme": theme}
	if err := c.do(ctx, "create_room", http.MethodPost, "/create-room", body, &room); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// GetRoom fetches a single room.
func (c *Client) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	if err := c.do(ctx, "get_room", http.MethodGet, "/rooms/"+roomID, nil, &room); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// ListMessages returns the full ordered message history of a room. This is
// the snapshot the session installs before applying live events.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.do(ctx, "list_messages", http.MethodGet, "/rooms/"+roomID+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a new message. The created message is returned by the
// server but local state only changes once it comes back on the live
// subscription.
func (c *Client) SendMessage(ctx context.Context, roomID, body string) (models.Message, error) {
	var msg models.Message
	payload := map[string]string{"message": body}
	if err := c.do(ctx, "send_message", http.MethodPost, "/rooms/"+roomID+"/messages", payload, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// React sets the caller's reaction on a message.
func (c *Client) React(ctx context.Context, roomID, messageID string) error {
	return c.do(ctx, "react", http.MethodPost, "/rooms/"+roomID+"/messages/"+messageID+"/react", nil, nil)
}

// Unreact clears the caller's reaction from a message.
func (c *Client) Unreact(ctx context.Context, roomID, messageID string) error {
	return c.do(ctx, "unreact", http.MethodDelete, "/rooms/"+roomID+"/messages/"+messageID+"/react", nil, nil)
}

// MarkAnswered flags a message as answered.
func (c *Client) MarkAnswered(ctx context.Context, roomID, messageID string) error {
	return c.do(ctx, "mark_answered", http.MethodPatch, "/rooms/"+roomID+"/messages/"+messageID+"/answer", nil, nil)
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway %s: encode body: %w", operation, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway %s: build request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveGatewayDuration(operation, time.Since(start))
	if err != nil {
		observability.IncGatewayRequest(operation, "error")
		return fmt.Errorf("gateway %s: %w", operation, err)
	}
	defer resp.Body.Close()

	observability.IncGatewayRequest(operation, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(detail)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway %s: decode response: %w", operation, err)
	}
	return nil
}
