package livekit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/irfndi/tanya-ai-go/internal/telemetry"
)

const listRoomsPath = "/twirp/livekit.RoomService/ListRooms"

// RoomLister returns the names of the rooms currently open on the server.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]string, error)
}

// RoomClient calls the LiveKit RoomService over its Twirp JSON endpoint.
type RoomClient struct {
	baseURL    string
	issuer     *TokenIssuer
	httpClient *http.Client
}

func NewRoomClient(serverURL string, issuer *TokenIssuer, httpClient *http.Client) *RoomClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RoomClient{
		baseURL:    httpURL(serverURL),
		issuer:     issuer,
		httpClient: httpClient,
	}
}

// httpURL maps the ws(s) URL clients connect to onto the API base URL.
func httpURL(serverURL string) string {
	u := strings.TrimRight(serverURL, "/")
	switch {
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	}
	return u
}

type listRoomsResponse struct {
	Rooms []struct {
		Name string `json:"name"`
	} `json:"rooms"`
}

func (c *RoomClient) ListRooms(ctx context.Context) (_ []string, err error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	ctx, span := telemetry.StartExternalSpan(ctx, "livekit", "list_rooms")
	defer func() { telemetry.EndSpan(span, err) }()

	token, err := c.issuer.roomListToken()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+listRoomsPath, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("failed to build ListRooms request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ListRooms request failed: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ListRooms returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out listRoomsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode ListRooms response: %w", err)
	}
	span.SetAttributes(attribute.Int("livekit.rooms", len(out.Rooms)))
	names := make([]string, 0, len(out.Rooms))
	for _, r := range out.Rooms {
		names = append(names, r.Name)
	}
	return names, nil
}
