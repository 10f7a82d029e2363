package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Room is a provisioned meeting room. RoomURL is shared with the user,
// HostRoomURL only with the creator.
type Room struct {
	MeetingID   string `json:"meetingId"`
	RoomURL     string `json:"roomUrl"`
	HostRoomURL string `json:"hostRoomUrl"`
}

// Provisioner creates a meeting room that stays open until expiresAt.
type Provisioner interface {
	CreateRoom(ctx context.Context, expiresAt time.Time) (Room, error)
}

// WherebyClient provisions rooms through the Whereby meetings API.
type WherebyClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewWherebyClient(baseURL, apiKey string) *WherebyClient {
	return &WherebyClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type createMeetingRequest struct {
	EndDate string   `json:"endDate"`
	Fields  []string `json:"fields"`
}

func (c *WherebyClient) CreateRoom(ctx context.Context, expiresAt time.Time) (Room, error) {
	body, err := json.Marshal(createMeetingRequest{
		EndDate: expiresAt.UTC().Format(time.RFC3339),
		Fields:  []string{"hostRoomUrl"},
	})
	if err != nil {
		return Room{}, fmt.Errorf("marshal meeting request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/meetings", bytes.NewReader(body))
	if err != nil {
		return Room{}, fmt.Errorf("build meeting request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Room{}, fmt.Errorf("create meeting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Room{}, fmt.Errorf("create meeting: status %d: %s", resp.StatusCode, msg)
	}

	var room Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return Room{}, fmt.Errorf("decode meeting response: %w", err)
	}
	if room.RoomURL == "" {
		return Room{}, fmt.Errorf("create meeting: response missing roomUrl")
	}
	return room, nil
}
