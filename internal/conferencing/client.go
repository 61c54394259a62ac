package conferencing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client talks to the external conferencing backend that mints meeting
// links for scheduled calls.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

type createMeetingRequest struct {
	Title           string   `json:"title"`
	Start           string   `json:"start"`
	DurationMinutes int      `json:"durationMinutes"`
	Attendees       []string `json:"attendees"`
}

type createMeetingResponse struct {
	MeetingURI string `json:"meetingUri"`
	Error      string `json:"error,omitempty"`
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(apiKey)

	return &Client{httpClient: client, logger: logger}
}

// CreateMeeting requests a meeting URI. Callers treat failure as a
// degradation, not a hard error: the session survives without a ref.
func (c *Client) CreateMeeting(ctx context.Context, title string, start time.Time, durationMinutes int, attendees []string) (string, error) {
	var result createMeetingResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(createMeetingRequest{
			Title:           title,
			Start:           start.UTC().Format(time.RFC3339),
			DurationMinutes: durationMinutes,
			Attendees:       attendees,
		}).
		SetResult(&result).
		Post("/v1/meetings")
	if err != nil {
		return "", fmt.Errorf("conferencing backend unreachable: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("conferencing backend returned %d: %s", resp.StatusCode(), result.Error)
	}
	if result.MeetingURI == "" {
		return "", fmt.Errorf("conferencing backend returned empty meeting uri")
	}

	return result.MeetingURI, nil
}
