package telephony

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client places dial-outs against the telephony provider. The provider
// reports call progress asynchronously to the /telephony/events webhook;
// Dial only confirms that the attempt was accepted.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

type dialRequest struct {
	SessionID string `json:"sessionId"`
	FromParty string `json:"fromParty"`
	ToParty   string `json:"toParty"`
}

type dialResponse struct {
	CallHandle string `json:"callHandle"`
	Error      string `json:"error,omitempty"`
}

// Event is a provider callback delivered to the webhook.
type Event struct {
	SessionID  uuid.UUID `json:"session_id"`
	CallHandle string    `json:"call_handle"`
	// Kind is "connected" or "ended".
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)

	return &Client{httpClient: client, logger: logger}
}

// Dial asks the provider to ring both parties into the session.
func (c *Client) Dial(ctx context.Context, sessionID, fromParty, toParty uuid.UUID) (string, error) {
	var result dialResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(dialRequest{
			SessionID: sessionID.String(),
			FromParty: fromParty.String(),
			ToParty:   toParty.String(),
		}).
		SetResult(&result).
		Post("/v1/calls")
	if err != nil {
		return "", fmt.Errorf("telephony provider unreachable: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("telephony provider returned %d: %s", resp.StatusCode(), result.Error)
	}

	return result.CallHandle, nil
}
