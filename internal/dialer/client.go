package dialer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"screening-platform/internal/scheduler"
)

// Client talks to the external caller service (the voice engine that actually
// places calls and runs the AI conversation). This backend only asks it to
// dial; everything after that comes back through the report endpoints.
type Client struct {
	http *resty.Client
}

// New builds a client for the caller service at baseURL.
// timeout bounds every dispatch; a timed-out dispatch counts as a failure and
// the scheduler's failure grace allows the next tick to retry.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: http}
}

type outboundResponse struct {
	Success     bool   `json:"success"`
	CallID      string `json:"call_sid"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PlaceCall asks the caller service to start an outbound call.
func (c *Client) PlaceCall(ctx context.Context, phoneNumber string) (scheduler.DialResult, error) {
	if phoneNumber == "" {
		return scheduler.DialResult{}, fmt.Errorf("dialer: phone number required")
	}

	var out outboundResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("phone_number", phoneNumber).
		SetResult(&out).
		Post("/call/outbound")
	if err != nil {
		return scheduler.DialResult{}, fmt.Errorf("dialer: outbound request failed: %w", err)
	}
	if resp.IsError() {
		return scheduler.DialResult{}, fmt.Errorf("dialer: caller service returned %d", resp.StatusCode())
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "unspecified failure"
		}
		return scheduler.DialResult{}, fmt.Errorf("dialer: caller service rejected dispatch: %s", msg)
	}
	return scheduler.DialResult{CallID: out.CallID}, nil
}
