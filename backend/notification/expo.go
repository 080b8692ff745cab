package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/corvid/threadview/shared/resilience"
)

const DefaultExpoAPIURL = "https://exp.host/--/api/v2/push/send"

// ErrTokenInvalid marks a push token Expo has declared dead. Callers clear
// the stored token so the client re-registers on next app open.
var ErrTokenInvalid = errors.New("push token invalid")

var ErrCircuitOpen = errors.New("expo circuit open")

// PushMessage is one Expo push notification.
type PushMessage struct {
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	Sound    string         `json:"sound,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Channel  string         `json:"channelId,omitempty"`
	Badge    int            `json:"badge,omitempty"`
}

type pushTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type pushResponse struct {
	Data []pushTicket `json:"data"`
}

type receiptResponse struct {
	Data map[string]pushTicket `json:"data"`
}

// Pusher sends push notifications. Implemented by ExpoClient; faked in tests.
type Pusher interface {
	Send(ctx context.Context, msg PushMessage) error
}

// ExpoClient talks to the Expo push API with retries, a circuit breaker, and
// a rate limiter shared by single and batch sends.
type ExpoClient struct {
	apiURL      string
	accessToken string
	httpClient  *http.Client
	retry       *resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
	limiter     *rate.Limiter
}

type ExpoOption func(*ExpoClient)

func WithExpoHTTPClient(client *http.Client) ExpoOption {
	return func(c *ExpoClient) { c.httpClient = client }
}

func WithExpoRetryConfig(config *resilience.RetryConfig) ExpoOption {
	return func(c *ExpoClient) { c.retry = config }
}

func WithExpoRateLimit(limit rate.Limit, burst int) ExpoOption {
	return func(c *ExpoClient) { c.limiter = rate.NewLimiter(limit, burst) }
}

func NewExpoClient(apiURL, accessToken string, opts ...ExpoOption) *ExpoClient {
	if apiURL == "" {
		apiURL = DefaultExpoAPIURL
	}
	client := &ExpoClient{
		apiURL:      apiURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retry:       resilience.DefaultRetryConfig(),
		breaker:     resilience.NewCircuitBreaker("expo", 5, 30*time.Second),
		limiter:     rate.NewLimiter(rate.Limit(10), 20),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Send delivers one push message. Token errors come back as ErrTokenInvalid
// and are never retried.
func (c *ExpoClient) Send(ctx context.Context, msg PushMessage) error {
	if len(msg.To) < 10 {
		return fmt.Errorf("%w: token too short", ErrTokenInvalid)
	}

	return resilience.Retry(ctx, c.retry, nil, func(ctx context.Context) error {
		if !c.breaker.Allow() {
			return ErrCircuitOpen
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return resilience.Permanent(err)
		}

		err := c.sendOnce(ctx, msg)
		c.breaker.RecordResult(err)
		if errors.Is(err, ErrTokenInvalid) {
			return resilience.Permanent(err)
		}
		return err
	})
}

func (c *ExpoClient) sendOnce(ctx context.Context, msg PushMessage) error {
	payload, err := json.Marshal([]PushMessage{msg})
	if err != nil {
		return resilience.Permanent(fmt.Errorf("marshal push payload: %w", err))
	}

	var parsed pushResponse
	if err := c.post(ctx, c.apiURL, payload, &parsed); err != nil {
		return err
	}
	if len(parsed.Data) == 0 {
		return errors.New("empty expo response")
	}

	ticket := parsed.Data[0]
	if ticket.Status != "ok" {
		return ticketError(ticket)
	}

	// A ticket only means Expo accepted the message; the receipt carries the
	// real delivery outcome, including dead-token errors.
	if ticket.ID != "" {
		if receipt, ok := c.checkReceipt(ctx, ticket.ID); ok && receipt.Status == "error" {
			return ticketError(receipt)
		}
	}
	return nil
}

// checkReceipt fetches the delivery receipt for a ticket. Failures to reach
// the receipt API are ignored; the ticket already reported acceptance.
func (c *ExpoClient) checkReceipt(ctx context.Context, receiptID string) (pushTicket, bool) {
	payload, err := json.Marshal(map[string][]string{"ids": {receiptID}})
	if err != nil {
		return pushTicket{}, false
	}

	var parsed receiptResponse
	receiptURL := strings.Replace(c.apiURL, "/send", "/getReceipts", 1)
	if err := c.post(ctx, receiptURL, payload, &parsed); err != nil {
		return pushTicket{}, false
	}

	receipt, ok := parsed.Data[receiptID]
	return receipt, ok
}

func (c *ExpoClient) post(ctx context.Context, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo http %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return json.Unmarshal(body, out)
}

func ticketError(t pushTicket) error {
	switch t.Details.Error {
	case "DeviceNotRegistered", "InvalidCredentials":
		return fmt.Errorf("%w: %s", ErrTokenInvalid, t.Details.Error)
	}
	if t.Message != "" {
		return fmt.Errorf("expo push failed: %s", t.Message)
	}
	return fmt.Errorf("expo push failed with status %q", t.Status)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
