package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamClient provides access to a stagehand server. It subscribes to the
// websocket event stream, reconnecting and catching up on missed events, and
// issues run and reset commands over HTTP.
type StreamClient struct {
	// baseURL is the base URL of the server (e.g., "http://localhost:8375")
	baseURL string

	// httpClient is the HTTP client used for requests
	httpClient *http.Client

	// dialer opens websocket connections
	dialer *websocket.Dialer

	// authToken is the optional authentication token
	authToken string

	// lastSeq is the sequence number of the last event received
	lastSeq uint64

	// mu protects lastSeq
	mu sync.RWMutex

	// reconnectInterval is the time to wait between reconnection attempts
	reconnectInterval time.Duration

	// maxReconnectAttempts is the maximum number of reconnection attempts (0 = unlimited)
	maxReconnectAttempts int
}

// ClientOption configures a StreamClient.
type ClientOption func(*StreamClient)

// WithAuthToken sets the authentication token for the client.
func WithAuthToken(token string) ClientOption {
	return func(c *StreamClient) {
		c.authToken = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *StreamClient) {
		c.httpClient = client
	}
}

// WithReconnectInterval sets the interval between reconnection attempts.
func WithReconnectInterval(interval time.Duration) ClientOption {
	return func(c *StreamClient) {
		c.reconnectInterval = interval
	}
}

// WithMaxReconnectAttempts sets the maximum number of reconnection attempts.
// Set to 0 for unlimited attempts.
func WithMaxReconnectAttempts(attempts int) ClientOption {
	return func(c *StreamClient) {
		c.maxReconnectAttempts = attempts
	}
}

// NewStreamClient creates a new StreamClient for the given base URL.
func NewStreamClient(baseURL string, opts ...ClientOption) *StreamClient {
	c := &StreamClient{
		baseURL:              strings.TrimSuffix(baseURL, "/"),
		httpClient:           &http.Client{Timeout: 30 * time.Second},
		dialer:               &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		reconnectInterval:    2 * time.Second,
		maxReconnectAttempts: 0, // Unlimited by default
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect tests the connection by fetching the sprite list.
func (c *StreamClient) Connect(ctx context.Context) error {
	_, err := c.Sprites(ctx)
	return err
}

// Authenticate exchanges a password for a bearer token and uses it for
// subsequent requests.
func (c *StreamClient) Authenticate(ctx context.Context, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth", map[string]string{"password": password}, &out); err != nil {
		return err
	}
	if out.Token == "" {
		return fmt.Errorf("server returned an empty token")
	}
	c.authToken = out.Token
	return nil
}

// Sprites fetches the current sprite list.
func (c *StreamClient) Sprites(ctx context.Context) ([]SpriteEvent, error) {
	var sprites []SpriteEvent
	if err := c.do(ctx, http.MethodGet, "/sprites", nil, &sprites); err != nil {
		return nil, err
	}
	return sprites, nil
}

// Run starts a run on the server.
func (c *StreamClient) Run(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/run", nil, nil)
}

// Reset resets the server's stage.
func (c *StreamClient) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/reset", nil, nil)
}

func (c *StreamClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.addAuthHeader(req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Subscribe returns a channel that receives events from the server's
// websocket stream. It reconnects and catches up on missed events if the
// connection is lost. The channel is closed when the context is canceled or
// max reconnect attempts are exceeded. If fromSeq is 0, every retained event
// is returned.
func (c *StreamClient) Subscribe(ctx context.Context, fromSeq uint64) (<-chan *Event, <-chan error) {
	eventCh := make(chan *Event, 100)
	errCh := make(chan error, 1)

	c.mu.Lock()
	if fromSeq > 0 {
		c.lastSeq = fromSeq - 1
	} else {
		c.lastSeq = 0
	}
	c.mu.Unlock()

	go c.subscriptionLoop(ctx, eventCh, errCh)

	return eventCh, errCh
}

// subscriptionLoop handles the main subscription loop with reconnection logic.
func (c *StreamClient) subscriptionLoop(ctx context.Context, eventCh chan<- *Event, errCh chan<- error) {
	defer close(eventCh)
	defer close(errCh)

	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		c.mu.RLock()
		fromSeq := c.lastSeq + 1
		c.mu.RUnlock()

		err := c.streamEvents(ctx, fromSeq, eventCh)
		if err == nil || ctx.Err() != nil {
			return
		}

		attempts++
		if c.maxReconnectAttempts > 0 && attempts >= c.maxReconnectAttempts {
			errCh <- fmt.Errorf("max reconnection attempts (%d) exceeded: %w", c.maxReconnectAttempts, err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectInterval):
		}
	}
}

// streamEvents reads events from one websocket connection. It returns nil if
// the context is canceled, or an error if the connection fails.
func (c *StreamClient) streamEvents(ctx context.Context, fromSeq uint64, eventCh chan<- *Event) error {
	wsURL, err := c.websocketURL(fromSeq)
	if err != nil {
		return err
	}

	header := http.Header{}
	c.addAuthHeader(header)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", err)
		}

		event, err := UnmarshalEvent(data)
		if err != nil {
			continue
		}

		c.mu.Lock()
		if event.Seq > c.lastSeq {
			c.lastSeq = event.Seq
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case eventCh <- event:
		}
	}
}

func (c *StreamClient) websocketURL(fromSeq uint64) (string, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("from_seq", fmt.Sprint(fromSeq))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// LastSeq returns the sequence number of the last received event.
func (c *StreamClient) LastSeq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeq
}

// BaseURL returns the base URL of the server.
func (c *StreamClient) BaseURL() string {
	return c.baseURL
}

// addAuthHeader adds the authorization header if a token is configured.
func (c *StreamClient) addAuthHeader(h http.Header) {
	if c.authToken != "" {
		h.Set("Authorization", "Bearer "+c.authToken)
	}
}
