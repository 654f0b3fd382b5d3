package deconz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Client is a thin wrapper around the deCONZ REST API.
type Client struct {
	host       string
	port       int
	apiKey     string
	httpClient *http.Client

	// Rate limiting for outgoing state changes
	limiter *rate.Limiter
}

// NewClient creates a new gateway client.
func NewClient(host string, port int, apiKey string, timeout time.Duration, rateLimitRPS float64) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if rateLimitRPS == 0 {
		rateLimitRPS = 10.0
	}

	return &Client{
		host:   host,
		port:   port,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rateLimitRPS), int(rateLimitRPS)),
	}
}

// Host returns the gateway host.
func (c *Client) Host() string {
	return c.host
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("http://%s:%d/api/%s/%s", c.host, c.port, c.apiKey, path)
}

func (c *Client) request(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// Connect verifies gateway access and returns the gateway configuration,
// including the advertised WebSocket port.
func (c *Client) Connect(ctx context.Context) (*GatewayConfig, error) {
	resp, err := c.request(ctx, "GET", "config", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to deCONZ gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for config request", resp.StatusCode)
	}

	var cfg GatewayConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, err
	}

	log.Info().
		Str("gateway", cfg.Name).
		Str("api_version", cfg.APIVersion).
		Msg("Connected to deCONZ gateway")

	return &cfg, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetLights returns all lights known to the gateway, keyed by id.
func (c *Client) GetLights(ctx context.Context) (map[string]LightMessage, error) {
	resp, err := c.request(ctx, "GET", "lights", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var raw map[string]LightMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	lights := make(map[string]LightMessage, len(raw))
	for id, light := range raw {
		light.ID = id
		lights[id] = light
	}

	return lights, nil
}

// GetLight returns the full state of a light. A 403 means the gateway holds
// no state for us; that is reported as (nil, nil), not as an error. Any
// other non-200 status fails the fetch.
func (c *Client) GetLight(ctx context.Context, id string) (*LightMessage, error) {
	resp, err := c.request(ctx, "GET", fmt.Sprintf("lights/%s", id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusForbidden:
		return nil, nil
	case http.StatusOK:
		var light LightMessage
		if err := json.NewDecoder(resp.Body).Decode(&light); err != nil {
			return nil, err
		}
		light.ID = id
		return &light, nil
	default:
		return nil, fmt.Errorf("unexpected status code %d for full state request", resp.StatusCode)
	}
}

// SetLightState sends a sparse state delta to a light. Non-2xx responses are
// errors; retrying is the caller's concern.
func (c *Client) SetLightState(ctx context.Context, id string, state *LightState) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}

	log.Trace().Str("light", id).RawJSON("state", payload).Msg("Sending state to light")

	resp, err := c.request(ctx, "PUT", fmt.Sprintf("lights/%s/state", id), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to set light state: status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
