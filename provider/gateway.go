package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"optionflow/logger"
	"optionflow/models"
)

// Gateway is the fetch contract every upstream provider implements.
type Gateway interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
	GetOptionChain(ctx context.Context, symbol, expiry string) ([]models.StrikeSnapshot, error)
}

// LoginFunc obtains a fresh access token for authenticated providers.
type LoginFunc func(ctx context.Context) (string, error)

// Client is the shared REST core used by the concrete gateways. It paces
// every call, injects the current token, and on a 401 performs exactly one
// token refresh followed by one retry of the same call. A failed refresh
// flips the client into an unauthenticated state in which calls fail fast
// until Reauthenticate succeeds.
type Client struct {
	ProviderName string
	HTTPClient   *http.Client
	Pacer        *Pacer
	AuthHeader   string
	AuthScheme   string
	Login        LoginFunc

	mu              sync.Mutex
	token           string
	unauthenticated bool

	log *logger.Log
}

// NewClient builds a paced REST client for one provider instance.
func NewClient(name string, minInterval, timeout time.Duration, login LoginFunc) *Client {
	return &Client{
		ProviderName: name,
		HTTPClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Pacer:      NewPacer(minInterval),
		AuthHeader: "Authorization",
		AuthScheme: "Bearer",
		Login:      login,
		log:        logger.GetLogger(),
	}
}

// Reauthenticate forces a fresh login and clears the fail-fast state.
func (c *Client) Reauthenticate(ctx context.Context) error {
	if c.Login == nil {
		return nil
	}
	token, err := c.Login(ctx)
	if err != nil {
		return &AuthError{Provider: c.ProviderName, Err: err}
	}
	c.mu.Lock()
	c.token = token
	c.unauthenticated = false
	c.mu.Unlock()
	return nil
}

func (c *Client) currentToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.unauthenticated
}

func (c *Client) refreshToken(ctx context.Context) error {
	log := c.log.WithComponent(c.ProviderName + "_gateway")
	log.Warn("access token rejected, attempting refresh")

	token, err := c.Login(ctx)
	if err != nil {
		c.mu.Lock()
		c.unauthenticated = true
		c.mu.Unlock()
		log.WithError(err).Error("token refresh failed, gateway marked unauthenticated")
		return &AuthError{Provider: c.ProviderName, Err: err}
	}

	c.mu.Lock()
	c.token = token
	c.unauthenticated = false
	c.mu.Unlock()
	log.Info("access token refreshed")
	return nil
}

// GetJSON issues a paced GET against url, decodes the body into out and
// applies the provider error taxonomy. headers may be nil.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	if _, unauth := c.currentToken(); unauth && c.Login != nil {
		return &AuthError{Provider: c.ProviderName, Err: fmt.Errorf("gateway is unauthenticated")}
	}

	if err := c.Pacer.Wait(ctx); err != nil {
		return &NetworkError{Provider: c.ProviderName, Err: err}
	}

	status, body, err := c.doOnce(ctx, url, headers)
	if err != nil {
		return &NetworkError{Provider: c.ProviderName, Err: err}
	}

	if status == http.StatusUnauthorized && c.Login != nil {
		if err := c.refreshToken(ctx); err != nil {
			return err
		}
		if err := c.Pacer.Wait(ctx); err != nil {
			return &NetworkError{Provider: c.ProviderName, Err: err}
		}
		status, body, err = c.doOnce(ctx, url, headers)
		if err != nil {
			return &NetworkError{Provider: c.ProviderName, Err: err}
		}
		if status == http.StatusUnauthorized {
			c.mu.Lock()
			c.unauthenticated = true
			c.mu.Unlock()
			return &AuthError{Provider: c.ProviderName, Err: fmt.Errorf("request rejected after token refresh")}
		}
	}

	switch {
	case status == http.StatusNotFound:
		return &NotFoundError{Provider: c.ProviderName, Symbol: url}
	case status >= 400:
		return &NetworkError{Provider: c.ProviderName, Err: fmt.Errorf("unexpected status %d", status)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedPayloadError{Provider: c.ProviderName, Err: err}
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, url string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if token, _ := c.currentToken(); token != "" {
		value := token
		if c.AuthScheme != "" {
			value = c.AuthScheme + " " + token
		}
		req.Header.Set(c.AuthHeader, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
