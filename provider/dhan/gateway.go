// Package dhan implements the access-token broker gateway. The token is
// minted from the API key/secret pair and sent verbatim in the access-token
// header on every data call.
package dhan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"optionflow/logger"
	"optionflow/models"
	"optionflow/provider"
)

type Gateway struct {
	name    string
	baseURL string
	creds   models.ProviderCredentials
	client  *provider.Client
	log     *logger.Log
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ErrorMsg    string `json:"errorMessage"`
}

type chainEnvelope struct {
	Data []models.OptionChainEntry `json:"data"`
}

func init() {
	provider.RegisterKind("dhan", func(cfg provider.GatewayConfig, timeout time.Duration) (provider.Gateway, error) {
		return NewGateway(cfg.Name, cfg.BaseURL, cfg.Credentials, cfg.MinInterval, timeout), nil
	})
}

func NewGateway(name, baseURL string, creds models.ProviderCredentials, minInterval, timeout time.Duration) *Gateway {
	g := &Gateway{
		name:    name,
		baseURL: baseURL,
		creds:   creds,
		log:     logger.GetLogger(),
	}
	g.client = provider.NewClient(name, minInterval, timeout, g.login)
	g.client.AuthHeader = "access-token"
	g.client.AuthScheme = ""
	return g
}

func (g *Gateway) Name() string { return g.name }

func (g *Gateway) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"clientId":  g.creds.ClientID,
		"apiKey":    g.creds.APIKey,
		"apiSecret": g.creds.APISecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v2/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := g.client.Pacer.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := g.client.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		return "", fmt.Errorf("token request rejected: %s", tr.ErrorMsg)
	}

	g.log.WithComponent("dhan_gateway").Info("access token issued")
	return tr.AccessToken, nil
}

func (g *Gateway) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	endpoint := fmt.Sprintf("%s/v2/marketfeed/quote?symbol=%s", g.baseURL, url.QueryEscape(symbol))

	var resp models.QuoteResponse
	if err := g.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return models.Quote{}, err
	}
	if resp.LTP <= 0 {
		return models.Quote{}, &provider.MalformedPayloadError{
			Provider: g.name,
			Err:      fmt.Errorf("quote for %s missing last traded price", symbol),
		}
	}
	return resp.ToQuote(symbol), nil
}

func (g *Gateway) GetOptionChain(ctx context.Context, symbol, expiry string) ([]models.StrikeSnapshot, error) {
	endpoint := fmt.Sprintf("%s/v2/optionchain?underlying=%s", g.baseURL, url.QueryEscape(symbol))
	if expiry != "" {
		endpoint += "&expiry=" + url.QueryEscape(expiry)
	}

	var env chainEnvelope
	if err := g.client.GetJSON(ctx, endpoint, nil, &env); err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, &provider.MalformedPayloadError{
			Provider: g.name,
			Err:      fmt.Errorf("empty chain for %s", symbol),
		}
	}

	wire := models.OptionChainResponse{Data: env.Data}
	return wire.ToChain(), nil
}
