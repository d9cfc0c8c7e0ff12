// Package angelone implements the SmartAPI-style broker gateway: a login
// call exchanges client code, PIN and a TOTP for a JWT, and data calls carry
// the token plus the API key header.
package angelone

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

type loginResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"message"`
	Data   struct {
		JWTToken string `json:"jwtToken"`
	} `json:"data"`
}

type quoteEnvelope struct {
	Status bool                 `json:"status"`
	Data   models.QuoteResponse `json:"data"`
}

type chainEnvelope struct {
	Status bool                      `json:"status"`
	Data   []models.OptionChainEntry `json:"data"`
}

func init() {
	provider.RegisterKind("angelone", func(cfg provider.GatewayConfig, timeout time.Duration) (provider.Gateway, error) {
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
	return g
}

func (g *Gateway) Name() string { return g.name }

// login exchanges the decrypted credentials for a session JWT.
func (g *Gateway) login(ctx context.Context) (string, error) {
	payload := map[string]string{
		"clientcode": g.creds.ClientID,
		"password":   g.creds.PIN,
	}
	if g.creds.TOTPSeed != "" {
		payload["totp"] = totpNow(g.creds.TOTPSeed, time.Now())
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := g.baseURL + "/rest/auth/angelbroking/user/v1/loginByPassword"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PrivateKey", g.creds.APIKey)

	if err := g.client.Pacer.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := g.client.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK || !lr.Status || lr.Data.JWTToken == "" {
		return "", fmt.Errorf("login rejected: %s", lr.Msg)
	}

	g.log.WithComponent("angelone_gateway").Info("login succeeded")
	return lr.Data.JWTToken, nil
}

func (g *Gateway) headers() map[string]string {
	return map[string]string{
		"X-PrivateKey": g.creds.APIKey,
		"X-ClientCode": g.creds.ClientID,
	}
}

func (g *Gateway) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	endpoint := fmt.Sprintf("%s/rest/secure/angelbroking/market/v1/quote?symbol=%s",
		g.baseURL, url.QueryEscape(symbol))

	var env quoteEnvelope
	if err := g.client.GetJSON(ctx, endpoint, g.headers(), &env); err != nil {
		return models.Quote{}, err
	}
	if !env.Status || env.Data.LTP <= 0 {
		return models.Quote{}, &provider.MalformedPayloadError{
			Provider: g.name,
			Err:      fmt.Errorf("quote for %s missing last traded price", symbol),
		}
	}
	return env.Data.ToQuote(symbol), nil
}

func (g *Gateway) GetOptionChain(ctx context.Context, symbol, expiry string) ([]models.StrikeSnapshot, error) {
	endpoint := fmt.Sprintf("%s/rest/secure/angelbroking/market/v1/optionChain?symbol=%s",
		g.baseURL, url.QueryEscape(symbol))
	if expiry != "" {
		endpoint += "&expiry=" + url.QueryEscape(expiry)
	}

	var env chainEnvelope
	if err := g.client.GetJSON(ctx, endpoint, g.headers(), &env); err != nil {
		return nil, err
	}
	if !env.Status || len(env.Data) == 0 {
		return nil, &provider.MalformedPayloadError{
			Provider: g.name,
			Err:      fmt.Errorf("empty chain for %s", symbol),
		}
	}

	wire := models.OptionChainResponse{Data: env.Data}
	return wire.ToChain(), nil
}
