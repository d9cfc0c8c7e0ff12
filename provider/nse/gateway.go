// Package nse fetches quotes and option chains from the public NSE India
// endpoints. The exchange serves anonymous requests but expects a session
// cookie obtained from the landing page, so the gateway warms its cookie jar
// before the first data call and again whenever the exchange rejects one.
package nse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"optionflow/logger"
	"optionflow/models"
	"optionflow/provider"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) optionflow/1.0"

type Gateway struct {
	name    string
	baseURL string
	client  *provider.Client
	log     *logger.Log
}

type chainResponse struct {
	Records struct {
		Data            []models.OptionChainEntry `json:"data"`
		UnderlyingValue float64                   `json:"underlyingValue"`
		ExpiryDates     []string                  `json:"expiryDates"`
	} `json:"records"`
}

type quoteResponse struct {
	PriceInfo struct {
		LastPrice     float64 `json:"lastPrice"`
		Open          float64 `json:"open"`
		Close         float64 `json:"close"`
		PreviousClose float64 `json:"previousClose"`
		IntraDayHighLow struct {
			Max float64 `json:"max"`
			Min float64 `json:"min"`
		} `json:"intraDayHighLow"`
	} `json:"priceInfo"`
	SecurityWiseDP struct {
		QuantityTraded int64 `json:"quantityTraded"`
	} `json:"securityWiseDP"`
}

func init() {
	provider.RegisterKind("nse", func(cfg provider.GatewayConfig, timeout time.Duration) (provider.Gateway, error) {
		return NewGateway(cfg.Name, cfg.BaseURL, cfg.MinInterval, timeout), nil
	})
}

func NewGateway(name, baseURL string, minInterval, timeout time.Duration) *Gateway {
	client := provider.NewClient(name, minInterval, timeout, nil)
	jar, _ := cookiejar.New(nil)
	client.HTTPClient.Jar = jar

	return &Gateway{
		name:    name,
		baseURL: baseURL,
		client:  client,
		log:     logger.GetLogger(),
	}
}

func (g *Gateway) Name() string { return g.name }

// warmup loads the landing page so the exchange issues session cookies. The
// call goes through the same pacer as the data calls; the exchange does not
// distinguish them when counting requests.
func (g *Gateway) warmup(ctx context.Context) {
	if err := g.client.Pacer.Wait(ctx); err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := g.client.HTTPClient.Do(req)
	if err != nil {
		g.log.WithComponent("nse_gateway").WithError(err).Debug("cookie warmup failed")
		return
	}
	resp.Body.Close()
}

func (g *Gateway) headers() map[string]string {
	return map[string]string{
		"User-Agent": userAgent,
		"Referer":    g.baseURL,
	}
}

func (g *Gateway) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	if g.client.HTTPClient.Jar != nil {
		if u, err := url.Parse(g.baseURL); err == nil && len(g.client.HTTPClient.Jar.Cookies(u)) == 0 {
			g.warmup(ctx)
		}
	}

	endpoint := fmt.Sprintf("%s/api/quote-derivative?symbol=%s", g.baseURL, url.QueryEscape(symbol))
	var resp quoteResponse
	if err := g.client.GetJSON(ctx, endpoint, g.headers(), &resp); err != nil {
		return models.Quote{}, err
	}

	if resp.PriceInfo.LastPrice <= 0 {
		return models.Quote{}, &provider.MalformedPayloadError{
			Provider: g.name,
			Err:      fmt.Errorf("quote for %s has no last price", symbol),
		}
	}

	prev := resp.PriceInfo.PreviousClose
	if prev == 0 {
		prev = resp.PriceInfo.Close
	}

	return models.Quote{
		Symbol: symbol,
		Open:   resp.PriceInfo.Open,
		High:   resp.PriceInfo.IntraDayHighLow.Max,
		Low:    resp.PriceInfo.IntraDayHighLow.Min,
		Close:  prev,
		LTP:    resp.PriceInfo.LastPrice,
		Volume: resp.SecurityWiseDP.QuantityTraded,
	}, nil
}

func (g *Gateway) GetOptionChain(ctx context.Context, symbol, expiry string) ([]models.StrikeSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/option-chain-indices?symbol=%s", g.baseURL, url.QueryEscape(symbol))
	var resp chainResponse
	if err := g.client.GetJSON(ctx, endpoint, g.headers(), &resp); err != nil {
		return nil, err
	}

	if len(resp.Records.Data) == 0 {
		return nil, &provider.MalformedPayloadError{
			Provider: g.name,
			Err:      fmt.Errorf("empty chain for %s", symbol),
		}
	}

	// The exchange returns every listed expiry in one payload; keep only the
	// requested one, defaulting to the nearest.
	if expiry == "" && len(resp.Records.ExpiryDates) > 0 {
		expiry = resp.Records.ExpiryDates[0]
	}
	entries := make([]models.OptionChainEntry, 0, len(resp.Records.Data))
	for _, e := range resp.Records.Data {
		if expiry == "" || e.ExpiryDate == expiry {
			entries = append(entries, e)
		}
	}

	wire := models.OptionChainResponse{Data: entries}
	chain := wire.ToChain()
	if len(chain) == 0 {
		return nil, &provider.MalformedPayloadError{
			Provider: g.name,
			Err:      fmt.Errorf("no strikes for %s expiry %s", symbol, expiry),
		}
	}
	return chain, nil
}
