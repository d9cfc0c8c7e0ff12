package models

// Provider wire shapes. All gateways decode into these regardless of the
// upstream vendor so the acquirer sees one format.

// QuoteResponse mirrors the quote payload returned by the broker APIs.
type QuoteResponse struct {
	Symbol string  `json:"symbol"`
	LTP    float64 `json:"ltp"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// OptionChainLeg is one CE or PE entry inside a chain response.
type OptionChainLeg struct {
	OpenInterest         int64   `json:"openInterest"`
	ChangeInOpenInterest int64   `json:"changeinOpenInterest"`
	LastPrice            float64 `json:"lastPrice"`
	Change               float64 `json:"change"`
	Volume               int64   `json:"totalTradedVolume"`
}

// OptionChainEntry is one strike row; either leg may be absent.
type OptionChainEntry struct {
	StrikePrice float64         `json:"strikePrice"`
	ExpiryDate  string          `json:"expiryDate"`
	CE          *OptionChainLeg `json:"CE,omitempty"`
	PE          *OptionChainLeg `json:"PE,omitempty"`
}

// OptionChainResponse is the normalized chain payload.
type OptionChainResponse struct {
	Data []OptionChainEntry `json:"data"`
}

// ToQuote converts a wire quote into the domain Quote.
func (q *QuoteResponse) ToQuote(symbol string) Quote {
	return Quote{
		Symbol: symbol,
		Open:   q.Open,
		High:   q.High,
		Low:    q.Low,
		Close:  q.Close,
		LTP:    q.LTP,
		Volume: q.Volume,
	}
}

// ToChain converts a wire chain into normalized strike snapshots. Entries
// with a non-positive strike are dropped; a missing leg stays zero.
func (c *OptionChainResponse) ToChain() []StrikeSnapshot {
	chain := make([]StrikeSnapshot, 0, len(c.Data))
	for _, e := range c.Data {
		if e.StrikePrice <= 0 {
			continue
		}
		s := StrikeSnapshot{Strike: e.StrikePrice}
		if e.CE != nil {
			s.Call = OptionLeg{
				OpenInterest:    e.CE.OpenInterest,
				OIChange:        e.CE.ChangeInOpenInterest,
				LastPrice:       e.CE.LastPrice,
				LastPriceChange: e.CE.Change,
				Volume:          e.CE.Volume,
			}
		}
		if e.PE != nil {
			s.Put = OptionLeg{
				OpenInterest:    e.PE.OpenInterest,
				OIChange:        e.PE.ChangeInOpenInterest,
				LastPrice:       e.PE.LastPrice,
				LastPriceChange: e.PE.Change,
				Volume:          e.PE.Volume,
			}
		}
		chain = append(chain, s)
	}
	return NormalizeChain(chain)
}
