package nse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteWarmupSharesPacing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "session"})
	})
	mux.HandleFunc("/api/quote-derivative", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"priceInfo":{"lastPrice":24450,"previousClose":24300}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	interval := 30 * time.Millisecond
	g := NewGateway("nse", srv.URL, interval, time.Second)

	start := time.Now()
	quote, err := g.GetQuote(context.Background(), "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, 24450.0, quote.LTP)

	// The warmup consumed the pacer's slot, so the data call had to wait out
	// the full interval behind it.
	assert.GreaterOrEqual(t, time.Since(start), interval)
}
