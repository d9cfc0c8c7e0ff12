package angelone

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionflow/models"
)

func TestLoginSharesGatewayPacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":true,"data":{"jwtToken":"tok"}}`)
	}))
	defer srv.Close()

	interval := 30 * time.Millisecond
	g := NewGateway("angelone", srv.URL, models.ProviderCredentials{
		ClientID: "C1",
		PIN:      "0000",
		APIKey:   "key",
	}, interval, time.Second)

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, g.client.Reauthenticate(ctx))
	require.NoError(t, g.client.Reauthenticate(ctx))

	// Two consecutive logins are spaced like any other pair of calls.
	assert.GreaterOrEqual(t, time.Since(start), interval)
}
