package payee

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xBased-lang/kektech-backend/internal/crypto"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *crypto.HMACAuth) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	auth := &crypto.HMACAuth{KeyID: "k1", Secret: "s1"}
	c, err := New(srv.URL, auth, 2*time.Second, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return c, auth
}

func TestReceive_SignsRequest(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header
	c, auth := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})

	err := c.Receive(context.Background(), "mkt-1", 12345)
	require.NoError(t, err)

	var req receiveRequest
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, "mkt-1", req.MarketID)
	assert.Equal(t, int64(12345), req.Amount)

	assert.Equal(t, "k1", gotHeaders.Get("X-Kek-Key-Id"))
	ts := gotHeaders.Get("X-Kek-Timestamp")
	sig := gotHeaders.Get("X-Kek-Signature")
	assert.True(t, auth.Verify(http.MethodPost, receivePath, string(gotBody), ts, sig))
}

func TestReceive_NonOKStatusIsRefusal(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "distributor reverted", http.StatusBadGateway)
	})

	err := c.Receive(context.Background(), "mkt-1", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestReceive_RejectsNonPositiveAmount(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	assert.Error(t, c.Receive(context.Background(), "mkt-1", 0))
}
