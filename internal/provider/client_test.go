package provider

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

	"github.com/baharkarakas/pix-reconciler/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:    srv.URL,
		Token:      "secret",
		Timeout:    timeout,
		WebhookURL: "https://hooks.example.com/webhook/pix",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateCharge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/pix/cashIn", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 1000, body["value"])
		assert.Equal(t, "https://hooks.example.com/webhook/pix", body["webhook_url"])
		assert.Equal(t, "Ana", body["payer_name"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"9c1f","qr_code":"000201pix","qr_code_base64":"data:image/png;base64,AA==","status":"created","value":1000}`))
	}, time.Second)

	ch, err := c.CreateCharge(context.Background(), ChargeRequest{
		Amount: 1000,
		Payer:  &models.Party{Name: "Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, "9c1f", ch.ID)
	assert.Equal(t, "000201pix", ch.QRCode)
	assert.Equal(t, "data:image/png;base64,AA==", ch.QRCodeBase64)
}

func TestCreateChargeProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"value below minimum","errors":{"value":["min 50"]}}`))
	}, time.Second)

	_, err := c.CreateCharge(context.Background(), ChargeRequest{Amount: 10})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "value below minimum", apiErr.Details["message"])
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
}

func TestFetchStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/transactions/9c1f", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"9c1f","status":"paid","value":1000,"payer_name":"Ana","payer_national_registration":"12345678901"}`))
	}, time.Second)

	st, err := c.FetchStatus(context.Background(), "9c1f")
	require.NoError(t, err)
	assert.Equal(t, "paid", st.Status)
	require.NotNil(t, st.Value)
	assert.EqualValues(t, 1000, *st.Value)
	assert.Equal(t, "12345678901", st.PayerDoc)
	assert.Contains(t, string(st.Raw), `"status":"paid"`)
}

func TestFetchStatusTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	start := time.Now()
	_, err := c.FetchStatus(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchStatusUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.FetchStatus(context.Background(), "x")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
