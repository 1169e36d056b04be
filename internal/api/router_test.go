package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/pix-reconciler/internal/alerts"
	"github.com/baharkarakas/pix-reconciler/internal/auth"
	"github.com/baharkarakas/pix-reconciler/internal/config"
	"github.com/baharkarakas/pix-reconciler/internal/models"
	"github.com/baharkarakas/pix-reconciler/internal/provider"
	repo "github.com/baharkarakas/pix-reconciler/internal/repository"
	"github.com/baharkarakas/pix-reconciler/internal/repository/memory"
	"github.com/baharkarakas/pix-reconciler/internal/services"
)

// fakePushin imitates the provider's cash-in and status endpoints.
type fakePushin struct {
	mu       sync.Mutex
	statuses map[string]string
	nextID   string
	failWith int
}

func (f *fakePushin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		_, _ = w.Write([]byte(`{"message":"value below provider minimum"}`))
		return
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/pix/cashIn":
		var body struct {
			Value int64 `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.statuses[f.nextID] = "created"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": f.nextID, "status": "created", "value": body.Value,
			"qr_code": "000201pix-" + f.nextID, "qr_code_base64": "data:image/png;base64,AA==",
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/transactions/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		st, ok := f.statuses[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "status": st, "value": 1000})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePushin) fail(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = code
}

func (f *fakePushin) set(id, st string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = st
}

type testServer struct {
	srv    *httptest.Server
	repos  repo.Repositories
	fake   *fakePushin
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

// newTestServerWith lets a test swap reconciler dependencies before the router is built.
func newTestServerWith(t *testing.T, tweak func(*services.ReconcilerDeps)) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := &fakePushin{statuses: map[string]string{}, nextID: "tx-1"}
	prov := httptest.NewServer(fake)
	t.Cleanup(prov.Close)

	repos := memory.NewRepositories()
	deps := services.ReconcilerDeps{
		Transactions: repos.Transactions,
		AuditLogs:    repos.AuditLogs,
		Log:          log,
	}
	if tweak != nil {
		tweak(&deps)
	}
	rec := services.NewReconciler(deps)
	client := provider.New(provider.Config{BaseURL: prov.URL, Timeout: time.Second}, log)
	svc := services.NewPaymentService(repos, client, rec, nil, 50, log)
	tokens := auth.NewTokenManager("test-secret", "pix-reconciler", time.Hour)

	h := NewRouter(RouterDeps{
		Cfg:        config.Config{RateRPS: 0},
		Payments:   svc,
		Reconciler: rec,
		Tokens:     tokens,
		Log:        log,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, repos: repos, fake: fake, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, body string, header ...string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestCreatePayment(t *testing.T) {
	s := newTestServer(t)
	resp, out := s.do(t, http.MethodPost, "/api/v1/payments",
		`{"amount":10.00,"description":"ebook","payerName":"Ana","payerDocument":"123.456.789-01","metadata":{"deliveryRef":"d-1"}}`)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "tx-1", out["transactionId"])
	assert.Equal(t, "000201pix-tx-1", out["presentationCode"])
	assert.Equal(t, "PENDING", out["state"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestCreatePaymentValidation(t *testing.T) {
	s := newTestServer(t)
	for name, body := range map[string]string{
		"sub-cent amount": `{"amount":10.001,"payerName":"Ana"}`,
		"zero amount":     `{"amount":0,"payerName":"Ana"}`,
		"missing amount":  `{"payerName":"Ana"}`,
		"missing payer":   `{"amount":10}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, out := s.do(t, http.MethodPost, "/api/v1/payments", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "validation_error", out["code"])
			assert.NotEmpty(t, out["details"])
		})
	}

	resp, _ := s.do(t, http.MethodPost, "/api/v1/payments", `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePaymentProviderError(t *testing.T) {
	s := newTestServer(t)
	s.fake.fail(http.StatusUnprocessableEntity)

	resp, out := s.do(t, http.MethodPost, "/api/v1/payments", `{"amount":1,"payerName":"Ana"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "provider_error", out["code"])
	details, ok := out["providerDetails"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "value below provider minimum", details["message"])

	all, err := s.repos.Transactions.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWebhookLifecycle(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/api/v1/payments", `{"amount":10.00,"payerName":"Ana"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, out := s.do(t, http.MethodPost, "/webhook/pix", `{"transactionId":"tx-1","status":"CONFIRMED"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["received"])

	resp, _ = s.do(t, http.MethodPost, "/webhook/pix", `{"transactionId":"tx-1","status":"FAILED"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out = s.do(t, http.MethodGet, "/api/v1/payments/tx-1/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PAID", out["state"])
	assert.Equal(t, 10.0, out["amount"])
	assert.NotEmpty(t, out["confirmedAt"])
	assert.Nil(t, out["expiredAt"])
	assert.Equal(t, "created", out["origin"])
}

func TestWebhookOrphanAndMissingID(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/webhook/pix", `{"transactionId":"ghost","status":"expired"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := s.repos.Transactions.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, models.StateExpired, got.State)
	assert.Equal(t, models.OriginOrphan, got.Origin)

	resp, _ = s.do(t, http.MethodPost, "/webhook/pix", `{"status":"PAID"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/webhook/pix", `not json at all`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/webhook/pix", `{"transactionId":"ghost-2","status":"in_analysis"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	ok, err := s.repos.Transactions.Exists(context.Background(), "ghost-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWebhookUnreadableAmountStillApplies(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	for id, body := range map[string]string{
		"tx-9":  `{"id":"tx-9","status":"PAID","value":10.5}`,
		"tx-10": `{"transactionId":"tx-10","status":"PAID","amount":"abc"}`,
	} {
		resp, out := s.do(t, http.MethodPost, "/webhook/pix", body)
		require.Equal(t, http.StatusOK, resp.StatusCode, id)
		assert.Equal(t, true, out["received"])

		got, err := s.repos.Transactions.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, models.StatePaid, got.State)
		assert.Zero(t, got.Amount)

		logs, err := s.repos.AuditLogs.List(ctx, repo.AuditFilter{TransactionID: id})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, models.OutcomeApplied, logs[0].Outcome)
		assert.Contains(t, logs[0].Detail, "ignored")
	}
}

type brokenTransactions struct{ repo.Transactions }

func (brokenTransactions) Upsert(context.Context, string, repo.MutateFunc) (models.Transaction, error) {
	return models.Transaction{}, repo.Unavailable("upsert", errors.New("connection refused"))
}

type alertLog struct {
	mu  sync.Mutex
	got []alerts.Alert
}

func (a *alertLog) Raise(_ context.Context, al alerts.Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, al)
}

func (a *alertLog) raised() []alerts.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]alerts.Alert(nil), a.got...)
}

func TestWebhookAcknowledgesStoreFailure(t *testing.T) {
	al := &alertLog{}
	s := newTestServerWith(t, func(d *services.ReconcilerDeps) {
		d.Transactions = brokenTransactions{d.Transactions}
		d.Alerter = al
	})

	resp, out := s.do(t, http.MethodPost, "/webhook/pix", `{"transactionId":"tx-1","status":"PAID"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["received"])

	got := al.raised()
	require.Len(t, got, 1)
	assert.Equal(t, alerts.StoreUnavailable, got[0].Kind)
	assert.Equal(t, "tx-1", got[0].TransactionID)
}

func TestStatusNotFoundAndPoll(t *testing.T) {
	s := newTestServer(t)

	resp, out := s.do(t, http.MethodGet, "/api/v1/payments/nope/status", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", out["state"])

	resp, _ = s.do(t, http.MethodPost, "/api/v1/payments", `{"amount":10.00,"payerName":"Ana"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, out = s.do(t, http.MethodGet, "/api/v1/payments/tx-1/status", "")
	assert.Equal(t, "PENDING", out["state"])
	assert.Equal(t, "000201pix-tx-1", out["presentationCode"])

	s.fake.set("tx-1", "paid")
	_, out = s.do(t, http.MethodGet, "/api/v1/payments/tx-1/status", "")
	assert.Equal(t, "PAID", out["state"])
}

func TestAdminRequiresOperatorToken(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/webhook/pix", `{"transactionId":"ghost","status":"PAID"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/admin/payments", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok, _, err := s.tokens.Issue("ops")
	require.NoError(t, err)
	bearer := []string{"Authorization", "Bearer " + tok}

	resp, out := s.do(t, http.MethodGet, "/api/v1/admin/payments?limit=10", "", bearer...)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, out["count"])

	resp, out = s.do(t, http.MethodGet, "/api/v1/admin/audit?transaction_id=ghost&source=callback", "", bearer...)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, out["count"])

	resp, _ = s.do(t, http.MethodGet, "/api/v1/admin/audit?source=carrier-pigeon", "", bearer...)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
