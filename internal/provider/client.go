// Package provider talks to the PIX provider's cash-in and transaction status endpoints.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/baharkarakas/pix-reconciler/internal/metrics"
	"github.com/baharkarakas/pix-reconciler/internal/models"
)

// ErrProviderUnavailable covers timeouts and transport failures. Callers fall back to local state.
var ErrProviderUnavailable = errors.New("provider unavailable")

const DefaultTimeout = 10 * time.Second

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	WebhookURL string
}

type Client struct {
	log        *slog.Logger
	http       *resty.Client
	webhookURL string
}

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}
	return &Client{
		log:        log.With("component", "provider"),
		http:       httpClient,
		webhookURL: cfg.WebhookURL,
	}
}

type ChargeRequest struct {
	Amount      models.Money
	Description string
	Payer       *models.Party
}

type chargeBody struct {
	Value       int64  `json:"value"`
	WebhookURL  string `json:"webhook_url,omitempty"`
	Description string `json:"description,omitempty"`
	PayerName   string `json:"payer_name,omitempty"`
	PayerDoc    string `json:"payer_national_registration,omitempty"`
}

// Charge is the provider's answer to a cash-in request.
type Charge struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Value        int64  `json:"value"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
}

func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	body := chargeBody{
		Value:       int64(req.Amount),
		WebhookURL:  c.webhookURL,
		Description: req.Description,
	}
	if req.Payer != nil {
		body.PayerName = req.Payer.Name
		body.PayerDoc = req.Payer.Document
	}

	var out Charge
	resp, err := c.do(ctx, "create", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).SetResult(&out).Post("/api/pix/cashIn")
	})
	if err != nil {
		return Charge{}, err
	}
	c.log.Debug("charge created", "id", out.ID, "status", out.Status, "http_status", resp.StatusCode())
	return out, nil
}

// StatusReport is what the provider currently knows about a transaction.
type StatusReport struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Value     *int64 `json:"value"`
	PayerName string `json:"payer_name"`
	PayerDoc  string `json:"payer_national_registration"`

	Raw []byte `json:"-"`
}

func (c *Client) FetchStatus(ctx context.Context, id string) (StatusReport, error) {
	var out StatusReport
	resp, err := c.do(ctx, "status", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&out).SetPathParam("id", id).Get("/api/transactions/{id}")
	})
	if err != nil {
		return StatusReport{}, err
	}
	out.Raw = resp.Body()
	return out, nil
}

func (c *Client) do(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	details := map[string]any{}
	resp, err := send(c.http.R().SetContext(ctx).SetError(&details))
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(op, "unavailable").Inc()
		c.log.Warn("provider unreachable", "op", op, "err", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, op, err)
	}

	switch code := resp.StatusCode(); {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		metrics.ProviderRequests.WithLabelValues(op, "ok").Inc()
		return resp, nil
	default:
		metrics.ProviderRequests.WithLabelValues(op, "error").Inc()
		if len(details) == 0 && len(resp.Body()) > 0 {
			details["body"] = string(resp.Body())
		}
		return nil, &APIError{Op: op, StatusCode: code, Details: details}
	}
}
