package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/baharkarakas/pix-reconciler/internal/models"
)

var errBadCallback = errors.New("callback body is neither JSON nor a form")

// Callback is a provider notification reduced to the fields reconciliation reads.
// Amounts arrive in centavos, as the provider sends them.
type Callback struct {
	TransactionID string
	Status        string
	Amount        *models.Money
	Payer         *models.Party

	// Issues lists fields that were present but unreadable. They are dropped, not fatal.
	Issues []string
}

// ParseCallback accepts the JSON and form-encoded variants providers send.
// A body that parses but has no id yields an empty TransactionID, not an error.
// An unreadable amount leaves Amount nil and is noted in Issues.
func ParseCallback(body []byte, contentType string) (Callback, error) {
	trimmed := bytes.TrimSpace(body)
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		(len(trimmed) > 0 && trimmed[0] != '{') {
		return parseForm(trimmed)
	}
	return parseJSON(trimmed)
}

func parseJSON(b []byte) (Callback, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return Callback{}, fmt.Errorf("decode callback: %w", err)
	}

	cb := Callback{
		TransactionID: firstString(m, "transactionId", "transaction_id", "id"),
		Status:        firstString(m, "status"),
	}
	for _, k := range []string{"amount", "value"} {
		if v, ok := m[k]; ok && v != nil {
			if amt, err := centavos(v); err != nil {
				cb.Issues = append(cb.Issues, fmt.Sprintf("%s ignored: %v", k, err))
			} else {
				cb.Amount = &amt
			}
			break
		}
	}

	payer := &models.Party{}
	if p, ok := m["payer"].(map[string]any); ok {
		payer.Name = firstString(p, "name", "payer_name")
		payer.Document = firstString(p, "document", "national_registration", "payer_national_registration")
	}
	if payer.Name == "" {
		payer.Name = firstString(m, "payer_name")
	}
	if payer.Document == "" {
		payer.Document = firstString(m, "payer_national_registration")
	}
	if !payer.Empty() {
		cb.Payer = payer
	}
	return cb, nil
}

func parseForm(b []byte) (Callback, error) {
	vals, err := url.ParseQuery(string(b))
	if err != nil {
		return Callback{}, fmt.Errorf("%w: %w", errBadCallback, err)
	}
	get := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(vals.Get(k)); v != "" {
				return v
			}
		}
		return ""
	}

	cb := Callback{
		TransactionID: get("transactionId", "transaction_id", "id"),
		Status:        get("status"),
	}
	if v := get("amount", "value"); v != "" {
		if amt, err := centavos(json.Number(v)); err != nil {
			cb.Issues = append(cb.Issues, fmt.Sprintf("amount ignored: %v", err))
		} else {
			cb.Amount = &amt
		}
	}
	payer := &models.Party{Name: get("payer_name"), Document: get("payer_national_registration")}
	if !payer.Empty() {
		cb.Payer = payer
	}
	return cb, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func centavos(v any) (models.Money, error) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = strings.TrimSpace(n)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	c, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer number of centavos: %q", s)
	}
	if c < 0 {
		return 0, fmt.Errorf("negative amount %d", c)
	}
	return models.Money(c), nil
}
