package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/pix-reconciler/internal/models"
)

func TestParseCallbackJSON(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		id     string
		status string
		amount *models.Money
		payer  *models.Party
	}{
		{
			name:   "camel case with value",
			body:   `{"transactionId":"abc","status":"PAID","value":1000}`,
			id:     "abc",
			status: "PAID",
			amount: ptr(models.Money(1000)),
		},
		{
			name:   "snake case with payer object",
			body:   `{"transaction_id":"abc","status":"confirmed","amount":"250","payer":{"name":"Ana","document":"12345678901"}}`,
			id:     "abc",
			status: "confirmed",
			amount: ptr(models.Money(250)),
			payer:  &models.Party{Name: "Ana", Document: "12345678901"},
		},
		{
			name:   "flat payer fields",
			body:   `{"id":"xyz","status":"paid","payer_name":"Bia","payer_national_registration":"12345678000190"}`,
			id:     "xyz",
			status: "paid",
			payer:  &models.Party{Name: "Bia", Document: "12345678000190"},
		},
		{
			name:   "no id",
			body:   `{"status":"PAID"}`,
			status: "PAID",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cb, err := ParseCallback([]byte(tc.body), "application/json")
			require.NoError(t, err)
			assert.Equal(t, tc.id, cb.TransactionID)
			assert.Equal(t, tc.status, cb.Status)
			assert.Equal(t, tc.amount, cb.Amount)
			assert.Equal(t, tc.payer, cb.Payer)
		})
	}
}

func TestParseCallbackForm(t *testing.T) {
	cb, err := ParseCallback([]byte("id=9C1F&status=paid&value=1990&payer_name=Ana"), "application/x-www-form-urlencoded")
	require.NoError(t, err)
	assert.Equal(t, "9C1F", cb.TransactionID)
	assert.Equal(t, "paid", cb.Status)
	require.NotNil(t, cb.Amount)
	assert.Equal(t, models.Money(1990), *cb.Amount)
	assert.Equal(t, "Ana", cb.Payer.Name)
}

func TestParseCallbackRejectsGarbage(t *testing.T) {
	_, err := ParseCallback([]byte(`{"transactionId":`), "application/json")
	assert.Error(t, err)
}

func TestParseCallbackKeepsIDWhenAmountUnreadable(t *testing.T) {
	for name, body := range map[string]string{
		"decimal value":   `{"id":"tx-9","status":"PAID","value":10.5,"payer_name":"Ana"}`,
		"non-numeric":     `{"id":"tx-9","status":"PAID","amount":"abc","payer_name":"Ana"}`,
		"negative amount": `{"id":"tx-9","status":"PAID","amount":-3,"payer_name":"Ana"}`,
	} {
		t.Run(name, func(t *testing.T) {
			cb, err := ParseCallback([]byte(body), "application/json")
			require.NoError(t, err)
			assert.Equal(t, "tx-9", cb.TransactionID)
			assert.Equal(t, "PAID", cb.Status)
			assert.Nil(t, cb.Amount)
			assert.Equal(t, "Ana", cb.Payer.Name)
			require.Len(t, cb.Issues, 1)
		})
	}

	cb, err := ParseCallback([]byte("id=tx-9&status=paid&value=19.90"), "application/x-www-form-urlencoded")
	require.NoError(t, err)
	assert.Equal(t, "tx-9", cb.TransactionID)
	assert.Nil(t, cb.Amount)
	assert.Len(t, cb.Issues, 1)
}

func ptr[T any](v T) *T { return &v }
