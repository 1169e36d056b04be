package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxID(t *testing.T) {
	assert.Nil(t, TaxID("doc", ""))
	assert.Nil(t, TaxID("doc", "123.456.789-01"))
	assert.Nil(t, TaxID("doc", "12.345.678/0001-90"))
	assert.NotNil(t, TaxID("doc", "1234"))
	assert.NotNil(t, TaxID("doc", "abc45678901"))
}

func TestMinAmount(t *testing.T) {
	assert.Nil(t, MinAmount("amount", 50, 50))
	require.NotNil(t, MinAmount("amount", 0, 50))
	assert.Equal(t, "must be >= 0.50", MinAmount("amount", 49, 50).Msg)
}

func TestErrsAddAndErr(t *testing.T) {
	var errs Errs
	errs.Add(Required("payerName", " "), nil, MaxLen("description", "ok", 10))
	require.Len(t, errs, 1)
	assert.EqualError(t, errs.Err(), "payerName: required")

	assert.NoError(t, Errs(nil).Err())
}
