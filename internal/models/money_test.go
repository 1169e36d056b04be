package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyJSON(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`10.00`), &m))
	assert.Equal(t, Money(1000), m)

	require.NoError(t, json.Unmarshal([]byte(`"0.5"`), &m))
	assert.Equal(t, Money(50), m)

	b, err := json.Marshal(Money(1999))
	require.NoError(t, err)
	assert.Equal(t, `19.99`, string(b))
}

func TestMoneyRejectsSubCentPrecision(t *testing.T) {
	var m Money
	assert.Error(t, json.Unmarshal([]byte(`1.005`), &m))
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

func TestMoneyRejectsOverflow(t *testing.T) {
	for _, s := range []string{"184467440737095517.00", "92233720368547758.08", "-92233720368547758.09", "1e30"} {
		_, err := ParseMoney(s)
		assert.ErrorIs(t, err, errMoneyRange, s)
	}

	m, err := ParseMoney("92233720368547758.07")
	require.NoError(t, err)
	assert.Equal(t, Money(math.MaxInt64), m)
}

func TestTransactionCloneIsDeep(t *testing.T) {
	orig := Transaction{ID: "a", Payer: &Party{Name: "x"}, Metadata: map[string]any{"k": "v"}}
	c := orig.Clone()
	c.Payer.Name = "y"
	c.Metadata["k"] = "w"
	assert.Equal(t, "x", orig.Payer.Name)
	assert.Equal(t, "v", orig.Metadata["k"])
}
