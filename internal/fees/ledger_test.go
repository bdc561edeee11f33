package fees

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerAddReplacesByKey(t *testing.T) {
	var l Ledger
	l.Add(Fee{Key: "shipping_a", Label: "Shipping Costs", Amount: 500})
	l.Add(Fee{Key: "volume_discount", Label: "Bulk", Amount: -1000})
	l.Add(Fee{Key: "shipping_a", Label: "Shipping Costs", Amount: 2000})

	require.Equal(t, 2, l.Len())
	f, ok := l.Get("shipping_a")
	require.True(t, ok)
	require.Equal(t, int64(2000), f.Amount)
	require.Equal(t, "shipping_a", l.List()[0].Key)
	require.Equal(t, int64(1000), l.Total())
}

func TestLedgerRemovePrefix(t *testing.T) {
	var l Ledger
	l.Add(Fee{Key: "shipping_a", Amount: 1})
	l.Add(Fee{Key: "volume_discount", Amount: -1})
	l.Add(Fee{Key: "shipping_b", Amount: 2})

	require.Equal(t, 2, l.RemovePrefix("shipping_"))
	require.Equal(t, []Fee{{Key: "volume_discount", Amount: -1}}, l.List())

	l.Remove("volume_discount")
	l.Remove("missing")
	require.Zero(t, l.Len())
	require.Zero(t, l.Total())
}

func TestLedgerIgnoresEmptyKey(t *testing.T) {
	var l Ledger
	l.Add(Fee{Amount: 10})
	require.Zero(t, l.Len())
}

func TestLedgerJSONKeepsOrder(t *testing.T) {
	var l Ledger
	l.Add(Fee{Key: "shipping_b", Label: "Shipping Costs", Amount: 2000})
	l.Add(Fee{Key: "shipping_a", Label: "Shipping Costs", Amount: 500})

	raw, err := json.Marshal(struct {
		Fees Ledger `json:"fees"`
	}{Fees: l})
	require.NoError(t, err)

	var decoded struct {
		Fees Ledger `json:"fees"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, l.List(), decoded.Fees.List())
	require.Equal(t, "shipping_b", decoded.Fees.List()[0].Key)
}
