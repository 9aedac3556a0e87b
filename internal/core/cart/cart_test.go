package cart

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartItem_JSONPriceIsNumber(t *testing.T) {
	item := CartItem{ID: 4, Name: "Mug", Price: decimal.RequireFromString("12.50"), Quantity: 2}

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":4,"name":"Mug","price":12.5,"quantity":2}`, string(data))

	var back CartItem
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Price.Equal(item.Price))
	assert.Equal(t, item.Quantity, back.Quantity)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    []CartItem
		want  []ProductID
		quant []int
	}{
		{
			name: "empty",
			in:   nil,
			want: []ProductID{},
		},
		{
			name:  "merges duplicates keeping first position",
			in:    []CartItem{{ID: 2, Quantity: 1}, {ID: 1, Quantity: 1}, {ID: 2, Quantity: 4}},
			want:  []ProductID{2, 1},
			quant: []int{5, 1},
		},
		{
			name:  "drops non positive quantities and zero ids",
			in:    []CartItem{{ID: 1, Quantity: 0}, {ID: 0, Quantity: 3}, {ID: 3, Quantity: -1}, {ID: 4, Quantity: 2}},
			want:  []ProductID{4},
			quant: []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := State{Items: Normalize(tt.in)}
			assert.Equal(t, tt.want, got.IDs())
			for i, q := range tt.quant {
				assert.Equal(t, q, got.Items[i].Quantity)
			}
		})
	}
}

func TestState_Helpers(t *testing.T) {
	st := State{
		Items: []CartItem{
			{ID: 1, Price: decimal.NewFromInt(2), Quantity: 3},
			{ID: 2, Price: decimal.RequireFromString("0.5"), Quantity: 2},
		},
		Selected: []ProductID{2},
	}

	item, ok := st.Item(2)
	require.True(t, ok)
	assert.True(t, item.Subtotal().Equal(decimal.NewFromInt(1)))

	_, ok = st.Item(9)
	assert.False(t, ok)

	assert.True(t, st.IsSelected(2))
	assert.False(t, st.IsSelected(1))
	assert.Equal(t, []ProductID{2}, State{Items: st.SelectedItems()}.IDs())

	totals := st.Totals()
	assert.True(t, totals.OverallTotal.Equal(decimal.NewFromInt(7)))
	assert.True(t, totals.SelectedTotal.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 2, totals.SelectedCount)
}
