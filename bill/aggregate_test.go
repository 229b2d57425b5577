package bill

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Threshold for float comparisons
const epsilon = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestAggregate(t *testing.T) {
	orders := []Order{
		{
			ID:    "10",
			Total: "45.50",
			Lines: []OrderLine{
				{ID: "1", ProductID: "p-ceviche", Name: "Ceviche", Quantity: 2, Subtotal: "30.00", Options: []string{"picante"}},
				{ID: "2", ProductID: "p-chicha", Name: "Chicha", Quantity: 1, Subtotal: "15.50", Notes: "sin hielo"},
			},
		},
		{
			ID:    "11",
			Total: "12",
			Lines: []OrderLine{
				{ID: "1", ProductID: "p-ceviche", Name: "Ceviche", Quantity: 1, Subtotal: "abc"},
				{ID: "2", ProductID: "p-agua", Name: "Agua", Quantity: 0, Subtotal: "3"},
			},
		},
	}

	entries := Aggregate(orders)
	require.Len(t, entries, 3)

	assert.Equal(t, "10-1", entries[0].ID)
	assert.Equal(t, "10", entries[0].OrderID)
	assert.Equal(t, 2, entries[0].Quantity)
	assert.True(t, floatEquals(30, entries[0].Subtotal))
	assert.True(t, floatEquals(15, entries[0].UnitSubtotal()))
	assert.Equal(t, []string{"picante"}, entries[0].Options)

	assert.Equal(t, "10-2", entries[1].ID)
	assert.Equal(t, "sin hielo", entries[1].Notes)

	// malformed subtotal degrades to zero, entry stays allocatable by quantity
	assert.Equal(t, "11-1", entries[2].ID)
	assert.Equal(t, 1, entries[2].Quantity)
	assert.Zero(t, entries[2].Subtotal)

	// idempotent
	assert.Equal(t, entries, Aggregate(orders))
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
	assert.Zero(t, TotalAccumulated(nil))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "plain decimal", input: "12.50", want: 12.5},
		{name: "integer", input: "7", want: 7},
		{name: "surrounding spaces", input: " 3.25 ", want: 3.25},
		{name: "empty", input: "", want: 0},
		{name: "garbage", input: "S/ 10", want: 0},
		{name: "negative", input: "-4", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmount(tt.input)
			if !floatEquals(got, tt.want) {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTotalAccumulated(t *testing.T) {
	orders := []Order{{ID: "1", Total: "10.10"}, {ID: "2", Total: "20.20"}, {ID: "3", Total: "bad"}}
	assert.True(t, floatEquals(30.3, TotalAccumulated(orders)))
}
