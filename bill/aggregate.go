package bill

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Aggregate flattens orders into billable entries, one per product line, in source order.
// Malformed subtotals count as zero; lines without a positive quantity are skipped.
func Aggregate(orders []Order) []BillableEntry {
	entries := make([]BillableEntry, 0, countLines(orders))
	for _, order := range orders {
		for _, line := range order.Lines {
			if line.Quantity <= 0 {
				continue
			}
			entries = append(entries, BillableEntry{
				ID:        EntryID(order.ID, line.ID),
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Name:      line.Name,
				Options:   append([]string(nil), line.Options...),
				Notes:     line.Notes,
				CreatedAt: line.CreatedAt,
				Quantity:  line.Quantity,
				Subtotal:  ParseAmount(line.Subtotal),
			})
		}
	}
	return entries
}

// TotalAccumulated sums the totals of all orders.
func TotalAccumulated(orders []Order) float64 {
	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(parseDecimal(order.Total))
	}
	return total.InexactFloat64()
}

// EntryID builds the entry id of a product line.
func EntryID(orderID, lineID string) string {
	return fmt.Sprintf("%s-%s", orderID, lineID)
}

// ParseAmount parses a backend decimal string, falling back to 0 when it is
// malformed or negative.
func ParseAmount(s string) float64 {
	return parseDecimal(s).InexactFloat64()
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func countLines(orders []Order) int {
	n := 0
	for _, order := range orders {
		n += len(order.Lines)
	}
	return n
}
