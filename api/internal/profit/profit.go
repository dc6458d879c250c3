// Package profit does the trading-post arithmetic: per-unit and total profit
// across extracted rows, and the most profitable row.
package profit

import "tradepost-ocr/api/internal/ocr"

type Row struct {
	Name          string
	BuyPrice      float64
	SellPrice     float64
	ProfitPerUnit float64
	TotalProfit   float64
	TotalCost     float64
	TotalRevenue  float64
	Valid         bool
}

// Calculate computes one row per item. A missing sell price counts as 0 and
// makes the row invalid.
func Calculate(items []ocr.ExtractedItem, quantity int) []Row {
	q := float64(quantity)
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		sell := 0.0
		if it.SellPrice != nil {
			sell = *it.SellPrice
		}
		per := sell - it.BuyPrice
		rows = append(rows, Row{
			Name:          it.Name,
			BuyPrice:      it.BuyPrice,
			SellPrice:     sell,
			ProfitPerUnit: per,
			TotalProfit:   per * q,
			TotalCost:     it.BuyPrice * q,
			TotalRevenue:  sell * q,
			Valid:         it.BuyPrice > 0 && sell > 0,
		})
	}
	return rows
}

// Best returns the valid row with the highest per-unit profit; the first wins ties.
func Best(rows []Row) (Row, bool) {
	var (
		best  Row
		found bool
	)
	for _, r := range rows {
		if !r.Valid {
			continue
		}
		if !found || r.ProfitPerUnit > best.ProfitPerUnit {
			best, found = r, true
		}
	}
	return best, found
}
