package profit

import (
	"testing"

	"tradepost-ocr/api/internal/ocr"
)

func price(v float64) *float64 { return &v }

func TestCalculate(t *testing.T) {
	rows := Calculate([]ocr.ExtractedItem{
		{Name: "Gear", BuyPrice: 120, SellPrice: price(150)},
		{Name: "Ore", BuyPrice: 80, SellPrice: nil},
		{Name: "Loss", BuyPrice: 50, SellPrice: price(40)},
	}, 100)

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	g := rows[0]
	if g.ProfitPerUnit != 30 || g.TotalProfit != 3000 || g.TotalCost != 12000 || g.TotalRevenue != 15000 || !g.Valid {
		t.Fatalf("unexpected row %+v", g)
	}
	if rows[1].Valid {
		t.Fatal("row without sell price must be invalid")
	}
	if rows[2].ProfitPerUnit != -10 || !rows[2].Valid {
		t.Fatalf("unexpected loss row %+v", rows[2])
	}
}

func TestBest(t *testing.T) {
	rows := Calculate([]ocr.ExtractedItem{
		{Name: "A", BuyPrice: 10, SellPrice: price(20)},
		{Name: "B", BuyPrice: 10, SellPrice: price(30)},
		{Name: "C", BuyPrice: 5, SellPrice: price(25)},
		{Name: "D", BuyPrice: 0, SellPrice: price(1000)},
	}, 1)

	b, ok := Best(rows)
	if !ok {
		t.Fatal("expected a best row")
	}
	if b.Name != "B" {
		t.Fatalf("expected first of the tied rows (B), got %s", b.Name)
	}

	if _, ok := Best(Calculate([]ocr.ExtractedItem{{Name: "x", BuyPrice: 1}}, 1)); ok {
		t.Fatal("no valid rows means no best row")
	}
}
