package garage

import (
	"sort"

	"mygarage/internal/models"

	"github.com/shopspring/decimal"
)

// CurrencyTotal is a sum of amounts in one currency.
type CurrencyTotal struct {
	Currency string
	Total    decimal.Decimal
}

// CategoryTotal is the spending of one expense category.
type CategoryTotal struct {
	Category models.ExpenseCategory
	Total    decimal.Decimal
	Count    int
}

// Summary is the overview of one vehicle.
type Summary struct {
	Expenses      []CurrencyTotal
	DreamCost     []CurrencyTotal
	Categories    []CategoryTotal
	DreamDone     int
	DreamTotal    int
	DreamProgress int // percent, rounded down
	TrackDayCount int
}

// Summarize computes per-currency totals, the per-category breakdown, the
// wishlist completion and the number of track days for v.
func Summarize(v *models.Vehicle) Summary {
	s := Summary{
		DreamTotal:    len(v.DreamList),
		TrackDayCount: len(v.TrackLog),
	}

	expenses := make(map[string]decimal.Decimal)
	byCategory := make(map[models.ExpenseCategory]*CategoryTotal)
	for _, e := range v.Expenses {
		expenses[e.Currency] = expenses[e.Currency].Add(e.Amount)
		ct, ok := byCategory[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category}
			byCategory[e.Category] = ct
		}
		ct.Total = ct.Total.Add(e.Amount)
		ct.Count++
	}
	s.Expenses = sortedTotals(expenses)

	// Breakdown follows category order and skips categories with no spending.
	for _, c := range models.ExpenseCategories {
		if ct, ok := byCategory[c]; ok && ct.Total.IsPositive() {
			s.Categories = append(s.Categories, *ct)
		}
	}

	dream := make(map[string]decimal.Decimal)
	for _, d := range v.DreamList {
		dream[d.Currency] = dream[d.Currency].Add(d.EstimatedCost)
		if d.Done {
			s.DreamDone++
		}
	}
	s.DreamCost = sortedTotals(dream)
	if s.DreamTotal > 0 {
		s.DreamProgress = s.DreamDone * 100 / s.DreamTotal
	}

	return s
}

func sortedTotals(m map[string]decimal.Decimal) []CurrencyTotal {
	totals := make([]CurrencyTotal, 0, len(m))
	for c, t := range m {
		totals = append(totals, CurrencyTotal{Currency: c, Total: t})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Currency < totals[j].Currency })
	return totals
}
