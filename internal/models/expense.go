package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ExpenseCategory groups expenses for totals and breakdowns.
type ExpenseCategory string

const (
	ExpenseFuel         ExpenseCategory = "FUEL"
	ExpenseMaintenance  ExpenseCategory = "MAINTENANCE"
	ExpenseModification ExpenseCategory = "MODIFICATION"
	ExpenseInsurance    ExpenseCategory = "INSURANCE"
	ExpenseTax          ExpenseCategory = "TAX"
	ExpenseFine         ExpenseCategory = "FINE"
	ExpenseAccident     ExpenseCategory = "ACCIDENT"
	ExpenseParking      ExpenseCategory = "PARKING"
	ExpenseWashDetail   ExpenseCategory = "WASH_DETAIL"
	ExpenseOther        ExpenseCategory = "OTHER"
)

// ExpenseCategories lists every expense category in display order.
var ExpenseCategories = []ExpenseCategory{
	ExpenseFuel, ExpenseMaintenance, ExpenseModification, ExpenseInsurance, ExpenseTax,
	ExpenseFine, ExpenseAccident, ExpenseParking, ExpenseWashDetail, ExpenseOther,
}

// ParseExpenseCategory matches s against the category names, ignoring case.
func ParseExpenseCategory(s string) (ExpenseCategory, error) {
	for _, c := range ExpenseCategories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown expense category %q", s)
}

// Expense represents money spent on a vehicle.
type Expense struct {
	Category    ExpenseCategory `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
}
