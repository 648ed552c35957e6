package report

import (
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var hundred = decimal.NewFromInt(100)

// CategoryShare is one slice of the expenditure breakdown.
type CategoryShare struct {
	Category core.Category `json:"category"`
	Label    string        `json:"label"`
	Amount   core.Money    `json:"amount"`
	Percent  float64       `json:"percent"`
}

type Breakdown struct {
	TotalExpenditure core.Money      `json:"totalExpenditure"`
	Remaining        core.Money      `json:"amountRemaining"`
	TotalCredited    core.Money      `json:"totalCredited"`
	TotalDebited     core.Money      `json:"totalDebited"`
	Categories       []CategoryShare `json:"categories"`
}

// BreakdownOf computes totals and per-category percentages. With no
// expenditure every percentage is 0.
func BreakdownOf(acc core.Account) Breakdown {
	b := Breakdown{Remaining: acc.Remaining}
	for _, c := range core.Categories {
		b.TotalExpenditure = b.TotalExpenditure.Add(acc.ByCategory[c])
	}
	for _, tx := range acc.Transactions {
		switch tx.Kind {
		case core.Credit:
			b.TotalCredited = b.TotalCredited.Add(tx.Sum)
		case core.Debit:
			b.TotalDebited = b.TotalDebited.Add(tx.Sum)
		}
	}

	total := b.TotalExpenditure.Decimal()
	b.Categories = make([]CategoryShare, 0, len(core.Categories))
	for _, c := range core.Categories {
		amount := acc.ByCategory[c]
		share := CategoryShare{Category: c, Label: c.Label(), Amount: amount}
		if total.IsPositive() {
			share.Percent = amount.Decimal().Mul(hundred).Div(total).Round(2).InexactFloat64()
		}
		b.Categories = append(b.Categories, share)
	}
	return b
}
