package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Catalog carries the caller's price lookups. A nil Addons or Options map
// skips that contribution entirely.
type Catalog struct {
	Products map[string]decimal.Decimal
	Addons   map[string]decimal.Decimal
	Options  map[string]decimal.Decimal
}

// QuotedLine is the priced view of a single line.
type QuotedLine struct {
	ProductID   string          `json:"productId"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
	Precomputed bool            `json:"precomputed"`
	Missing     bool            `json:"missing"`
}

// Quote is a priced cart. MissingLines holds the indexes of lines whose
// product was not in the catalog.
type Quote struct {
	Lines        []QuotedLine    `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	MissingLines []int           `json:"missingLines"`
}

// ParsePrice reads a stored price string. Unparseable or negative values are zero.
func ParsePrice(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return nonNegative(value)
}

// LineTotal prices a line. Missing products contribute zero. A positive
// precomputed price wins over every other component.
func LineTotal(line LineItem, catalog Catalog) decimal.Decimal {
	return quoteLine(line, catalog).Total
}

// CartTotal sums LineTotal over lines.
func CartTotal(lines []LineItem, catalog Catalog) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineTotal(line, catalog))
	}
	return total
}

// BuildQuote prices each line and collects missing products.
func BuildQuote(lines []LineItem, catalog Catalog) Quote {
	q := Quote{
		Lines:        make([]QuotedLine, 0, len(lines)),
		Total:        decimal.Zero,
		MissingLines: []int{},
	}
	for i, line := range lines {
		priced := quoteLine(line, catalog)
		if priced.Missing {
			q.MissingLines = append(q.MissingLines, i)
		}
		q.Lines = append(q.Lines, priced)
		q.Total = q.Total.Add(priced.Total)
	}
	return q
}

func quoteLine(line LineItem, catalog Catalog) QuotedLine {
	out := QuotedLine{
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		UnitPrice: decimal.Zero,
		Total:     decimal.Zero,
	}

	base, ok := catalog.Products[line.ProductID]
	if !ok {
		out.Missing = true
		return out
	}
	qty := decimal.NewFromInt(int64(line.Quantity))
	sel := line.Selections

	if sel != nil && sel.PrecomputedPrice != nil {
		if precomputed := ParsePrice(*sel.PrecomputedPrice); precomputed.IsPositive() {
			out.Precomputed = true
			out.UnitPrice = precomputed
			out.Total = precomputed.Mul(qty)
			return out
		}
	}

	unit := nonNegative(base)
	if sel != nil {
		if sel.Container != nil {
			unit = unit.Add(ParsePrice(sel.Container.Price))
		}
		if sel.Size != nil {
			unit = unit.Add(ParsePrice(sel.Size.Price))
		}
	}
	if catalog.Addons != nil {
		unit = unit.Add(sumPrices(catalog.Addons, line.SelectedAddons))
	}
	if catalog.Options != nil {
		unit = unit.Add(sumPrices(catalog.Options, sel.OptionIDs()))
	}

	out.UnitPrice = unit
	out.Total = unit.Mul(qty)
	return out
}

func sumPrices(prices map[string]decimal.Decimal, ids []string) decimal.Decimal {
	sum := decimal.Zero
	for _, id := range ids {
		if price, ok := prices[id]; ok {
			sum = sum.Add(nonNegative(price))
		}
	}
	return sum
}

func nonNegative(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}
