package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestLineTotalPrecomputedPriceWins(t *testing.T) {
	t.Parallel()
	line := LineItem{
		ProductID:      "byo",
		Quantity:       2,
		SelectedAddons: []string{"fudge"},
		Selections: &Selections{
			Groups:           map[string][]string{"toppings": {"nuts"}},
			Container:        &Modifier{ID: "cone", Price: "10"},
			PrecomputedPrice: strPtr("75"),
		},
	}
	catalog := Catalog{
		Products: map[string]decimal.Decimal{"byo": dec("999")},
		Addons:   map[string]decimal.Decimal{"fudge": dec("8")},
		Options:  map[string]decimal.Decimal{"nuts": dec("3")},
	}

	requireDecimal(t, "150", LineTotal(line, catalog))
}

func TestLineTotalComposesModifiersAddonsAndOptions(t *testing.T) {
	t.Parallel()
	line := LineItem{
		ProductID:      "sundae",
		Quantity:       3,
		SelectedAddons: []string{"fudge"},
		Selections: &Selections{
			Container: &Modifier{ID: "bowl", Name: "Bowl", Price: "10"},
			Size:      &Modifier{ID: "large", Name: "Large", Price: "5"},
		},
	}
	catalog := Catalog{
		Products: map[string]decimal.Decimal{"sundae": dec("50")},
		Addons:   map[string]decimal.Decimal{"fudge": dec("8")},
	}

	requireDecimal(t, "219", LineTotal(line, catalog))
}

func TestLineTotalOptionsSkipReservedKeys(t *testing.T) {
	t.Parallel()
	line := LineItem{
		ProductID: "byo",
		Quantity:  1,
		Selections: &Selections{
			Groups:   map[string][]string{"toppings": {"nuts", "unknown"}, "sauce": {"caramel"}},
			Metadata: map[string][]string{"_note": {"nuts"}},
		},
	}
	catalog := Catalog{
		Products: map[string]decimal.Decimal{"byo": dec("4")},
		Options:  map[string]decimal.Decimal{"nuts": dec("1.25"), "caramel": dec("0.75")},
	}

	requireDecimal(t, "6", LineTotal(line, catalog))

	catalog.Options = nil
	requireDecimal(t, "4", LineTotal(line, catalog))
}

func TestLineTotalMissingProductIsZero(t *testing.T) {
	t.Parallel()
	line := LineItem{ProductID: "gone", Quantity: 4, Selections: &Selections{PrecomputedPrice: strPtr("10")}}
	requireDecimal(t, "0", LineTotal(line, Catalog{Products: map[string]decimal.Decimal{}}))
}

func TestLineTotalMalformedPricesAreZero(t *testing.T) {
	t.Parallel()
	line := LineItem{
		ProductID: "p",
		Quantity:  2,
		Selections: &Selections{
			Container:        &Modifier{ID: "cone", Price: "ten"},
			Size:             &Modifier{ID: "s", Price: "-4"},
			PrecomputedPrice: strPtr("abc"),
		},
	}
	catalog := Catalog{Products: map[string]decimal.Decimal{"p": dec("3")}}

	requireDecimal(t, "6", LineTotal(line, catalog))

	line.Selections.PrecomputedPrice = strPtr("0")
	requireDecimal(t, "6", LineTotal(line, catalog))
}

func TestParsePrice(t *testing.T) {
	t.Parallel()
	requireDecimal(t, "1.5", ParsePrice(" 1.50 "))
	requireDecimal(t, "0", ParsePrice(""))
	requireDecimal(t, "0", ParsePrice("NaN"))
	requireDecimal(t, "0", ParsePrice("-2"))
}

func TestCartTotalAndQuote(t *testing.T) {
	t.Parallel()
	lines := []LineItem{
		{ProductID: "a", Quantity: 2},
		{ProductID: "missing", Quantity: 1},
		{ProductID: "b", Quantity: 1, Selections: &Selections{PrecomputedPrice: strPtr("7.25")}},
	}
	catalog := Catalog{Products: map[string]decimal.Decimal{"a": dec("3.10"), "b": dec("1")}}

	requireDecimal(t, "13.45", CartTotal(lines, catalog))

	q := BuildQuote(lines, catalog)
	requireDecimal(t, "13.45", q.Total)
	require.Equal(t, []int{1}, q.MissingLines)
	require.Len(t, q.Lines, 3)
	require.True(t, q.Lines[1].Missing)
	require.True(t, q.Lines[2].Precomputed)
	requireDecimal(t, "3.1", q.Lines[0].UnitPrice)

	empty := BuildQuote(nil, catalog)
	requireDecimal(t, "0", empty.Total)
	require.Empty(t, empty.MissingLines)
}

func TestCartTotalMethod(t *testing.T) {
	t.Parallel()
	c := NewCart(10, nil)
	require.NoError(t, c.Add(key("a", nil, nil), 2))
	catalog := Catalog{Products: map[string]decimal.Decimal{"a": dec("2.5")}}
	requireDecimal(t, "5", c.Total(catalog))
	requireDecimal(t, "5", c.Quote(catalog).Total)
}
