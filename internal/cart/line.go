package cart

// LineItem is one purchasable configuration of a product held in a cart.
type LineItem struct {
	ProductID      string      `json:"productId"`
	Quantity       int         `json:"quantity"`
	SelectedAddons []string    `json:"selectedAddons,omitempty"`
	Selections     *Selections `json:"selections,omitempty"`
}

// LineKey identifies a line without its quantity.
type LineKey struct {
	ProductID      string
	SelectedAddons []string
	Selections     *Selections
}

// Key returns the identity of the line.
func (l LineItem) Key() LineKey {
	return LineKey{ProductID: l.ProductID, SelectedAddons: l.SelectedAddons, Selections: l.Selections}
}

// Clone returns a deep copy.
func (l LineItem) Clone() LineItem {
	return LineItem{
		ProductID:      l.ProductID,
		Quantity:       l.Quantity,
		SelectedAddons: copyStrings(l.SelectedAddons),
		Selections:     l.Selections.Clone(),
	}
}

func (l LineItem) matches(productID string, addons []string, selections *Selections) bool {
	return l.ProductID == productID &&
		AddonsEqual(l.SelectedAddons, addons) &&
		SelectionsEqual(l.Selections, selections)
}

func (k LineKey) normalized() LineKey {
	return LineKey{
		ProductID:      k.ProductID,
		SelectedAddons: normalizeAddons(k.SelectedAddons),
		Selections:     normalizeSelections(k.Selections),
	}
}

func cloneLines(lines []LineItem) []LineItem {
	out := make([]LineItem, len(lines))
	for i := range lines {
		out[i] = lines[i].Clone()
	}
	return out
}

// CountUnits sums quantities across lines.
func CountUnits(lines []LineItem) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}
