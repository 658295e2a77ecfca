package cart

import (
	"fmt"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultMaxQuantity bounds a single line when no limit is configured.
const DefaultMaxQuantity = 99

// Cart is the line-item list of one session. Every operation holds the cart
// lock for its full duration so mutations apply one at a time.
type Cart struct {
	mu          sync.Mutex
	lines       []LineItem
	maxQuantity int
}

// NewCart builds a cart hydrated with the given lines. Lines without a
// product or with a non-positive quantity are dropped and quantities above
// the limit are clamped.
func NewCart(maxQuantity int, lines []LineItem) *Cart {
	if maxQuantity <= 0 {
		maxQuantity = DefaultMaxQuantity
	}
	c := &Cart{maxQuantity: maxQuantity}
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" || line.Quantity <= 0 {
			continue
		}
		line = line.Clone()
		line.SelectedAddons = normalizeAddons(line.SelectedAddons)
		line.Selections = normalizeSelections(line.Selections)
		if line.Quantity > maxQuantity {
			line.Quantity = maxQuantity
		}
		c.lines = append(c.lines, line)
	}
	return c
}

// MaxQuantity returns the per-line limit.
func (c *Cart) MaxQuantity() int {
	return c.maxQuantity
}

// Add merges quantity into the matching line or appends a new one. When the
// merged quantity would exceed the limit the cart is left unchanged and a
// CART_CAPACITY_EXCEEDED error is returned.
func (c *Cart) Add(key LineKey, quantity int) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	key = key.normalized()

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := FindLine(c.lines, key.ProductID, key.SelectedAddons, key.Selections)
	current := 0
	if idx >= 0 {
		current = c.lines[idx].Quantity
	}
	next := current + quantity
	if next > c.maxQuantity {
		return c.capacityError(key.ProductID, next)
	}

	if idx >= 0 {
		c.lines[idx].Quantity = next
		return nil
	}
	c.lines = append(c.lines, LineItem{
		ProductID:      key.ProductID,
		Quantity:       quantity,
		SelectedAddons: key.SelectedAddons,
		Selections:     key.Selections,
	})
	return nil
}

// Remove drops the line matching key exactly and reports whether one existed.
func (c *Cart) Remove(key LineKey) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	key = key.normalized()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(key), nil
}

// UpdateQuantity sets the matching line's quantity. Zero or below removes the
// line; above the limit is rejected. It reports whether a line changed.
func (c *Cart) UpdateQuantity(key LineKey, quantity int) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	key = key.normalized()

	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		return c.removeLocked(key), nil
	}
	if quantity > c.maxQuantity {
		return false, c.capacityError(key.ProductID, quantity)
	}

	idx := FindLine(c.lines, key.ProductID, key.SelectedAddons, key.Selections)
	if idx < 0 {
		return false, nil
	}
	c.lines[idx].Quantity = quantity
	return true, nil
}

// Clear empties the cart and returns how many lines were dropped.
func (c *Cart) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.lines)
	c.lines = nil
	return n
}

// Count returns the total number of units across lines.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CountUnits(c.lines)
}

// Lines returns a deep copy of the current lines.
func (c *Cart) Lines() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneLines(c.lines)
}

// Total prices the cart against catalog.
func (c *Cart) Total(catalog Catalog) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CartTotal(c.lines, catalog)
}

// Quote prices every line against catalog.
func (c *Cart) Quote(catalog Catalog) Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BuildQuote(c.lines, catalog)
}

func (c *Cart) removeLocked(key LineKey) bool {
	idx := FindLine(c.lines, key.ProductID, key.SelectedAddons, key.Selections)
	if idx < 0 {
		return false
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	return true
}

func (c *Cart) capacityError(productID string, requested int) error {
	return pkgerrors.New(
		pkgerrors.CodeCapacity,
		fmt.Sprintf("quantity %d exceeds the limit of %d per item", requested, c.maxQuantity),
	).WithDetails(map[string]any{
		"product_id": productID,
		"requested":  requested,
		"max":        c.maxQuantity,
	})
}

func validateKey(key LineKey) error {
	if strings.TrimSpace(key.ProductID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return nil
}
