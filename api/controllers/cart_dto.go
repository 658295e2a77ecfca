package controllers

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/scoopshop-backend/api/validators"
	cartsvc "github.com/angelmondragon/scoopshop-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/scoopshop-backend/pkg/errors"
)

const (
	maxIDLength     = 128
	maxSelectionLen = 256
)

// cartLineRequest identifies a line. Selections use the flat storefront form,
// e.g. {"toppings":["sprinkles"],"_size":["m","Medium","0.50"]}.
type cartLineRequest struct {
	ProductID      string              `json:"product_id" validate:"required,max=128"`
	SelectedAddons []string            `json:"selected_addons,omitempty" validate:"omitempty,dive,required,max=128"`
	Selections     map[string][]string `json:"selections,omitempty"`
}

type addItemRequest struct {
	cartLineRequest
	Quantity *int `json:"quantity,omitempty" validate:"omitempty,min=1"`
}

type updateQuantityRequest struct {
	cartLineRequest
	Quantity *int `json:"quantity" validate:"required"`
}

type removeItemRequest struct {
	cartLineRequest
}

type quoteRequest struct {
	Products map[string]string `json:"products" validate:"required"`
	Addons   map[string]string `json:"addons,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// toKey builds the line identity. Identity strings are trimmed and checked,
// never shortened: two long ids sharing a prefix must stay distinct lines.
func (r cartLineRequest) toKey() (cartsvc.LineKey, error) {
	details := map[string]string{}

	productID, err := validators.CleanIdentifier(r.ProductID, maxIDLength)
	if err != nil {
		details["product_id"] = err.Error()
	}

	var addons []string
	for i, addon := range r.SelectedAddons {
		cleaned, err := validators.CleanIdentifier(addon, maxIDLength)
		if err != nil {
			details[fmt.Sprintf("selected_addons[%d]", i)] = err.Error()
			continue
		}
		addons = append(addons, cleaned)
	}

	var selections map[string][]string
	if r.Selections != nil {
		selections = make(map[string][]string, len(r.Selections))
		for group, values := range r.Selections {
			name, err := validators.CleanIdentifier(group, maxIDLength)
			if err != nil {
				details["selections"] = "group name " + err.Error()
				continue
			}
			field := "selections." + name
			if err := cartsvc.ValidateReservedEntry(name, values); err != nil {
				details[field] = err.Error()
				continue
			}
			cleaned := make([]string, len(values))
			for i, value := range values {
				value = strings.TrimSpace(value)
				if utf8.RuneCountInString(value) > maxSelectionLen {
					details[field] = fmt.Sprintf("values must be at most %d characters", maxSelectionLen)
					break
				}
				cleaned[i] = value
			}
			selections[name] = cleaned
		}
	}

	if len(details) > 0 {
		return cartsvc.LineKey{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return cartsvc.LineKey{
		ProductID:      productID,
		SelectedAddons: addons,
		Selections:     cartsvc.SelectionsFromMap(selections),
	}, nil
}

func (r addItemRequest) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

func (r quoteRequest) toCatalog() (cartsvc.Catalog, error) {
	details := map[string]string{}
	catalog := cartsvc.Catalog{
		Products: parsePriceMap("products", r.Products, details),
		Addons:   parsePriceMap("addons", r.Addons, details),
		Options:  parsePriceMap("options", r.Options, details),
	}
	if len(details) > 0 {
		return cartsvc.Catalog{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid price").WithDetails(details)
	}
	return catalog, nil
}

func parsePriceMap(field string, raw map[string]string, details map[string]string) map[string]decimal.Decimal {
	if len(raw) == 0 {
		return nil
	}
	prices := make(map[string]decimal.Decimal, len(raw))
	for id, value := range raw {
		price, err := decimal.NewFromString(validators.SanitizeString(value, 0))
		if err != nil {
			details[field+"."+id] = "must be a decimal"
			continue
		}
		if price.IsNegative() {
			details[field+"."+id] = "must be greater than or equal to 0"
			continue
		}
		prices[id] = price
	}
	return prices
}

type cartResponse struct {
	SessionID string             `json:"session_id"`
	Count     int                `json:"count"`
	Items     []cartLineResponse `json:"items"`
}

type cartLineResponse struct {
	ProductID      string              `json:"product_id"`
	Quantity       int                 `json:"quantity"`
	SelectedAddons []string            `json:"selected_addons"`
	Selections     map[string][]string `json:"selections,omitempty"`
}

type countResponse struct {
	Count int `json:"count"`
}

type quoteResponse struct {
	Total        string              `json:"total"`
	Lines        []quoteLineResponse `json:"lines"`
	MissingLines []int               `json:"missing_lines"`
}

type quoteLineResponse struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
	Precomputed bool   `json:"precomputed"`
	Missing     bool   `json:"missing"`
}

type ordersUpdatedResponse struct {
	SessionID string `json:"session_id"`
}

func newCartResponse(sessionID string, lines []cartsvc.LineItem) cartResponse {
	items := make([]cartLineResponse, len(lines))
	for i, line := range lines {
		addons := line.SelectedAddons
		if addons == nil {
			addons = []string{}
		} else {
			addons = append([]string(nil), addons...)
			sort.Strings(addons)
		}
		items[i] = cartLineResponse{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			SelectedAddons: addons,
			Selections:     line.Selections.Map(),
		}
	}
	return cartResponse{
		SessionID: sessionID,
		Count:     cartsvc.CountUnits(lines),
		Items:     items,
	}
}

func newSnapshotResponse(snapshot *cartsvc.Snapshot) cartResponse {
	if snapshot == nil {
		return cartResponse{Items: []cartLineResponse{}}
	}
	return newCartResponse(snapshot.SessionID, snapshot.Items)
}

func newQuoteResponse(quote *cartsvc.Quote) quoteResponse {
	resp := quoteResponse{
		Total:        quote.Total.StringFixed(2),
		Lines:        make([]quoteLineResponse, len(quote.Lines)),
		MissingLines: quote.MissingLines,
	}
	if resp.MissingLines == nil {
		resp.MissingLines = []int{}
	}
	for i, line := range quote.Lines {
		resp.Lines[i] = quoteLineResponse{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice.StringFixed(2),
			Total:       line.Total.StringFixed(2),
			Precomputed: line.Precomputed,
			Missing:     line.Missing,
		}
	}
	return resp
}
