package cart

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Reserved selection keys used by the flat storage form.
const (
	reservedPrefix     = "_"
	keyContainer       = "_container"
	keySize            = "_size"
	keyCalculatedPrice = "_calculatedPrice"
)

// Modifier is a priced structural choice such as a container or size.
// Price is kept as the stored string and parsed only when pricing.
type Modifier struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

func (m *Modifier) equal(o *Modifier) bool {
	if m == nil || o == nil {
		return m == nil && o == nil
	}
	return m.ID == o.ID && m.Name == o.Name && m.Price == o.Price
}

func (m *Modifier) clone() *Modifier {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func (m *Modifier) tuple() []string {
	return []string{m.ID, m.Name, m.Price}
}

func modifierFromTuple(values []string) *Modifier {
	if len(values) == 0 {
		return nil
	}
	m := &Modifier{ID: values[0]}
	if len(values) > 1 {
		m.Name = values[1]
	}
	if len(values) > 2 {
		m.Price = values[2]
	}
	return m
}

// Selections describes a customized line. Groups holds genuine option groups;
// container, size and precomputed price are explicit. Any other reserved key
// found in stored data lands in Metadata so it still takes part in identity.
//
// On the wire Selections is the flat map the storefront has always stored:
//
//	{"toppings":["sprinkles"],"_container":["cone","Waffle Cone","1.50"],"_calculatedPrice":["75"]}
type Selections struct {
	Groups           map[string][]string
	Container        *Modifier
	Size             *Modifier
	PrecomputedPrice *string
	Metadata         map[string][]string
}

// SelectionsFromMap splits a flat selection map into its tagged form.
// A nil map yields nil.
func SelectionsFromMap(flat map[string][]string) *Selections {
	if flat == nil {
		return nil
	}
	s := &Selections{}
	for key, values := range flat {
		switch {
		case key == keyContainer:
			s.Container = modifierFromTuple(values)
		case key == keySize:
			s.Size = modifierFromTuple(values)
		case key == keyCalculatedPrice:
			if len(values) > 0 {
				price := values[0]
				s.PrecomputedPrice = &price
			}
		case strings.HasPrefix(key, reservedPrefix):
			if s.Metadata == nil {
				s.Metadata = map[string][]string{}
			}
			s.Metadata[key] = copyStrings(values)
		default:
			if s.Groups == nil {
				s.Groups = map[string][]string{}
			}
			s.Groups[key] = copyStrings(values)
		}
	}
	return s
}

// ValidateReservedEntry reports whether a reserved key carries a shape the
// tagged form can hold without losing information. Container and size take an
// id plus optional name and price; a precomputed price is a single value.
// Stored data is still read leniently by SelectionsFromMap.
func ValidateReservedEntry(key string, values []string) error {
	switch key {
	case keyContainer, keySize:
		if len(values) == 0 || len(values) > 3 {
			return fmt.Errorf("%s must have between 1 and 3 values", key)
		}
		if strings.TrimSpace(values[0]) == "" {
			return fmt.Errorf("%s id is required", key)
		}
	case keyCalculatedPrice:
		if len(values) != 1 || strings.TrimSpace(values[0]) == "" {
			return fmt.Errorf("%s must be a single non-empty value", key)
		}
	}
	return nil
}

// Map returns the flat storage form.
func (s *Selections) Map() map[string][]string {
	if s == nil {
		return nil
	}
	flat := make(map[string][]string, len(s.Groups)+len(s.Metadata)+3)
	for key, values := range s.Groups {
		flat[key] = copyStrings(values)
	}
	for key, values := range s.Metadata {
		flat[key] = copyStrings(values)
	}
	if s.Container != nil {
		flat[keyContainer] = s.Container.tuple()
	}
	if s.Size != nil {
		flat[keySize] = s.Size.tuple()
	}
	if s.PrecomputedPrice != nil {
		flat[keyCalculatedPrice] = []string{*s.PrecomputedPrice}
	}
	return flat
}

// IsEmpty reports whether no group or reserved entry is set.
func (s *Selections) IsEmpty() bool {
	if s == nil {
		return true
	}
	return len(s.Groups) == 0 &&
		len(s.Metadata) == 0 &&
		s.Container == nil &&
		s.Size == nil &&
		s.PrecomputedPrice == nil
}

// Clone returns a deep copy.
func (s *Selections) Clone() *Selections {
	if s == nil {
		return nil
	}
	cp := &Selections{
		Groups:    copyGroups(s.Groups),
		Container: s.Container.clone(),
		Size:      s.Size.clone(),
		Metadata:  copyGroups(s.Metadata),
	}
	if s.PrecomputedPrice != nil {
		price := *s.PrecomputedPrice
		cp.PrecomputedPrice = &price
	}
	return cp
}

// OptionIDs lists every option id across the genuine groups in stable order.
func (s *Selections) OptionIDs() []string {
	if s == nil || len(s.Groups) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Groups))
	for key := range s.Groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var ids []string
	for _, key := range keys {
		ids = append(ids, s.Groups[key]...)
	}
	return ids
}

func (s *Selections) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Map())
}

func (s *Selections) UnmarshalJSON(data []byte) error {
	var flat map[string][]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	decoded := SelectionsFromMap(flat)
	if decoded == nil {
		decoded = &Selections{}
	}
	*s = *decoded
	return nil
}

// normalizeSelections collapses an empty selection set to nil.
func normalizeSelections(s *Selections) *Selections {
	if s.IsEmpty() {
		return nil
	}
	return s.Clone()
}

func normalizeAddons(addons []string) []string {
	if len(addons) == 0 {
		return nil
	}
	return copyStrings(addons)
}

func copyStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func copyGroups(groups map[string][]string) map[string][]string {
	if groups == nil {
		return nil
	}
	out := make(map[string][]string, len(groups))
	for key, values := range groups {
		out[key] = copyStrings(values)
	}
	return out
}
