// Package wardrobe holds the wardrobe item model and the client-side state
// that callers keep around it: the in-memory item collection and the add-item
// form state.
package wardrobe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the fixed garment category enumeration.
type Category string

const (
	CategoryTop         Category = "top"
	CategoryBottom      Category = "bottom"
	CategoryDress       Category = "dress"
	CategoryOuterwear   Category = "outerwear"
	CategoryShoes       Category = "shoes"
	CategoryAccessories Category = "accessories"
	CategoryBags        Category = "bags"
	CategoryOther       Category = "other"
)

// Categories lists every valid category in declaration order.
var Categories = []Category{
	CategoryTop,
	CategoryBottom,
	CategoryDress,
	CategoryOuterwear,
	CategoryShoes,
	CategoryAccessories,
	CategoryBags,
	CategoryOther,
}

// Visibility controls who can see an item.
type Visibility string

const (
	VisibilityPrivate   Visibility = "private"
	VisibilityPublic    Visibility = "public"
	VisibilityCommunity Visibility = "community"
)

// Seasons and occasions accepted in item metadata.
var (
	Seasons   = []string{"spring", "summer", "fall", "winter"}
	Occasions = []string{"casual", "formal", "work", "party", "sport", "travel"}
)

// Item is one cataloged garment. JSON names match the remote items table.
type Item struct {
	ID          string     `json:"id,omitempty"`
	UserID      string     `json:"user_id" validate:"required"`
	Name        string     `json:"name" validate:"required"`
	Category    Category   `json:"category" validate:"required,oneof=top bottom dress outerwear shoes accessories bags other"`
	Color       StringList `json:"color,omitempty"`
	Brand       StringList `json:"brand,omitempty"`
	Style       StringList `json:"style,omitempty"`
	Material    StringList `json:"material,omitempty"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty" validate:"omitempty,url"`
	Visibility  Visibility `json:"visibility" validate:"required,oneof=private public community"`
	Metadata    *Metadata  `json:"metadata,omitempty"`
	WearCount   int        `json:"wear_count" validate:"gte=0"`
	LastWorn    *time.Time `json:"last_worn,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// Metadata is the optional structured part of an item.
type Metadata struct {
	Season        []string         `json:"season,omitempty" validate:"omitempty,dive,oneof=spring summer fall winter"`
	Occasion      []string         `json:"occasion,omitempty" validate:"omitempty,dive,oneof=casual formal work party sport travel"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	PurchaseDate  string           `json:"purchase_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RecordWear returns a copy of the item worn once more at now.
func (it Item) RecordWear(now time.Time) Item {
	it.WearCount++
	t := now.UTC()
	it.LastWorn = &t
	return it
}

// Patch returns the mutable columns of the item as a map suitable for a
// row update. Owner and id are never part of the patch.
func (it Item) Patch() (map[string]any, error) {
	b, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("encode item patch: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode item patch: %w", err)
	}
	delete(m, "id")
	delete(m, "user_id")
	delete(m, "created_at")
	return m, nil
}

// StringList is a field that the store may hold either as a single string or
// as a list of strings.
type StringList []string

// MarshalJSON encodes a single value as a plain string.
func (s StringList) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON accepts a string, an array of strings or null.
func (s *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if v == "" {
			*s = nil
			return nil
		}
		*s = StringList{v}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = list
	return nil
}

// String joins the values with ", ".
func (s StringList) String() string {
	return strings.Join(s, ", ")
}

// ParseStringList splits a comma separated value into a list, dropping blanks.
func ParseStringList(v string) StringList {
	var out StringList
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
