package wardrobe

import (
	"fmt"
	"maps"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names a value of the add-item form.
type Field string

const (
	FieldName          Field = "name"
	FieldCategory      Field = "category"
	FieldColor         Field = "color"
	FieldBrand         Field = "brand"
	FieldStyle         Field = "style"
	FieldMaterial      Field = "material"
	FieldDescription   Field = "description"
	FieldImageURL      Field = "image_url"
	FieldVisibility    Field = "visibility"
	FieldSeason        Field = "season"
	FieldOccasion      Field = "occasion"
	FieldPurchasePrice Field = "purchase_price"
	FieldPurchaseDate  Field = "purchase_date"
)

// FormState is the add-item form as one immutable value. Use Reduce to
// derive a new state; the zero value is an empty form.
type FormState struct {
	values map[Field]string
}

// Get returns the current value of a field.
func (s FormState) Get(f Field) string {
	return s.values[f]
}

// Values returns a copy of all non-empty values.
func (s FormState) Values() map[Field]string {
	return maps.Clone(s.values)
}

type actionKind int

const (
	actionSet actionKind = iota
	actionPrefill
	actionReset
)

// Action is a single form transition.
type Action struct {
	kind   actionKind
	field  Field
	value  string
	values map[Field]string
}

// SetField records a user edit.
func SetField(f Field, v string) Action {
	return Action{kind: actionSet, field: f, value: v}
}

// Prefill fills derived values into fields the user has left empty.
func Prefill(values map[Field]string) Action {
	return Action{kind: actionPrefill, values: values}
}

// Reset clears the form.
func Reset() Action {
	return Action{kind: actionReset}
}

// Reduce applies an action and returns the resulting state. The input state
// is left untouched.
func Reduce(s FormState, a Action) FormState {
	switch a.kind {
	case actionReset:
		return FormState{}
	case actionSet:
		next := maps.Clone(s.values)
		if next == nil {
			next = make(map[Field]string)
		}
		if v := strings.TrimSpace(a.value); v != "" {
			next[a.field] = v
		} else {
			delete(next, a.field)
		}
		return FormState{values: next}
	case actionPrefill:
		next := maps.Clone(s.values)
		if next == nil {
			next = make(map[Field]string)
		}
		for f, v := range a.values {
			v = strings.TrimSpace(v)
			if v == "" || next[f] != "" {
				continue
			}
			next[f] = v
		}
		return FormState{values: next}
	}
	return s
}

// Item builds the record payload for owner from the form.
func (s FormState) Item(owner string) (Item, error) {
	it := Item{
		UserID:      owner,
		Name:        s.Get(FieldName),
		Category:    Category(strings.ToLower(s.Get(FieldCategory))),
		Color:       ParseStringList(s.Get(FieldColor)),
		Brand:       ParseStringList(s.Get(FieldBrand)),
		Style:       ParseStringList(s.Get(FieldStyle)),
		Material:    ParseStringList(s.Get(FieldMaterial)),
		Description: s.Get(FieldDescription),
		ImageURL:    s.Get(FieldImageURL),
		Visibility:  Visibility(strings.ToLower(s.Get(FieldVisibility))),
	}
	if it.Visibility == "" {
		it.Visibility = VisibilityPrivate
	}

	var meta Metadata
	hasMeta := false
	if v := s.Get(FieldSeason); v != "" {
		meta.Season = lowerList(v)
		hasMeta = true
	}
	if v := s.Get(FieldOccasion); v != "" {
		meta.Occasion = lowerList(v)
		hasMeta = true
	}
	if v := s.Get(FieldPurchasePrice); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return Item{}, fmt.Errorf("invalid purchase price %q: %w", v, err)
		}
		meta.PurchasePrice = &price
		hasMeta = true
	}
	if v := s.Get(FieldPurchaseDate); v != "" {
		meta.PurchaseDate = v
		hasMeta = true
	}
	if hasMeta {
		it.Metadata = &meta
	}
	return it, nil
}

func lowerList(v string) []string {
	list := ParseStringList(v)
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strings.ToLower(s)
	}
	return out
}

// FormFromItem returns a form holding the values of an existing item, ready
// for editing.
func FormFromItem(it Item) FormState {
	values := map[Field]string{
		FieldName:        it.Name,
		FieldCategory:    string(it.Category),
		FieldColor:       it.Color.String(),
		FieldBrand:       it.Brand.String(),
		FieldStyle:       it.Style.String(),
		FieldMaterial:    it.Material.String(),
		FieldDescription: it.Description,
		FieldImageURL:    it.ImageURL,
		FieldVisibility:  string(it.Visibility),
	}
	if m := it.Metadata; m != nil {
		values[FieldSeason] = strings.Join(m.Season, ", ")
		values[FieldOccasion] = strings.Join(m.Occasion, ", ")
		values[FieldPurchaseDate] = m.PurchaseDate
		if m.PurchasePrice != nil {
			values[FieldPurchasePrice] = m.PurchasePrice.String()
		}
	}
	return Reduce(FormState{}, Prefill(values))
}
