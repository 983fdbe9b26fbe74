package wardrobe

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce_SetFieldDoesNotMutateInput(t *testing.T) {
	var empty FormState
	s1 := Reduce(empty, SetField(FieldName, "Jacket"))
	s2 := Reduce(s1, SetField(FieldName, "Coat"))

	assert.Equal(t, "", empty.Get(FieldName))
	assert.Equal(t, "Jacket", s1.Get(FieldName))
	assert.Equal(t, "Coat", s2.Get(FieldName))
}

func TestReduce_BlankValueClearsField(t *testing.T) {
	s := Reduce(FormState{}, SetField(FieldBrand, "Zara"))
	s = Reduce(s, SetField(FieldBrand, "  "))
	assert.NotContains(t, s.Values(), FieldBrand)
}

func TestReduce_PrefillKeepsUserEdits(t *testing.T) {
	s := Reduce(FormState{}, SetField(FieldCategory, "outerwear"))
	s = Reduce(s, Prefill(map[Field]string{
		FieldCategory: "top",
		FieldColor:    "black",
		FieldMaterial: "",
	}))

	assert.Equal(t, "outerwear", s.Get(FieldCategory))
	assert.Equal(t, "black", s.Get(FieldColor))
	assert.NotContains(t, s.Values(), FieldMaterial)
}

func TestReduce_Reset(t *testing.T) {
	s := Reduce(FormState{}, SetField(FieldName, "Jacket"))
	s = Reduce(s, Reset())
	assert.Empty(t, s.Values())
}

func TestFormState_Item(t *testing.T) {
	s := FormState{}
	for _, a := range []Action{
		SetField(FieldName, "Black Leather Jacket"),
		SetField(FieldCategory, "Outerwear"),
		SetField(FieldColor, "black"),
		SetField(FieldMaterial, "leather, cotton"),
		SetField(FieldSeason, "Fall, Winter"),
		SetField(FieldPurchasePrice, "149.90"),
	} {
		s = Reduce(s, a)
	}

	it, err := s.Item("user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", it.UserID)
	assert.Equal(t, CategoryOuterwear, it.Category)
	assert.Equal(t, VisibilityPrivate, it.Visibility)
	assert.Equal(t, StringList{"leather", "cotton"}, it.Material)
	require.NotNil(t, it.Metadata)
	assert.Equal(t, []string{"fall", "winter"}, it.Metadata.Season)
	assert.Equal(t, "149.9", it.Metadata.PurchasePrice.String())
	assert.NoError(t, Validate(it))
}

func TestFormState_ItemRejectsBadPrice(t *testing.T) {
	s := Reduce(FormState{}, SetField(FieldPurchasePrice, "cheap"))
	_, err := s.Item("user-1")
	assert.Error(t, err)
}

func TestFormFromItem_RoundTrip(t *testing.T) {
	price := decimal.RequireFromString("25.50")
	orig := Item{
		UserID:     "user-1",
		Name:       "Wool coat",
		Category:   CategoryOuterwear,
		Color:      StringList{"navy"},
		Material:   StringList{"wool", "cashmere"},
		Visibility: VisibilityPublic,
		Metadata:   &Metadata{Season: []string{"winter"}, PurchasePrice: &price},
	}

	s := Reduce(FormFromItem(orig), SetField(FieldName, "Long wool coat"))
	it, err := s.Item("user-1")
	require.NoError(t, err)

	assert.Equal(t, "Long wool coat", it.Name)
	assert.Equal(t, CategoryOuterwear, it.Category)
	assert.Equal(t, StringList{"wool", "cashmere"}, it.Material)
	assert.Equal(t, VisibilityPublic, it.Visibility)
	assert.Equal(t, []string{"winter"}, it.Metadata.Season)
	assert.True(t, price.Equal(*it.Metadata.PurchasePrice))
}
