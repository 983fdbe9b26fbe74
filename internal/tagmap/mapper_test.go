package tagmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap_BlueCottonTShirt(t *testing.T) {
	f := Map([]string{"Blue Cotton T-Shirt, casual wear"})

	assert.Equal(t, "top", f.Category)
	assert.Equal(t, "blue", f.Color)
	assert.Equal(t, "cotton", f.Material)
	assert.Contains(t, f.Occasion, "casual")
	assert.Empty(t, f.Season)
	assert.Equal(t, "Blue Cotton T-Shirt", f.Name)
	assert.Equal(t, "Blue Cotton T-Shirt, casual wear", f.Description)
	assert.Empty(t, f.Brand)
}

func TestMap_EmptyInput(t *testing.T) {
	assert.NotPanics(t, func() {
		f := Map(nil)
		assert.True(t, f.Empty())
		assert.True(t, Map([]string{}).Empty())
		assert.True(t, Map([]string{"  ", ""}).Empty())
	})
}

func TestMap_NoMatchLeavesFieldsEmpty(t *testing.T) {
	f := Map([]string{"mysterious object"})
	assert.Empty(t, f.Category)
	assert.Empty(t, f.Color)
	assert.Empty(t, f.Material)
	assert.Equal(t, "Mysterious object", f.Name)
}

func TestMap_FirstDeclaredCategoryWins(t *testing.T) {
	// "shirt" (top) and "jacket" (outerwear) both match; top is declared first.
	f := Map([]string{"shirt jacket"})
	assert.Equal(t, "top", f.Category)
}

func TestMap_MultiValuedFields(t *testing.T) {
	f := Map(
		[]string{"1. A navy wool blazer, tailored", "linen lining", "great for office and travel", "autumn layering"},
		"Leather trim",
	)

	assert.Equal(t, "outerwear", f.Category)
	assert.Equal(t, "navy", f.Color)
	assert.Equal(t, []string{"fall", "winter"}, f.Season)
	assert.Equal(t, []string{"work", "travel"}, f.Occasion)
	assert.Equal(t, "linen, wool, leather", f.Material)
	assert.Equal(t, "Navy wool blazer", f.Name)
	assert.Equal(t, "1. A navy wool blazer, tailored. linen lining. great for office and travel", f.Description)
}

func TestMap_NamePrefixes(t *testing.T) {
	cases := map[string]string{
		"- the red dress":         "Red dress",
		"2) an oversized hoodie":  "Oversized hoodie",
		"• white sneakers, worn":  "White sneakers",
		"A pair of boots":         "Pair of boots",
		"theatre costume":         "Theatre costume",
	}
	for in, want := range cases {
		assert.Equal(t, want, Map([]string{in}).Name, in)
	}
}

func TestMap_Brand(t *testing.T) {
	assert.Equal(t, "Nike", Map([]string{"Nike running shoes"}).Brand)
	assert.Equal(t, "The North Face", Map([]string{"black puffer"}, "The North Face").Brand)
}

func TestFromFilename(t *testing.T) {
	f := FromFilename("black-leather-jacket.jpg")
	assert.Equal(t, "outerwear", f.Category)
	assert.Equal(t, "black", f.Color)
	assert.Empty(t, f.Material)
	assert.Equal(t, "Black Leather Jacket", f.Name)
}

func TestFromFilename_Uninformative(t *testing.T) {
	f := FromFilename("IMG_2034.HEIC")
	assert.Empty(t, f.Category)
	assert.Empty(t, f.Color)
	assert.Equal(t, "Img", f.Name)

	assert.True(t, FromFilename("20240101.jpg").Empty())
}
