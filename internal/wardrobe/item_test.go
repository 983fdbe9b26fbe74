package wardrobe

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItem() Item {
	return Item{
		UserID:     "user-1",
		Name:       "Blue Cotton T-Shirt",
		Category:   CategoryTop,
		Visibility: VisibilityPrivate,
	}
}

func TestStringList_UnmarshalStringOrArray(t *testing.T) {
	var it Item
	err := json.Unmarshal([]byte(`{"name":"x","color":"blue","material":["cotton","linen"],"brand":null,"style":""}`), &it)
	require.NoError(t, err)

	assert.Equal(t, StringList{"blue"}, it.Color)
	assert.Equal(t, StringList{"cotton", "linen"}, it.Material)
	assert.Nil(t, it.Brand)
	assert.Nil(t, it.Style)
}

func TestStringList_MarshalSingleAsString(t *testing.T) {
	b, err := json.Marshal(struct {
		One  StringList `json:"one"`
		Many StringList `json:"many"`
		None StringList `json:"none,omitempty"`
	}{One: StringList{"black"}, Many: StringList{"black", "white"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"one":"black","many":["black","white"]}`, string(b))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(validItem()))

	noName := validItem()
	noName.Name = ""
	err := Validate(noName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	badCategory := validItem()
	badCategory.Category = "hat"
	err = Validate(badCategory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category must be one of")

	badSeason := validItem()
	badSeason.Metadata = &Metadata{Season: []string{"monsoon"}}
	assert.Error(t, Validate(badSeason))

	negative := decimal.RequireFromString("-1.50")
	badPrice := validItem()
	badPrice.Metadata = &Metadata{PurchasePrice: &negative}
	assert.ErrorIs(t, Validate(badPrice), ErrNegativePrice)
}

func TestRecordWear(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	it := validItem()
	worn := it.RecordWear(now).RecordWear(now)

	assert.Equal(t, 0, it.WearCount, "original must be untouched")
	assert.Equal(t, 2, worn.WearCount)
	require.NotNil(t, worn.LastWorn)
	assert.True(t, worn.LastWorn.Equal(now))
}

func TestCheckUpdate(t *testing.T) {
	prev := validItem()
	prev.WearCount = 3

	next := prev
	next.WearCount = 4
	assert.NoError(t, CheckUpdate(prev, next))

	lower := prev
	lower.WearCount = 2
	assert.True(t, errors.Is(CheckUpdate(prev, lower), ErrWearCountDecrease))

	otherOwner := prev
	otherOwner.UserID = "user-2"
	assert.ErrorIs(t, CheckUpdate(prev, otherOwner), ErrOwnerChange)
}

func TestPatch_OmitsIdentityColumns(t *testing.T) {
	it := validItem()
	it.ID = "item-1"
	it.Color = StringList{"blue"}

	patch, err := it.Patch()
	require.NoError(t, err)
	assert.NotContains(t, patch, "id")
	assert.NotContains(t, patch, "user_id")
	assert.Equal(t, "blue", patch["color"])
	assert.Equal(t, "Blue Cotton T-Shirt", patch["name"])
}

func TestCheckUpload(t *testing.T) {
	assert.NoError(t, CheckUpload(1024, "image/jpeg"))
	assert.ErrorIs(t, CheckUpload(MaxUploadSize+1, "image/jpeg"), ErrFileTooLarge)
	assert.ErrorIs(t, CheckUpload(1024, "application/pdf"), ErrNotImage)
}

func TestPhotoExt(t *testing.T) {
	assert.Equal(t, "jpg", Photo{Name: "black-leather-jacket.JPG"}.Ext())
	assert.Equal(t, "png", Photo{Name: "camera", MIMEType: "image/png"}.Ext())
	assert.Equal(t, "bin", Photo{Name: "camera"}.Ext())
}
