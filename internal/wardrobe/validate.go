package wardrobe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrWearCountDecrease is returned when an update would lower the wear count.
	ErrWearCountDecrease = errors.New("wear count cannot decrease")
	// ErrOwnerChange is returned when an update targets a different owner.
	ErrOwnerChange = errors.New("item owner cannot change")
	// ErrNegativePrice is returned for a purchase price below zero.
	ErrNegativePrice = errors.New("purchase price must not be negative")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the item against the record schema.
func Validate(it Item) error {
	if err := validate.Struct(it); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid item: %s", describe(verrs))
		}
		return fmt.Errorf("invalid item: %w", err)
	}
	if it.Metadata != nil && it.Metadata.PurchasePrice != nil && it.Metadata.PurchasePrice.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// CheckUpdate enforces the invariants between the stored item and its update.
func CheckUpdate(prev, next Item) error {
	if prev.UserID != next.UserID {
		return ErrOwnerChange
	}
	if next.WearCount < prev.WearCount {
		return fmt.Errorf("%w: %d -> %d", ErrWearCountDecrease, prev.WearCount, next.WearCount)
	}
	return nil
}

func describe(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
