package menu

import "github.com/google/uuid"

// Choice is a single selectable option inside an option group.
// PriceModifier is in integer cents.
type Choice struct {
	ID            uuid.UUID
	Name          string
	PriceModifier int64
	IsAvailable   bool
	IsDefault     bool
	MinQuantity   int32
	MaxQuantity   *int32
}

// OptionGroup is a configurable attribute of a menu item (size, toppings, ...).
// Selection constraints depend on Type:
//   - SINGLE_SELECT / MULTI_SELECT use MinSelections / MaxSelections
//   - QUANTITY_SELECT uses AggregateMinQuantity / AggregateMaxQuantity over
//     the summed per-choice quantities
//
// NumFreeOptions is the number of selected units exempted from price,
// cheapest-first.
type OptionGroup struct {
	ID                   uuid.UUID
	Name                 string
	Type                 string
	IsRequired           bool
	MinSelections        *int32
	MaxSelections        *int32
	AggregateMinQuantity *int32
	AggregateMaxQuantity *int32
	NumFreeOptions       int32
	Choices              []Choice
}

// ChoiceByID returns the group's choice with the given id.
func (g OptionGroup) ChoiceByID(id uuid.UUID) (Choice, bool) {
	for _, c := range g.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}
