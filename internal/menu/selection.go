package menu

import (
	"github.com/google/uuid"
	"github.com/tavolo-app/api/internal/enum"
)

// Selection is the chosen state for one option group. It is a value object:
// the With* methods return a new Selection and never mutate the receiver, so
// a Selection handed to the cart stays stable even if the UI keeps editing.
type Selection struct {
	GroupID    uuid.UUID
	choiceIDs  []uuid.UUID
	quantities map[uuid.UUID]int32
}

// NewSelection returns an empty selection for the given group.
func NewSelection(groupID uuid.UUID) Selection {
	return Selection{GroupID: groupID}
}

// ChoiceIDs returns the selected choice ids in insertion order
// (single/multi select groups).
func (s Selection) ChoiceIDs() []uuid.UUID {
	out := make([]uuid.UUID, len(s.choiceIDs))
	copy(out, s.choiceIDs)
	return out
}

// Quantity returns the selected quantity for a choice (quantity_select groups).
func (s Selection) Quantity(choiceID uuid.UUID) int32 {
	return s.quantities[choiceID]
}

// Quantities returns a copy of the choice-id → quantity map.
func (s Selection) Quantities() map[uuid.UUID]int32 {
	out := make(map[uuid.UUID]int32, len(s.quantities))
	for id, q := range s.quantities {
		out[id] = q
	}
	return out
}

// Has reports whether the choice id is selected.
func (s Selection) Has(choiceID uuid.UUID) bool {
	for _, id := range s.choiceIDs {
		if id == choiceID {
			return true
		}
	}
	return false
}

// Count returns the number of selected choices (single/multi select).
func (s Selection) Count() int {
	return len(s.choiceIDs)
}

// TotalQuantity sums selected quantities across all choices (quantity_select).
func (s Selection) TotalQuantity() int32 {
	var total int32
	for _, q := range s.quantities {
		total += q
	}
	return total
}

// WithChoice returns a copy with the choice id added. Adding an already
// selected id is a no-op.
func (s Selection) WithChoice(choiceID uuid.UUID) Selection {
	if s.Has(choiceID) {
		return s
	}
	ids := make([]uuid.UUID, len(s.choiceIDs), len(s.choiceIDs)+1)
	copy(ids, s.choiceIDs)
	return Selection{GroupID: s.GroupID, choiceIDs: append(ids, choiceID), quantities: s.quantities}
}

// WithoutChoice returns a copy with the choice id removed.
func (s Selection) WithoutChoice(choiceID uuid.UUID) Selection {
	ids := make([]uuid.UUID, 0, len(s.choiceIDs))
	for _, id := range s.choiceIDs {
		if id != choiceID {
			ids = append(ids, id)
		}
	}
	return Selection{GroupID: s.GroupID, choiceIDs: ids, quantities: s.quantities}
}

// WithOnlyChoice returns a copy holding exactly the given choice id.
// Used for single_select groups where picking replaces the previous pick.
func (s Selection) WithOnlyChoice(choiceID uuid.UUID) Selection {
	return Selection{GroupID: s.GroupID, choiceIDs: []uuid.UUID{choiceID}, quantities: s.quantities}
}

// WithQuantity returns a copy with the choice's quantity set. A quantity of 0
// removes the entry.
func (s Selection) WithQuantity(choiceID uuid.UUID, qty int32) Selection {
	q := make(map[uuid.UUID]int32, len(s.quantities)+1)
	for id, v := range s.quantities {
		q[id] = v
	}
	if qty <= 0 {
		delete(q, choiceID)
	} else {
		q[choiceID] = qty
	}
	return Selection{GroupID: s.GroupID, choiceIDs: s.choiceIDs, quantities: q}
}

// DefaultSelections builds the initial selection state for an item's option
// groups. Applied once when the groups are first loaded, never re-applied:
//   - choices flagged default and available are pre-selected
//   - a required single_select with no default pre-selects the first
//     available choice
//   - in quantity_select groups a default choice starts at max(1, its
//     MinQuantity); every other choice starts at its MinQuantity
func DefaultSelections(groups []OptionGroup) map[uuid.UUID]Selection {
	out := make(map[uuid.UUID]Selection, len(groups))
	for _, g := range groups {
		sel := NewSelection(g.ID)
		switch g.Type {
		case enum.OptionGroupQuantitySelect:
			for _, c := range g.Choices {
				qty := c.MinQuantity
				if c.IsDefault && c.IsAvailable {
					if qty < 1 {
						qty = 1
					}
				}
				if qty > 0 {
					sel = sel.WithQuantity(c.ID, qty)
				}
			}
		default:
			for _, c := range g.Choices {
				if c.IsDefault && c.IsAvailable {
					sel = sel.WithChoice(c.ID)
				}
			}
			if g.Type == enum.OptionGroupSingleSelect && g.IsRequired && sel.Count() == 0 {
				for _, c := range g.Choices {
					if c.IsAvailable {
						sel = sel.WithChoice(c.ID)
						break
					}
				}
			}
		}
		out[g.ID] = sel
	}
	return out
}
