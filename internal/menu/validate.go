package menu

import (
	"github.com/google/uuid"
	"github.com/tavolo-app/api/internal/enum"
)

// Failure reasons reported by ValidateSelections.
const (
	FailureTooFewSelections  = "TOO_FEW_SELECTIONS"
	FailureTooManySelections = "TOO_MANY_SELECTIONS"
	FailureQuantityTooLow    = "QUANTITY_TOO_LOW"
	FailureQuantityTooHigh   = "QUANTITY_TOO_HIGH"
	FailureUnknownChoice     = "UNKNOWN_CHOICE"
	FailureUnavailableChoice = "UNAVAILABLE_CHOICE"
)

// GroupFailure identifies the group a selection failed on, and why.
type GroupFailure struct {
	GroupID   uuid.UUID `json:"group_id"`
	GroupName string    `json:"group_name"`
	Reason    string    `json:"reason"`
}

// ValidationResult reports per-group constraint failures. Valid() is true
// when no group failed.
type ValidationResult struct {
	Failures []GroupFailure `json:"failures,omitempty"`
}

func (r ValidationResult) Valid() bool {
	return len(r.Failures) == 0
}

// ValidateSelections checks a set of selections against the groups'
// constraints. Groups with no selection entry are checked against an empty
// selection, so a missing required group fails rather than passing silently.
func ValidateSelections(groups []OptionGroup, sels map[uuid.UUID]Selection) ValidationResult {
	var result ValidationResult
	for _, g := range groups {
		sel := sels[g.ID]
		if reason, ok := validateGroup(g, sel); !ok {
			result.Failures = append(result.Failures, GroupFailure{
				GroupID:   g.ID,
				GroupName: g.Name,
				Reason:    reason,
			})
		}
	}
	return result
}

func validateGroup(g OptionGroup, sel Selection) (string, bool) {
	// Selected ids must refer to available choices in the group.
	for _, id := range sel.ChoiceIDs() {
		c, ok := g.ChoiceByID(id)
		if !ok {
			return FailureUnknownChoice, false
		}
		if !c.IsAvailable {
			return FailureUnavailableChoice, false
		}
	}
	for id := range sel.Quantities() {
		c, ok := g.ChoiceByID(id)
		if !ok {
			return FailureUnknownChoice, false
		}
		if !c.IsAvailable && sel.Quantity(id) > 0 {
			return FailureUnavailableChoice, false
		}
	}

	switch g.Type {
	case enum.OptionGroupQuantitySelect:
		total := sel.TotalQuantity()
		min := int32(1)
		if g.AggregateMinQuantity != nil {
			min = *g.AggregateMinQuantity
		}
		if (g.IsRequired || g.AggregateMinQuantity != nil) && total < min {
			return FailureQuantityTooLow, false
		}
		if g.AggregateMaxQuantity != nil && total > *g.AggregateMaxQuantity {
			return FailureQuantityTooHigh, false
		}
	case enum.OptionGroupSingleSelect, enum.OptionGroupMultiSelect:
		count := int32(sel.Count())
		if g.IsRequired {
			min := int32(1)
			if g.MinSelections != nil {
				min = *g.MinSelections
			}
			if count < min {
				return FailureTooFewSelections, false
			}
		}
		if g.MaxSelections != nil && count > *g.MaxSelections {
			return FailureTooManySelections, false
		}
	}
	return "", true
}

// CanSelect reports whether the UI may submit the choice at the given
// quantity: the choice must be available and the quantity inside its
// per-choice bounds. This constrains selection construction; group-level
// constraints are ValidateSelections' job.
func CanSelect(c Choice, qty int32) bool {
	if !c.IsAvailable {
		return false
	}
	if qty < c.MinQuantity {
		return false
	}
	if c.MaxQuantity != nil && qty > *c.MaxQuantity {
		return false
	}
	return true
}
