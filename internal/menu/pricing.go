package menu

import (
	"sort"

	"github.com/google/uuid"
	"github.com/tavolo-app/api/internal/enum"
)

// OptionsPrice computes the price contribution of one group's selection in
// integer cents. Pure: unknown choice ids are skipped, an empty selection
// prices to 0.
//
// The group's free-choice allowance exempts the NumFreeOptions cheapest
// selected units. Ties are broken by the choice enumeration order in the
// group (stable sort), so two choices at the same price free up whichever
// the merchant listed first.
func OptionsPrice(group OptionGroup, sel Selection) int64 {
	entries := priceEntries(group, sel)
	if group.NumFreeOptions <= 0 {
		var total int64
		for _, p := range entries {
			total += p
		}
		return total
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i] < entries[j] })

	var total int64
	for i := int(group.NumFreeOptions); i < len(entries); i++ {
		total += entries[i]
	}
	return total
}

// priceEntries builds one price entry per selected unit, in choice
// enumeration order. A quantity_select choice at quantity q contributes q
// entries at its price modifier.
func priceEntries(group OptionGroup, sel Selection) []int64 {
	var entries []int64
	if group.Type == enum.OptionGroupQuantitySelect {
		for _, c := range group.Choices {
			for n := int32(0); n < sel.Quantity(c.ID); n++ {
				entries = append(entries, c.PriceModifier)
			}
		}
		return entries
	}
	for _, c := range group.Choices {
		if sel.Has(c.ID) {
			entries = append(entries, c.PriceModifier)
		}
	}
	return entries
}

// ItemTotal computes the full price of a configured item in integer cents:
// (basePrice + options) * quantity. Each group's options price is computed
// once; the item quantity multiplies the combined subtotal.
func ItemTotal(basePrice int64, quantity int32, groups []OptionGroup, sels map[uuid.UUID]Selection) int64 {
	subtotal := basePrice
	for _, g := range groups {
		subtotal += OptionsPrice(g, sels[g.ID])
	}
	return subtotal * int64(quantity)
}
