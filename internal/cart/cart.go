// Package cart holds the client-side cart aggregate: priced line items frozen
// from menu selections, plus the checkout session that owns the idempotency
// key for order submission.
package cart

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/google/uuid"
	"github.com/tavolo-app/api/internal/menu"
)

// SelectedChoice is one frozen choice inside a line item's option snapshot.
// Price is the per-unit price modifier in cents at the time the item was
// added; Quantity is 1 for single/multi select groups.
type SelectedChoice struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Price    int64     `json:"price"`
	Quantity int32     `json:"quantity"`
}

// SelectedOption is the frozen per-group snapshot of a line item's options.
type SelectedOption struct {
	GroupID   uuid.UUID        `json:"group_id"`
	GroupName string           `json:"group_name"`
	Choices   []SelectedChoice `json:"choices"`
}

// Item is a cart line. It is immutable except for Quantity: re-configuring an
// item removes the line and adds a new one, so the option snapshot and the
// derived line id never change after creation.
type Item struct {
	ID              string           `json:"id"`
	ItemID          uuid.UUID        `json:"item_id"`
	Name            string           `json:"name"`
	Quantity        int32            `json:"quantity"`
	BasePrice       int64            `json:"base_price"`
	OptionsPrice    int64            `json:"options_price"`
	SelectedOptions []SelectedOption `json:"selected_options"`
}

// UnitPrice is the base price plus the option contribution, in cents.
func (it Item) UnitPrice() int64 {
	return it.BasePrice + it.OptionsPrice
}

// TotalPrice is the full line price: (base + options) * quantity.
func (it Item) TotalPrice() int64 {
	return it.UnitPrice() * int64(it.Quantity)
}

// NewItem freezes a configured menu item into a cart line. The selections are
// snapshotted per group in the groups' order; the selection objects themselves
// are not retained, so later UI edits cannot reach the cart.
func NewItem(itemID uuid.UUID, name string, basePrice int64, quantity int32, groups []menu.OptionGroup, sels map[uuid.UUID]menu.Selection) Item {
	var opts []SelectedOption
	var optionsPrice int64
	for _, g := range groups {
		sel := sels[g.ID]
		opts = append(opts, freezeGroup(g, sel))
		optionsPrice += menu.OptionsPrice(g, sel)
	}
	return Item{
		ID:              LineID(itemID, opts),
		ItemID:          itemID,
		Name:            name,
		Quantity:        quantity,
		BasePrice:       basePrice,
		OptionsPrice:    optionsPrice,
		SelectedOptions: opts,
	}
}

func freezeGroup(g menu.OptionGroup, sel menu.Selection) SelectedOption {
	frozen := SelectedOption{GroupID: g.ID, GroupName: g.Name}
	for _, c := range g.Choices {
		if qty := sel.Quantity(c.ID); qty > 0 {
			frozen.Choices = append(frozen.Choices, SelectedChoice{
				ID: c.ID, Name: c.Name, Price: c.PriceModifier, Quantity: qty,
			})
		} else if sel.Has(c.ID) {
			frozen.Choices = append(frozen.Choices, SelectedChoice{
				ID: c.ID, Name: c.Name, Price: c.PriceModifier, Quantity: 1,
			})
		}
	}
	return frozen
}

// LineID derives a deterministic line id from the item id and the sorted
// selected choice ids (with quantities), so identical configurations collapse
// to the same cart line.
func LineID(itemID uuid.UUID, opts []SelectedOption) string {
	var tokens []string
	for _, o := range opts {
		for _, c := range o.Choices {
			tokens = append(tokens, fmt.Sprintf("%s:%d", c.ID, c.Quantity))
		}
	}
	sort.Strings(tokens)

	h := fnv.New64a()
	h.Write([]byte(itemID.String()))
	for _, tok := range tokens {
		h.Write([]byte(tok))
	}
	return fmt.Sprintf("%s-%x", itemID, h.Sum64())
}

// Cart is an ordered collection of line items. Not safe for concurrent use;
// one cart belongs to one checkout flow.
type Cart struct {
	StoreID uuid.UUID
	items   []Item
	session *CheckoutSession
}

// New creates an empty cart for a store.
func New(storeID uuid.UUID) *Cart {
	return &Cart{StoreID: storeID}
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Add inserts a line, collapsing into an existing line when the
// configuration (line id) matches.
func (c *Cart) Add(item Item) {
	for i := range c.items {
		if c.items[i].ID == item.ID {
			c.items[i].Quantity += item.Quantity
			return
		}
	}
	c.items = append(c.items, item)
}

// SetQuantity changes a line's quantity; a quantity of 0 or less removes it.
func (c *Cart) SetQuantity(lineID string, qty int32) {
	if qty <= 0 {
		c.Remove(lineID)
		return
	}
	for i := range c.items {
		if c.items[i].ID == lineID {
			c.items[i].Quantity = qty
			return
		}
	}
}

// Remove deletes a line.
func (c *Cart) Remove(lineID string) {
	for i := range c.items {
		if c.items[i].ID == lineID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Clear empties the cart and ends any in-flight checkout session, retiring
// its idempotency key.
func (c *Cart) Clear() {
	c.items = nil
	c.session = nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Subtotal sums all line totals, in cents.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, it := range c.items {
		total += it.TotalPrice()
	}
	return total
}

// CheckoutSession owns the idempotency key for one checkout attempt. The key
// is minted once when checkout starts and survives retries, double-submits
// and browser back-navigation; it is retired only when the order reaches a
// terminal payment status or the cart is cleared.
type CheckoutSession struct {
	IdempotencyKey string
}

// BeginCheckout returns the current checkout session, minting one if checkout
// has not started. Calling it again mid-checkout returns the same session,
// which is what makes a retried submit resolve to the same order.
func (c *Cart) BeginCheckout() *CheckoutSession {
	if c.session == nil {
		c.session = &CheckoutSession{IdempotencyKey: uuid.NewString()}
	}
	return c.session
}

// FinishCheckout retires the checkout session after a terminal payment
// status. The next checkout mints a fresh key.
func (c *Cart) FinishCheckout() {
	c.session = nil
}
