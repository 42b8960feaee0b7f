package cart_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/tavolo-app/api/internal/cart"
	"github.com/tavolo-app/api/internal/enum"
	"github.com/tavolo-app/api/internal/menu"
)

func testGroups() ([]menu.OptionGroup, map[uuid.UUID]menu.Selection) {
	small := menu.Choice{ID: uuid.New(), Name: "Small", PriceModifier: 0, IsAvailable: true}
	large := menu.Choice{ID: uuid.New(), Name: "Large", PriceModifier: 200, IsAvailable: true}
	size := menu.OptionGroup{
		ID:         uuid.New(),
		Name:       "Size",
		Type:       enum.OptionGroupSingleSelect,
		IsRequired: true,
		Choices:    []menu.Choice{small, large},
	}
	sel := menu.NewSelection(size.ID).WithOnlyChoice(large.ID)
	return []menu.OptionGroup{size}, map[uuid.UUID]menu.Selection{size.ID: sel}
}

func TestNewItem_FreezesOptionsAndPrices(t *testing.T) {
	groups, sels := testGroups()
	itemID := uuid.New()

	it := cart.NewItem(itemID, "Flat White", 1099, 2, groups, sels)

	if it.OptionsPrice != 200 {
		t.Errorf("options price: got %d, want 200", it.OptionsPrice)
	}
	if it.UnitPrice() != 1299 {
		t.Errorf("unit price: got %d, want 1299", it.UnitPrice())
	}
	if it.TotalPrice() != 2598 {
		t.Errorf("total price: got %d, want 2598", it.TotalPrice())
	}
	if len(it.SelectedOptions) != 1 || len(it.SelectedOptions[0].Choices) != 1 {
		t.Fatalf("frozen options: got %+v, want 1 group with 1 choice", it.SelectedOptions)
	}
	if it.SelectedOptions[0].Choices[0].Name != "Large" {
		t.Errorf("frozen choice: got %s, want Large", it.SelectedOptions[0].Choices[0].Name)
	}
}

func TestLineID_IdenticalConfigurationsCollapse(t *testing.T) {
	groups, sels := testGroups()
	itemID := uuid.New()

	a := cart.NewItem(itemID, "Flat White", 1099, 1, groups, sels)
	b := cart.NewItem(itemID, "Flat White", 1099, 1, groups, sels)
	if a.ID != b.ID {
		t.Fatalf("same configuration produced different line ids: %s vs %s", a.ID, b.ID)
	}

	c := cart.New(uuid.New())
	c.Add(a)
	c.Add(b)
	if got := len(c.Items()); got != 1 {
		t.Fatalf("lines after adding identical configs: got %d, want 1", got)
	}
	if got := c.Items()[0].Quantity; got != 2 {
		t.Errorf("collapsed quantity: got %d, want 2", got)
	}
}

func TestLineID_DifferentConfigurationsStaySeparate(t *testing.T) {
	groups, sels := testGroups()
	itemID := uuid.New()

	configured := cart.NewItem(itemID, "Flat White", 1099, 1, groups, sels)
	bare := cart.NewItem(itemID, "Flat White", 1099, 1, nil, nil)
	if configured.ID == bare.ID {
		t.Fatal("different configurations share a line id")
	}

	c := cart.New(uuid.New())
	c.Add(configured)
	c.Add(bare)
	if got := len(c.Items()); got != 2 {
		t.Errorf("lines: got %d, want 2", got)
	}
}

func TestCart_SetQuantityAndRemove(t *testing.T) {
	c := cart.New(uuid.New())
	it := cart.NewItem(uuid.New(), "Espresso", 350, 1, nil, nil)
	c.Add(it)

	c.SetQuantity(it.ID, 3)
	if got := c.Items()[0].Quantity; got != 3 {
		t.Errorf("quantity: got %d, want 3", got)
	}
	if got := c.Subtotal(); got != 1050 {
		t.Errorf("subtotal: got %d, want 1050", got)
	}

	c.SetQuantity(it.ID, 0)
	if !c.IsEmpty() {
		t.Error("quantity 0 should remove the line")
	}
}

func TestCheckoutSession_KeyStableAcrossRetries(t *testing.T) {
	c := cart.New(uuid.New())
	c.Add(cart.NewItem(uuid.New(), "Espresso", 350, 1, nil, nil))

	first := c.BeginCheckout()
	retry := c.BeginCheckout()
	if first.IdempotencyKey != retry.IdempotencyKey {
		t.Error("retried checkout minted a new idempotency key")
	}

	c.FinishCheckout()
	next := c.BeginCheckout()
	if next.IdempotencyKey == first.IdempotencyKey {
		t.Error("finished checkout should retire the idempotency key")
	}
}

func TestCheckoutSession_ClearedCartRetiresKey(t *testing.T) {
	c := cart.New(uuid.New())
	c.Add(cart.NewItem(uuid.New(), "Espresso", 350, 1, nil, nil))

	key := c.BeginCheckout().IdempotencyKey
	c.Clear()
	if c.BeginCheckout().IdempotencyKey == key {
		t.Error("cleared cart should retire the idempotency key")
	}
}
