package database

import (
	"context"

	"github.com/google/uuid"
)

type GetMenuItemParams struct {
	ID      uuid.UUID
	StoreID uuid.UUID
}

const getMenuItem = `
SELECT id, store_id, name, base_price, is_available, created_at
FROM menu_items WHERE id = $1 AND store_id = $2
`

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, getMenuItem, arg.ID, arg.StoreID).
		Scan(&m.ID, &m.StoreID, &m.Name, &m.BasePrice, &m.IsAvailable, &m.CreatedAt)
	return m, err
}

const listMenuItemsByStore = `
SELECT id, store_id, name, base_price, is_available, created_at
FROM menu_items WHERE store_id = $1
ORDER BY name, id
`

func (q *Queries) ListMenuItemsByStore(ctx context.Context, storeID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.StoreID, &m.Name, &m.BasePrice, &m.IsAvailable, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const listOptionGroupsByItem = `
SELECT id, item_id, name, group_type, is_required,
       min_selections, max_selections,
       aggregate_min_quantity, aggregate_max_quantity,
       num_free_options, sort_order
FROM option_groups WHERE item_id = $1
ORDER BY sort_order, id
`

func (q *Queries) ListOptionGroupsByItem(ctx context.Context, itemID uuid.UUID) ([]OptionGroup, error) {
	rows, err := q.db.Query(ctx, listOptionGroupsByItem, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []OptionGroup
	for rows.Next() {
		var g OptionGroup
		if err := rows.Scan(
			&g.ID, &g.ItemID, &g.Name, &g.GroupType, &g.IsRequired,
			&g.MinSelections, &g.MaxSelections,
			&g.AggregateMinQuantity, &g.AggregateMaxQuantity,
			&g.NumFreeOptions, &g.SortOrder,
		); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

const listChoicesByGroup = `
SELECT id, group_id, name, price_modifier, is_available, is_default,
       min_quantity, max_quantity, sort_order
FROM option_choices WHERE group_id = $1
ORDER BY sort_order, id
`

func (q *Queries) ListChoicesByGroup(ctx context.Context, groupID uuid.UUID) ([]OptionChoice, error) {
	rows, err := q.db.Query(ctx, listChoicesByGroup, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var choices []OptionChoice
	for rows.Next() {
		var c OptionChoice
		if err := rows.Scan(
			&c.ID, &c.GroupID, &c.Name, &c.PriceModifier, &c.IsAvailable,
			&c.IsDefault, &c.MinQuantity, &c.MaxQuantity, &c.SortOrder,
		); err != nil {
			return nil, err
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}
