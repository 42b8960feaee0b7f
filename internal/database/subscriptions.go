package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const subscriptionColumns = `id, store_id, status, price_id, cancel_at_period_end,
       trial_ends_at, current_period_end, provider_reference, updated_at`

func scanSubscription(row interface{ Scan(dest ...any) error }) (Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.ID, &s.StoreID, &s.Status, &s.PriceID, &s.CancelAtPeriodEnd,
		&s.TrialEndsAt, &s.CurrentPeriodEnd, &s.ProviderReference, &s.UpdatedAt,
	)
	return s, err
}

const getSubscriptionByStore = `SELECT ` + subscriptionColumns + `
FROM subscriptions WHERE store_id = $1`

func (q *Queries) GetSubscriptionByStore(ctx context.Context, storeID uuid.UUID) (Subscription, error) {
	return scanSubscription(q.db.QueryRow(ctx, getSubscriptionByStore, storeID))
}

type UpsertSubscriptionParams struct {
	StoreID           uuid.UUID
	Status            string
	PriceID           pgtype.Text
	CancelAtPeriodEnd bool
	TrialEndsAt       pgtype.Timestamptz
	CurrentPeriodEnd  pgtype.Timestamptz
	ProviderReference pgtype.Text
}

const upsertSubscription = `
INSERT INTO subscriptions (
    store_id, status, price_id, cancel_at_period_end,
    trial_ends_at, current_period_end, provider_reference
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (store_id) DO UPDATE SET
    status = EXCLUDED.status,
    price_id = EXCLUDED.price_id,
    cancel_at_period_end = EXCLUDED.cancel_at_period_end,
    trial_ends_at = EXCLUDED.trial_ends_at,
    current_period_end = EXCLUDED.current_period_end,
    provider_reference = EXCLUDED.provider_reference,
    updated_at = now()
RETURNING ` + subscriptionColumns

func (q *Queries) UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) (Subscription, error) {
	return scanSubscription(q.db.QueryRow(ctx, upsertSubscription,
		arg.StoreID, arg.Status, arg.PriceID, arg.CancelAtPeriodEnd,
		arg.TrialEndsAt, arg.CurrentPeriodEnd, arg.ProviderReference,
	))
}
