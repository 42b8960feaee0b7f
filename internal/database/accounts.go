package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentAccountColumns = `id, store_id, provider, account_id, onboarding_complete,
       requirements_status, capabilities_status, organization_id,
       onboarding_status, can_receive_payments, can_receive_settlements, updated_at`

func scanPaymentAccount(row interface{ Scan(dest ...any) error }) (PaymentAccount, error) {
	var a PaymentAccount
	err := row.Scan(
		&a.ID, &a.StoreID, &a.Provider, &a.AccountID, &a.OnboardingComplete,
		&a.RequirementsStatus, &a.CapabilitiesStatus, &a.OrganizationID,
		&a.OnboardingStatus, &a.CanReceivePayments, &a.CanReceiveSettlements, &a.UpdatedAt,
	)
	return a, err
}

type GetPaymentAccountParams struct {
	StoreID  uuid.UUID
	Provider string
}

const getPaymentAccount = `SELECT ` + paymentAccountColumns + `
FROM payment_accounts WHERE store_id = $1 AND provider = $2`

func (q *Queries) GetPaymentAccount(ctx context.Context, arg GetPaymentAccountParams) (PaymentAccount, error) {
	return scanPaymentAccount(q.db.QueryRow(ctx, getPaymentAccount, arg.StoreID, arg.Provider))
}

const listPaymentAccountsByStore = `SELECT ` + paymentAccountColumns + `
FROM payment_accounts WHERE store_id = $1 ORDER BY provider`

func (q *Queries) ListPaymentAccountsByStore(ctx context.Context, storeID uuid.UUID) ([]PaymentAccount, error) {
	rows, err := q.db.Query(ctx, listPaymentAccountsByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []PaymentAccount
	for rows.Next() {
		a, err := scanPaymentAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type UpsertPaymentAccountParams struct {
	StoreID               uuid.UUID
	Provider              string
	AccountID             pgtype.Text
	OnboardingComplete    bool
	RequirementsStatus    pgtype.Text
	CapabilitiesStatus    pgtype.Text
	OrganizationID        pgtype.Text
	OnboardingStatus      pgtype.Text
	CanReceivePayments    bool
	CanReceiveSettlements bool
}

const upsertPaymentAccount = `
INSERT INTO payment_accounts (
    store_id, provider, account_id, onboarding_complete,
    requirements_status, capabilities_status, organization_id,
    onboarding_status, can_receive_payments, can_receive_settlements
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (store_id, provider) DO UPDATE SET
    account_id = EXCLUDED.account_id,
    onboarding_complete = EXCLUDED.onboarding_complete,
    requirements_status = EXCLUDED.requirements_status,
    capabilities_status = EXCLUDED.capabilities_status,
    organization_id = EXCLUDED.organization_id,
    onboarding_status = EXCLUDED.onboarding_status,
    can_receive_payments = EXCLUDED.can_receive_payments,
    can_receive_settlements = EXCLUDED.can_receive_settlements,
    updated_at = now()
RETURNING ` + paymentAccountColumns

func (q *Queries) UpsertPaymentAccount(ctx context.Context, arg UpsertPaymentAccountParams) (PaymentAccount, error) {
	return scanPaymentAccount(q.db.QueryRow(ctx, upsertPaymentAccount,
		arg.StoreID, arg.Provider, arg.AccountID, arg.OnboardingComplete,
		arg.RequirementsStatus, arg.CapabilitiesStatus, arg.OrganizationID,
		arg.OnboardingStatus, arg.CanReceivePayments, arg.CanReceiveSettlements,
	))
}
