package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Store is a merchant venue.
type Store struct {
	ID                uuid.UUID
	Name              string
	IsOpen            bool
	PreferredProvider string
	CreatedAt         time.Time
}

// User is a merchant console account.
type User struct {
	ID             uuid.UUID
	StoreID        uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	CreatedAt      time.Time
}

// MenuItem is a sellable catalog item. BasePrice is integer cents.
type MenuItem struct {
	ID          uuid.UUID
	StoreID     uuid.UUID
	Name        string
	BasePrice   int64
	IsAvailable bool
	CreatedAt   time.Time
}

// OptionGroup is a configurable attribute of a menu item.
type OptionGroup struct {
	ID                   uuid.UUID
	ItemID               uuid.UUID
	Name                 string
	GroupType            string
	IsRequired           bool
	MinSelections        pgtype.Int4
	MaxSelections        pgtype.Int4
	AggregateMinQuantity pgtype.Int4
	AggregateMaxQuantity pgtype.Int4
	NumFreeOptions       int32
	SortOrder            int32
}

// OptionChoice is one selectable choice in an option group.
// PriceModifier is integer cents.
type OptionChoice struct {
	ID            uuid.UUID
	GroupID       uuid.UUID
	Name          string
	PriceModifier int64
	IsAvailable   bool
	IsDefault     bool
	MinQuantity   int32
	MaxQuantity   pgtype.Int4
	SortOrder     int32
}

// Order is the server-held order aggregate. Items are an immutable snapshot;
// Status and PaymentStatus are the mutable fields. PaymentProvider and
// PaymentReference are set once when a payment session is opened.
type Order struct {
	ID                  uuid.UUID
	StoreID             uuid.UUID
	OrderNumber         string
	OrderType           string
	CustomerName        string
	ScheduledPickupTime pgtype.Timestamptz
	Status              string
	PaymentStatus       string
	PaymentProvider     pgtype.Text
	PaymentReference    pgtype.Text
	IdempotencyKey      string
	TotalAmount         int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OrderItem is a flattened line snapshot: unit price, option contribution,
// and line total are fixed at order creation, decoupled from later menu
// changes.
type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	ItemID       uuid.UUID
	Name         string
	Quantity     int32
	UnitPrice    int64
	OptionsPrice int64
	TotalPrice   int64
}

// OrderItemOption is one frozen choice under an order item.
type OrderItemOption struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
	GroupID     uuid.UUID
	GroupName   string
	ChoiceID    uuid.UUID
	ChoiceName  string
	Price       int64
	Quantity    int32
}

// PaymentAccount is one provider onboarding row per store. The connect-style
// columns and the oauth-style columns are mutually exclusive per Provider.
type PaymentAccount struct {
	ID                    uuid.UUID
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
	UpdatedAt             time.Time
}

// Subscription is the merchant's recurring billing plan state.
type Subscription struct {
	ID                uuid.UUID
	StoreID           uuid.UUID
	Status            string
	PriceID           pgtype.Text
	CancelAtPeriodEnd bool
	TrialEndsAt       pgtype.Timestamptz
	CurrentPeriodEnd  pgtype.Timestamptz
	ProviderReference pgtype.Text
	UpdatedAt         time.Time
}
