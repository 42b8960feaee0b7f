package enum

// ── State machines ──

const (
	OrderStatusAwaitingPayment = "AWAITING_PAYMENT"
	OrderStatusConfirmed       = "CONFIRMED"
	OrderStatusPreparing       = "PREPARING"
	OrderStatusReady           = "READY"
	OrderStatusCompleted       = "COMPLETED"
	OrderStatusCancelled       = "CANCELLED"
)

const (
	PaymentStatusPending              = "PENDING"
	PaymentStatusAwaitingConfirmation = "AWAITING_CONFIRMATION"
	PaymentStatusPaid                 = "PAID"
	PaymentStatusPayAtCounter         = "PAY_AT_COUNTER"
	PaymentStatusFailed               = "FAILED"
	PaymentStatusRefunded             = "REFUNDED"
	PaymentStatusExpired              = "EXPIRED"
)

const (
	SubscriptionStatusNone     = "NONE"
	SubscriptionStatusTrialing = "TRIALING"
	SubscriptionStatusActive   = "ACTIVE"
	SubscriptionStatusPaused   = "PAUSED"
	SubscriptionStatusPastDue  = "PAST_DUE"
	SubscriptionStatusCanceled = "CANCELED"
)

// ── Payment accounts ──

// Connect-style account fields.
const (
	RequirementsStatusNone                = "NONE"
	RequirementsStatusCurrentlyDue        = "CURRENTLY_DUE"
	RequirementsStatusPastDue             = "PAST_DUE"
	RequirementsStatusPendingVerification = "PENDING_VERIFICATION"
)

const (
	CapabilitiesStatusActive   = "ACTIVE"
	CapabilitiesStatusPending  = "PENDING"
	CapabilitiesStatusInactive = "INACTIVE"
)

// OAuth-onboarded account fields.
const (
	OnboardingStatusNeedsData = "NEEDS_DATA"
	OnboardingStatusInReview  = "IN_REVIEW"
	OnboardingStatusCompleted = "COMPLETED"
)

// ── Providers ──

const (
	ProviderConnect = "connect"
	ProviderOAuth   = "oauth"
)

// ── Catalog ──

const (
	OrderTypeDineIn   = "DINE_IN"
	OrderTypeTakeaway = "TAKEAWAY"
	OrderTypeDelivery = "DELIVERY"
)

const (
	OptionGroupSingleSelect   = "SINGLE_SELECT"
	OptionGroupMultiSelect    = "MULTI_SELECT"
	OptionGroupQuantitySelect = "QUANTITY_SELECT"
)

// ── Merchant console ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
)

const (
	PlanTierStarter = "STARTER"
	PlanTierGrowth  = "GROWTH"
	PlanTierPro     = "PRO"
)
