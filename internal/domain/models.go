package domain

import "time"

type Table struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
	Active   bool   `json:"active"`
}

type MenuOptionValue struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceDeltaCents int64  `json:"price_delta_cents"`
}

type MenuOption struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Values []MenuOptionValue `json:"values"`
}

type MenuItem struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Category   string       `json:"category"`
	PriceCents int64        `json:"price_cents"`
	Active     bool         `json:"active"`
	Options    []MenuOption `json:"options,omitempty"`
}

// OrderItemOption is a snapshot of a selected option value at order time.
// Names and price delta are denormalized so later catalog edits cannot
// change what the guest was charged.
type OrderItemOption struct {
	ID              string `json:"id"`
	OptionName      string `json:"option_name"`
	ValueName       string `json:"value_name"`
	PriceDeltaCents int64  `json:"price_delta_cents"`
}

type OrderItem struct {
	ID             string            `json:"id"`
	OrderID        string            `json:"order_id"`
	MenuItemID     string            `json:"menu_item_id"`
	Name           string            `json:"name"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	Quantity       int               `json:"quantity"`
	TotalCents     int64             `json:"total_cents"`
	Notes          string            `json:"notes,omitempty"`
	Options        []OrderItemOption `json:"options,omitempty"`
}

type Order struct {
	ID         string      `json:"id"`
	TableID    string      `json:"table_id"`
	Staff      string      `json:"staff"`
	Status     string      `json:"status"`
	TotalCents int64       `json:"total_cents"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Items      []OrderItem `json:"items"`
}

// TablePayment is the aggregate bill for one table seating. All amounts
// except the discount are derived by recomputation from orders and payments.
type TablePayment struct {
	ID             string    `json:"id"`
	TableID        string    `json:"table_id"`
	Staff          string    `json:"staff"`
	TotalCents     int64     `json:"total_cents"`
	PaidCents      int64     `json:"paid_cents"`
	RemainingCents int64     `json:"remaining_cents"`
	DiscountCents  int64     `json:"discount_cents"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OrderItemPayment allocates a paid quantity of one order item to one payment.
type OrderItemPayment struct {
	ID           string `json:"id"`
	OrderItemID  string `json:"order_item_id"`
	PaymentID    string `json:"payment_id"`
	PaidQuantity int    `json:"paid_quantity"`
	AmountCents  int64  `json:"amount_cents"`
}

type Payment struct {
	ID                  string             `json:"id"`
	OrderID             string             `json:"order_id,omitempty"`
	TablePaymentID      string             `json:"table_payment_id,omitempty"`
	AmountCents         int64              `json:"amount_cents"`
	Method              string             `json:"method,omitempty"`
	Status              string             `json:"status"`
	DiscountCents       int64              `json:"discount_cents,omitempty"`
	DiscountReason      string             `json:"discount_reason,omitempty"`
	Complimentary       bool               `json:"complimentary,omitempty"`
	ComplimentaryReason string             `json:"complimentary_reason,omitempty"`
	Staff               string             `json:"staff"`
	RefundNotes         string             `json:"refund_notes,omitempty"`
	RefundedAt          *time.Time         `json:"refunded_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	Allocations         []OrderItemPayment `json:"allocations,omitempty"`
}

type RegisterTransaction struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	PaymentID   string    `json:"payment_id,omitempty"`
	Staff       string    `json:"staff"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type RegisterStatus struct {
	Open         bool       `json:"open"`
	BalanceCents int64      `json:"balance_cents"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	Transactions int        `json:"transactions"`
}

type OrderItemOptionRequest struct {
	OptionID string `json:"option_id"`
	ValueID  string `json:"value_id"`
}

type OrderItemRequest struct {
	MenuItemID string                   `json:"menu_item_id"`
	Quantity   int                      `json:"quantity"`
	Notes      string                   `json:"notes,omitempty"`
	Options    []OrderItemOptionRequest `json:"options,omitempty"`
}

type OrderCreateRequest struct {
	TableID string             `json:"table_id"`
	Items   []OrderItemRequest `json:"items"`
}

type OrderEditRequest struct {
	TableID string             `json:"table_id"`
	Items   []OrderItemRequest `json:"items"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type TableStatusRequest struct {
	Status string `json:"status"`
}

type TableResponse struct {
	Table Table `json:"table"`
}

type ItemPaymentRequest struct {
	OrderItemID  string `json:"order_item_id"`
	PaidQuantity int    `json:"paid_quantity"`
}

type PaymentCreateRequest struct {
	OrderID             string               `json:"order_id,omitempty"`
	TableID             string               `json:"table_id,omitempty"`
	AmountCents         int64                `json:"amount_cents"`
	Method              string               `json:"method,omitempty"`
	DiscountCents       int64                `json:"discount_cents,omitempty"`
	DiscountReason      string               `json:"discount_reason,omitempty"`
	Complimentary       bool                 `json:"complimentary,omitempty"`
	ComplimentaryReason string               `json:"complimentary_reason,omitempty"`
	ManagerPIN          string               `json:"manager_pin,omitempty"`
	Items               []ItemPaymentRequest `json:"order_items,omitempty"`
}

type RefundPaymentRequest struct {
	PaymentID  string `json:"payment_id"`
	Notes      string `json:"notes,omitempty"`
	ManagerPIN string `json:"manager_pin,omitempty"`
}

type PaymentResponse struct {
	Payment Payment `json:"payment"`
}

type TableDiscountRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason,omitempty"`
}

type TablePaymentResponse struct {
	TablePayment TablePayment `json:"table_payment"`
}

type RegisterOpenRequest struct {
	OpeningCents int64  `json:"opening_cents"`
	Notes        string `json:"notes,omitempty"`
}

type RegisterCloseRequest struct {
	Notes string `json:"notes,omitempty"`
}

type RegisterTransactionRequest struct {
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Notes       string `json:"notes,omitempty"`
}

type RegisterTransactionResponse struct {
	Transaction RegisterTransaction `json:"transaction"`
}

type MethodBreakdown struct {
	Method     string  `json:"method"`
	Payments   int64   `json:"payments"`
	TotalCents int64   `json:"total_cents"`
	Percent    float64 `json:"percent"`
}

type TopMenuItem struct {
	MenuItemID   string `json:"menu_item_id"`
	Name         string `json:"name"`
	PaidQuantity int64  `json:"paid_quantity"`
	AmountCents  int64  `json:"amount_cents"`
}

type HourBucket struct {
	Hour       int   `json:"hour"`
	Payments   int64 `json:"payments"`
	TotalCents int64 `json:"total_cents"`
}

type SalesReport struct {
	From               string            `json:"from"`
	To                 string            `json:"to"`
	Orders             int64             `json:"orders"`
	Payments           int64             `json:"payments"`
	GrossCents         int64             `json:"gross_cents"`
	DiscountCents      int64             `json:"discount_cents"`
	ComplimentaryCents int64             `json:"complimentary_cents"`
	RefundedCents      int64             `json:"refunded_cents"`
	NetCents           int64             `json:"net_cents"`
	AverageTicketCents int64             `json:"average_ticket_cents"`
	ByMethod           []MethodBreakdown `json:"by_method"`
	TopItems           []TopMenuItem     `json:"top_items"`
	Hourly             []HourBucket      `json:"hourly"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	TableStatusAvailable   = "available"
	TableStatusOccupied    = "occupied"
	TableStatusReserved    = "reserved"
	TableStatusMaintenance = "maintenance"
)

const (
	OrderStatusCreated    = "created"
	OrderStatusInProgress = "in_progress"
	OrderStatusReady      = "ready"
	OrderStatusDelivered  = "delivered"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	LedgerStatusActive    = "active"
	LedgerStatusClosed    = "closed"
	LedgerStatusCancelled = "cancelled"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

const (
	PaymentMethodCash       = "cash"
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodDebitCard  = "debit_card"
	PaymentMethodGiftCard   = "gift_card"
	PaymentMethodMobile     = "mobile"
)

const (
	RegisterOpening       = "opening"
	RegisterClosing       = "closing"
	RegisterSale          = "sale"
	RegisterExpense       = "expense"
	RegisterDeposit       = "deposit"
	RegisterWithdrawal    = "withdrawal"
	RegisterCorrection    = "correction"
	RegisterDiscount      = "discount"
	RegisterComplimentary = "complimentary"
)
