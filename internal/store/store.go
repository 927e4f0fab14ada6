package store

import (
	"context"
	"errors"
	"time"

	"mejapos/backend/internal/domain"
)

var (
	// ErrNotFound marks lookups for rows that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks requests rejected before any write happens.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStateConflict marks writes rejected because the entity is not in
	// a status that permits the operation.
	ErrStateConflict = errors.New("state conflict")
)

// Store is the persistence boundary for the settlement engine. Every
// mutating method that touches more than one relation is atomic: either
// all writes land or none do.
type Store interface {
	ListTables(ctx context.Context) ([]domain.Table, error)
	GetTable(ctx context.Context, id string) (domain.Table, error)
	UpdateTableStatus(ctx context.Context, id string, status string, at time.Time) (domain.Table, error)

	ListMenuItems(ctx context.Context) ([]domain.MenuItem, error)
	GetMenuItemsByIDs(ctx context.Context, ids []string) (map[string]domain.MenuItem, error)

	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	ReplaceOrderItems(ctx context.Context, order domain.Order) (domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (domain.Order, error)
	ListOrdersByTable(ctx context.Context, tableID string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (domain.Order, error)

	FindActiveTablePayment(ctx context.Context, tableID string) (domain.TablePayment, error)
	CreateTablePayment(ctx context.Context, tp domain.TablePayment) (domain.TablePayment, error)
	GetTablePayment(ctx context.Context, id string) (domain.TablePayment, error)
	RecomputeTablePayment(ctx context.Context, id string, at time.Time) (domain.TablePayment, error)
	ApplyTablePaymentDiscount(ctx context.Context, id string, amountCents int64, at time.Time) (domain.TablePayment, error)
	CloseTablePayment(ctx context.Context, id string, at time.Time) (domain.TablePayment, error)

	// CreatePayment persists the payment, its item allocations, and the
	// automatic register row in one transaction, re-validating each
	// allocation's remaining payable quantity under a row lock.
	CreatePayment(ctx context.Context, payment domain.Payment) (domain.Payment, error)
	GetPayment(ctx context.Context, id string) (domain.Payment, error)
	RefundPayment(ctx context.Context, id string, notes string, staff string, at time.Time) (domain.Payment, error)
	GetOrderItems(ctx context.Context, ids []string) (map[string]domain.OrderItem, error)
	PaidQuantities(ctx context.Context, itemIDs []string) (map[string]int, error)

	// AppendRegisterTransaction enforces the cycle rules: opening
	// requires a closed register, closing and every manual type require
	// an open one. Amounts arrive already signed.
	AppendRegisterTransaction(ctx context.Context, tx domain.RegisterTransaction) (domain.RegisterTransaction, error)
	RegisterStatus(ctx context.Context) (domain.RegisterStatus, error)
	ListRegisterTransactions(ctx context.Context, limit int) ([]domain.RegisterTransaction, error)

	GetSalesReport(ctx context.Context, from, to time.Time) (domain.SalesReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, hashed string) error
}
