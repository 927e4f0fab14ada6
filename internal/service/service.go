package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"mejapos/backend/internal/cache"
	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/store"
	"mejapos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Store
	reports   cache.ReportCache
	reportTTL time.Duration
	venueName string
}

func New(repo store.Store, reports cache.ReportCache, reportTTL time.Duration, venueName string) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = time.Minute
	}
	if venueName == "" {
		venueName = "main-venue"
	}

	return &Service{
		repo:      repo,
		reports:   reports,
		reportTTL: reportTTL,
		venueName: venueName,
	}
}

func (s *Service) ListTables(ctx context.Context) ([]domain.Table, error) {
	return s.repo.ListTables(ctx)
}

func (s *Service) ListMenu(ctx context.Context) ([]domain.MenuItem, error) {
	return s.repo.ListMenuItems(ctx)
}

// SetTableStatus drives the occupancy state machine. Freeing an occupied
// table commits the status change first; order cleanup and ledger closing
// are best-effort afterwards, so a bookkeeping failure never blocks
// seating the next guests.
func (s *Service) SetTableStatus(ctx context.Context, tableID string, req domain.TableStatusRequest) (domain.Table, error) {
	tableID = strings.TrimSpace(tableID)
	status := strings.TrimSpace(req.Status)
	if tableID == "" {
		return domain.Table{}, fmt.Errorf("%w: table id is required", store.ErrInvalidInput)
	}
	if !isValidTableStatus(status) {
		return domain.Table{}, fmt.Errorf("%w: unsupported table status %q", store.ErrInvalidInput, status)
	}

	table, err := s.repo.GetTable(ctx, tableID)
	if err != nil {
		return domain.Table{}, err
	}
	if table.Status == status {
		return table, nil
	}

	now := time.Now().UTC()
	freeing := table.Status == domain.TableStatusOccupied && status == domain.TableStatusAvailable

	updated, err := s.repo.UpdateTableStatus(ctx, tableID, status, now)
	if err != nil {
		return domain.Table{}, err
	}
	s.logAudit(ctx, "table_status", "table", tableID, fmt.Sprintf("%s->%s", table.Status, status))

	if freeing {
		s.settleFreedTable(ctx, tableID, now)
	}
	if status == domain.TableStatusOccupied {
		if _, err := s.findOrCreateActiveLedger(ctx, tableID); err != nil {
			log.Printf("[service] WARN: failed to open table payment for table %s: %v", tableID, err)
		}
	}
	return updated, nil
}

func (s *Service) settleFreedTable(ctx context.Context, tableID string, now time.Time) {
	orders, err := s.repo.ListOrdersByTable(ctx, tableID)
	if err != nil {
		log.Printf("[service] WARN: failed to list orders while freeing table %s: %v", tableID, err)
		orders = nil
	}
	for _, o := range orders {
		if o.Status == domain.OrderStatusCompleted || o.Status == domain.OrderStatusCancelled {
			continue
		}
		if _, err := s.repo.UpdateOrderStatus(ctx, o.ID, domain.OrderStatusCompleted, now); err != nil {
			log.Printf("[service] WARN: failed to complete order %s while freeing table %s: %v", o.ID, tableID, err)
		}
	}

	ledger, err := s.repo.FindActiveTablePayment(ctx, tableID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: failed to look up table payment while freeing table %s: %v", tableID, err)
		}
		return
	}
	ledger, err = s.repo.RecomputeTablePayment(ctx, ledger.ID, now)
	if err != nil {
		log.Printf("[service] WARN: failed to recompute table payment %s: %v", ledger.ID, err)
		return
	}
	if ledger.RemainingCents > 0 {
		log.Printf("[service] WARN: table %s freed with %d remaining on table payment %s, leaving it open", tableID, ledger.RemainingCents, ledger.ID)
		return
	}
	if _, err := s.repo.CloseTablePayment(ctx, ledger.ID, now); err != nil {
		log.Printf("[service] WARN: failed to close table payment %s: %v", ledger.ID, err)
	}
}

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	tableID := strings.TrimSpace(req.TableID)
	if tableID == "" {
		return domain.Order{}, fmt.Errorf("%w: table id is required", store.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order needs at least one item", store.ErrInvalidInput)
	}

	table, err := s.repo.GetTable(ctx, tableID)
	if err != nil {
		return domain.Order{}, err
	}
	if !table.Active || table.Status == domain.TableStatusMaintenance {
		return domain.Order{}, fmt.Errorf("%w: table %d is not available for orders", store.ErrInvalidInput, table.Number)
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	orderID := xid.New("order")

	items, total, err := s.priceOrderItems(ctx, orderID, req.Items)
	if err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:         orderID,
		TableID:    tableID,
		Staff:      actor.Username,
		Status:     domain.OrderStatusCreated,
		TotalCents: total,
		CreatedAt:  now,
		UpdatedAt:  now,
		Items:      items,
	}
	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_create", "order", created.ID, fmt.Sprintf("table=%s,total=%d,items=%d", tableID, total, len(items)))

	// First order seats the table and opens its bill. These follow-ups
	// are retryable, so they never undo the created order.
	if table.Status == domain.TableStatusAvailable {
		if _, err := s.repo.UpdateTableStatus(ctx, tableID, domain.TableStatusOccupied, now); err != nil {
			log.Printf("[service] WARN: failed to mark table %s occupied: %v", tableID, err)
		}
	}
	if ledger, err := s.findOrCreateActiveLedger(ctx, tableID); err != nil {
		log.Printf("[service] WARN: failed to open table payment for table %s: %v", tableID, err)
	} else if _, err := s.repo.RecomputeTablePayment(ctx, ledger.ID, now); err != nil {
		log.Printf("[service] WARN: failed to recompute table payment %s: %v", ledger.ID, err)
	}

	return created, nil
}

func (s *Service) EditOrder(ctx context.Context, orderID string, req domain.OrderEditRequest) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", store.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order needs at least one item", store.ErrInvalidInput)
	}

	existing, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if existing.Status != domain.OrderStatusCreated && existing.Status != domain.OrderStatusInProgress {
		return domain.Order{}, fmt.Errorf("%w: order %s is %s and can no longer be edited", store.ErrStateConflict, orderID, existing.Status)
	}

	tableID := existing.TableID
	if req.TableID != "" {
		tableID = strings.TrimSpace(req.TableID)
		if _, err := s.repo.GetTable(ctx, tableID); err != nil {
			return domain.Order{}, err
		}
	}

	items, total, err := s.priceOrderItems(ctx, orderID, req.Items)
	if err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	updated, err := s.repo.ReplaceOrderItems(ctx, domain.Order{
		ID:         orderID,
		TableID:    tableID,
		TotalCents: total,
		UpdatedAt:  now,
		Items:      items,
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_edit", "order", orderID, fmt.Sprintf("table=%s,total=%d,items=%d", tableID, total, len(items)))
	s.recomputeTableLedger(ctx, tableID, now)
	if tableID != existing.TableID {
		// Moving an order between tables shrinks the old table's bill too.
		s.recomputeTableLedger(ctx, existing.TableID, now)
	}
	return updated, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, req domain.OrderStatusRequest) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	status := strings.TrimSpace(req.Status)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", store.ErrInvalidInput)
	}
	if !isValidOrderStatus(status) {
		return domain.Order{}, fmt.Errorf("%w: unsupported order status %q", store.ErrInvalidInput, status)
	}

	existing, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if existing.Status == status {
		return domain.Order{}, fmt.Errorf("%w: order %s is already %s", store.ErrStateConflict, orderID, status)
	}
	if existing.Status == domain.OrderStatusCompleted || existing.Status == domain.OrderStatusCancelled {
		return domain.Order{}, fmt.Errorf("%w: order %s is %s and cannot change status", store.ErrStateConflict, orderID, existing.Status)
	}

	now := time.Now().UTC()
	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, status, now)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_status", "order", orderID, fmt.Sprintf("%s->%s", existing.Status, status))
	if status == domain.OrderStatusCancelled {
		s.recomputeTableLedger(ctx, existing.TableID, now)
	}
	return updated, nil
}

func (s *Service) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", store.ErrInvalidInput)
	}

	existing, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if existing.Status == domain.OrderStatusCancelled {
		return existing, nil
	}
	if existing.Status == domain.OrderStatusCompleted {
		return domain.Order{}, fmt.Errorf("%w: order %s is completed and cannot be cancelled", store.ErrStateConflict, orderID)
	}

	now := time.Now().UTC()
	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, domain.OrderStatusCancelled, now)
	if err != nil {
		return domain.Order{}, err
	}
	s.logAudit(ctx, "order_cancel", "order", orderID, fmt.Sprintf("was %s", existing.Status))
	s.recomputeTableLedger(ctx, existing.TableID, now)
	return updated, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.repo.GetOrderByID(ctx, strings.TrimSpace(orderID))
}

func (s *Service) ListTableOrders(ctx context.Context, tableID string) ([]domain.Order, error) {
	return s.repo.ListOrdersByTable(ctx, strings.TrimSpace(tableID))
}

func (s *Service) CreatePayment(ctx context.Context, req domain.PaymentCreateRequest) (domain.Payment, error) {
	if req.AmountCents <= 0 {
		return domain.Payment{}, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidInput)
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.TableID = strings.TrimSpace(req.TableID)
	if (req.OrderID == "") == (req.TableID == "") {
		return domain.Payment{}, fmt.Errorf("%w: exactly one of order_id or table_id is required", store.ErrInvalidInput)
	}

	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.Complimentary {
		if strings.TrimSpace(req.ComplimentaryReason) == "" {
			return domain.Payment{}, fmt.Errorf("%w: complimentary payments require a reason", store.ErrInvalidInput)
		}
	} else if !isSupportedPaymentMethod(req.Method) {
		return domain.Payment{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrInvalidInput, req.Method)
	}
	if req.DiscountCents < 0 {
		return domain.Payment{}, fmt.Errorf("%w: discount cannot be negative", store.ErrInvalidInput)
	}
	if req.DiscountCents > 0 && strings.TrimSpace(req.DiscountReason) == "" {
		return domain.Payment{}, fmt.Errorf("%w: discounts require a reason", store.ErrInvalidInput)
	}
	if req.Complimentary || req.DiscountCents > 0 {
		if err := requireAdmin(ctx); err != nil {
			return domain.Payment{}, err
		}
	}

	var tableID string
	var orderID string
	if req.OrderID != "" {
		order, err := s.repo.GetOrderByID(ctx, req.OrderID)
		if err != nil {
			return domain.Payment{}, err
		}
		if order.Status == domain.OrderStatusCompleted || order.Status == domain.OrderStatusCancelled {
			return domain.Payment{}, fmt.Errorf("%w: order %s is %s and cannot take payments", store.ErrStateConflict, order.ID, order.Status)
		}
		orderID = order.ID
		tableID = order.TableID
	} else {
		table, err := s.repo.GetTable(ctx, req.TableID)
		if err != nil {
			return domain.Payment{}, err
		}
		tableID = table.ID
	}

	ledger, err := s.findOrCreateActiveLedger(ctx, tableID)
	if err != nil {
		return domain.Payment{}, err
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	paymentID := xid.New("pay")

	allocations, err := s.buildAllocations(ctx, paymentID, orderID, tableID, req.Items)
	if err != nil {
		return domain.Payment{}, err
	}

	payment := domain.Payment{
		ID:                  paymentID,
		OrderID:             orderID,
		TablePaymentID:      ledger.ID,
		AmountCents:         req.AmountCents,
		Method:              req.Method,
		Status:              domain.PaymentStatusCompleted,
		DiscountCents:       req.DiscountCents,
		DiscountReason:      strings.TrimSpace(req.DiscountReason),
		Complimentary:       req.Complimentary,
		ComplimentaryReason: strings.TrimSpace(req.ComplimentaryReason),
		Staff:               actor.Username,
		CreatedAt:           now,
		Allocations:         allocations,
	}
	created, err := s.repo.CreatePayment(ctx, payment)
	if err != nil {
		return domain.Payment{}, err
	}
	s.logAudit(ctx, "payment_create", "payment", created.ID, fmt.Sprintf("amount=%d,method=%s,table_payment=%s", created.AmountCents, created.Method, ledger.ID))
	return created, nil
}

// buildAllocations prices itemized settlement requests. The amount uses
// the base unit price only; option surcharges stay out of per-item
// settlement even though they are part of the order total, so itemized
// partial payment can under-collect on modified items. Kept as-is
// pending a product decision, see DESIGN.md.
func (s *Service) buildAllocations(ctx context.Context, paymentID string, orderID string, tableID string, reqs []domain.ItemPaymentRequest) ([]domain.OrderItemPayment, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.OrderItemID)
	}
	items, err := s.repo.GetOrderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	paid, err := s.repo.PaidQuantities(ctx, ids)
	if err != nil {
		return nil, err
	}

	// A ledger only ever settles items served at its own table, so
	// table-targeted payments resolve each item's parent order and
	// check where it was placed.
	ownerTables := make(map[string]string)
	out := make([]domain.OrderItemPayment, 0, len(reqs))
	for _, r := range reqs {
		if r.PaidQuantity <= 0 {
			return nil, fmt.Errorf("%w: paid quantity must be positive for item %s", store.ErrInvalidInput, r.OrderItemID)
		}
		item, ok := items[r.OrderItemID]
		if !ok {
			return nil, fmt.Errorf("%w: order item %s", store.ErrNotFound, r.OrderItemID)
		}
		if orderID != "" && item.OrderID != orderID {
			return nil, fmt.Errorf("%w: order item %s does not belong to order %s", store.ErrInvalidInput, r.OrderItemID, orderID)
		}
		if orderID == "" {
			owner, ok := ownerTables[item.OrderID]
			if !ok {
				parent, err := s.repo.GetOrderByID(ctx, item.OrderID)
				if err != nil {
					return nil, err
				}
				owner = parent.TableID
				ownerTables[item.OrderID] = owner
			}
			if owner != tableID {
				return nil, fmt.Errorf("%w: order item %s does not belong to table %s", store.ErrInvalidInput, r.OrderItemID, tableID)
			}
		}
		payable := item.Quantity - paid[r.OrderItemID]
		if r.PaidQuantity > payable {
			return nil, fmt.Errorf("%w: paid quantity %d exceeds payable %d for item %s", store.ErrInvalidInput, r.PaidQuantity, payable, r.OrderItemID)
		}
		out = append(out, domain.OrderItemPayment{
			ID:           xid.New("alloc"),
			OrderItemID:  r.OrderItemID,
			PaymentID:    paymentID,
			PaidQuantity: r.PaidQuantity,
			AmountCents:  int64(r.PaidQuantity) * item.UnitPriceCents,
		})
	}
	return out, nil
}

func (s *Service) RefundPayment(ctx context.Context, req domain.RefundPaymentRequest) (domain.Payment, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Payment{}, err
	}
	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return domain.Payment{}, fmt.Errorf("%w: payment id is required", store.ErrInvalidInput)
	}

	actor, _ := ActorFromContext(ctx)
	refunded, err := s.repo.RefundPayment(ctx, paymentID, strings.TrimSpace(req.Notes), actor.Username, time.Now().UTC())
	if err != nil {
		return domain.Payment{}, err
	}
	s.logAudit(ctx, "payment_refund", "payment", paymentID, fmt.Sprintf("amount=%d,method=%s", refunded.AmountCents, refunded.Method))
	return refunded, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	return s.repo.GetPayment(ctx, strings.TrimSpace(id))
}

// GetTableBill returns the active ledger for a table with freshly
// recomputed amounts, so the caller always sees remaining as of now.
func (s *Service) GetTableBill(ctx context.Context, tableID string) (domain.TablePayment, error) {
	tableID = strings.TrimSpace(tableID)
	if tableID == "" {
		return domain.TablePayment{}, fmt.Errorf("%w: table id is required", store.ErrInvalidInput)
	}
	if _, err := s.repo.GetTable(ctx, tableID); err != nil {
		return domain.TablePayment{}, err
	}
	ledger, err := s.repo.FindActiveTablePayment(ctx, tableID)
	if err != nil {
		return domain.TablePayment{}, err
	}
	return s.repo.RecomputeTablePayment(ctx, ledger.ID, time.Now().UTC())
}

func (s *Service) ApplyTableDiscount(ctx context.Context, tablePaymentID string, req domain.TableDiscountRequest) (domain.TablePayment, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.TablePayment{}, err
	}
	tablePaymentID = strings.TrimSpace(tablePaymentID)
	if tablePaymentID == "" {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment id is required", store.ErrInvalidInput)
	}

	updated, err := s.repo.ApplyTablePaymentDiscount(ctx, tablePaymentID, req.AmountCents, time.Now().UTC())
	if err != nil {
		return domain.TablePayment{}, err
	}
	s.logAudit(ctx, "table_discount", "table_payment", tablePaymentID, fmt.Sprintf("amount=%d,reason=%s", req.AmountCents, strings.TrimSpace(req.Reason)))
	return updated, nil
}

func (s *Service) CloseTablePayment(ctx context.Context, tablePaymentID string) (domain.TablePayment, error) {
	tablePaymentID = strings.TrimSpace(tablePaymentID)
	if tablePaymentID == "" {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment id is required", store.ErrInvalidInput)
	}

	now := time.Now().UTC()
	if _, err := s.repo.RecomputeTablePayment(ctx, tablePaymentID, now); err != nil {
		return domain.TablePayment{}, err
	}
	closed, err := s.repo.CloseTablePayment(ctx, tablePaymentID, now)
	if err != nil {
		return domain.TablePayment{}, err
	}
	s.logAudit(ctx, "table_payment_close", "table_payment", tablePaymentID, fmt.Sprintf("total=%d,paid=%d,discount=%d", closed.TotalCents, closed.PaidCents, closed.DiscountCents))
	return closed, nil
}

func (s *Service) OpenRegister(ctx context.Context, req domain.RegisterOpenRequest) (domain.RegisterTransaction, error) {
	if req.OpeningCents < 0 {
		return domain.RegisterTransaction{}, fmt.Errorf("%w: opening balance cannot be negative", store.ErrInvalidInput)
	}
	actor, _ := ActorFromContext(ctx)
	tx, err := s.repo.AppendRegisterTransaction(ctx, domain.RegisterTransaction{
		ID:          xid.New("regtx"),
		Type:        domain.RegisterOpening,
		AmountCents: req.OpeningCents,
		Staff:       actor.Username,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.RegisterTransaction{}, err
	}
	s.logAudit(ctx, "register_open", "register", tx.ID, fmt.Sprintf("opening=%d", req.OpeningCents))
	return tx, nil
}

func (s *Service) CloseRegister(ctx context.Context, req domain.RegisterCloseRequest) (domain.RegisterTransaction, error) {
	actor, _ := ActorFromContext(ctx)
	tx, err := s.repo.AppendRegisterTransaction(ctx, domain.RegisterTransaction{
		ID:        xid.New("regtx"),
		Type:      domain.RegisterClosing,
		Staff:     actor.Username,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.RegisterTransaction{}, err
	}
	s.logAudit(ctx, "register_close", "register", tx.ID, "")
	return tx, nil
}

// AddRegisterTransaction records a manual drawer movement. Deposits are
// stored positive, withdrawals and expenses negative; corrections keep
// the submitted sign and are reserved for admins.
func (s *Service) AddRegisterTransaction(ctx context.Context, req domain.RegisterTransactionRequest) (domain.RegisterTransaction, error) {
	txType := strings.ToLower(strings.TrimSpace(req.Type))
	amount := req.AmountCents

	switch txType {
	case domain.RegisterDeposit:
		if amount <= 0 {
			return domain.RegisterTransaction{}, fmt.Errorf("%w: deposit amount must be positive", store.ErrInvalidInput)
		}
	case domain.RegisterWithdrawal, domain.RegisterExpense:
		if amount <= 0 {
			return domain.RegisterTransaction{}, fmt.Errorf("%w: %s amount must be positive", store.ErrInvalidInput, txType)
		}
		amount = -amount
	case domain.RegisterCorrection:
		if err := requireAdmin(ctx); err != nil {
			return domain.RegisterTransaction{}, err
		}
		if amount == 0 {
			return domain.RegisterTransaction{}, fmt.Errorf("%w: correction amount cannot be zero", store.ErrInvalidInput)
		}
	default:
		return domain.RegisterTransaction{}, fmt.Errorf("%w: unsupported register transaction type %q", store.ErrInvalidInput, req.Type)
	}

	actor, _ := ActorFromContext(ctx)
	tx, err := s.repo.AppendRegisterTransaction(ctx, domain.RegisterTransaction{
		ID:          xid.New("regtx"),
		Type:        txType,
		AmountCents: amount,
		Staff:       actor.Username,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.RegisterTransaction{}, err
	}
	s.logAudit(ctx, "register_transaction", "register", tx.ID, fmt.Sprintf("type=%s,amount=%d", txType, amount))
	return tx, nil
}

func (s *Service) RegisterStatus(ctx context.Context) (domain.RegisterStatus, error) {
	return s.repo.RegisterStatus(ctx)
}

func (s *Service) ListRegisterTransactions(ctx context.Context, limit int) ([]domain.RegisterTransaction, error) {
	return s.repo.ListRegisterTransactions(ctx, limit)
}

func (s *Service) DailySalesReport(ctx context.Context, date string) (domain.SalesReport, error) {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return domain.SalesReport{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	from := day.UTC().Truncate(24 * time.Hour)
	return s.cachedReport(ctx, fmt.Sprintf("report:%s:daily:%s", s.venueName, from.Format("2006-01-02")), from, from.Add(24*time.Hour))
}

func (s *Service) PeriodSalesReport(ctx context.Context, start string, end string) (domain.SalesReport, error) {
	from, err := time.Parse("2006-01-02", strings.TrimSpace(start))
	if err != nil {
		return domain.SalesReport{}, fmt.Errorf("%w: start must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	until, err := time.Parse("2006-01-02", strings.TrimSpace(end))
	if err != nil {
		return domain.SalesReport{}, fmt.Errorf("%w: end must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	if until.Before(from) {
		return domain.SalesReport{}, fmt.Errorf("%w: end is before start", store.ErrInvalidInput)
	}
	key := fmt.Sprintf("report:%s:period:%s:%s", s.venueName, from.Format("2006-01-02"), until.Format("2006-01-02"))
	return s.cachedReport(ctx, key, from.UTC(), until.UTC().Add(24*time.Hour))
}

func (s *Service) cachedReport(ctx context.Context, key string, from, to time.Time) (domain.SalesReport, error) {
	if cached, ok, err := s.reports.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: report cache read failed key=%s: %v", key, err)
	} else if ok {
		return *cached, nil
	}

	report, err := s.repo.GetSalesReport(ctx, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	if err := s.reports.Set(ctx, key, &report, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache write failed key=%s: %v", key, err)
	}
	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) findOrCreateActiveLedger(ctx context.Context, tableID string) (domain.TablePayment, error) {
	ledger, err := s.repo.FindActiveTablePayment(ctx, tableID)
	if err == nil {
		return ledger, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.TablePayment{}, err
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	created, err := s.repo.CreateTablePayment(ctx, domain.TablePayment{
		ID:        xid.New("tabpay"),
		TableID:   tableID,
		Staff:     actor.Username,
		Status:    domain.LedgerStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err == nil {
		return created, nil
	}
	// Lost the creation race; the winner's row is the active ledger.
	if errors.Is(err, store.ErrStateConflict) {
		return s.repo.FindActiveTablePayment(ctx, tableID)
	}
	return domain.TablePayment{}, err
}

func (s *Service) recomputeTableLedger(ctx context.Context, tableID string, at time.Time) {
	ledger, err := s.repo.FindActiveTablePayment(ctx, tableID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: failed to look up table payment for table %s: %v", tableID, err)
		}
		return
	}
	if _, err := s.repo.RecomputeTablePayment(ctx, ledger.ID, at); err != nil {
		log.Printf("[service] WARN: failed to recompute table payment %s: %v", ledger.ID, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return nil
}

func isValidTableStatus(status string) bool {
	switch status {
	case domain.TableStatusAvailable, domain.TableStatusOccupied, domain.TableStatusReserved, domain.TableStatusMaintenance:
		return true
	}
	return false
}

func isValidOrderStatus(status string) bool {
	switch status {
	case domain.OrderStatusCreated, domain.OrderStatusInProgress, domain.OrderStatusReady,
		domain.OrderStatusDelivered, domain.OrderStatusCompleted, domain.OrderStatusCancelled:
		return true
	}
	return false
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodCreditCard, domain.PaymentMethodDebitCard,
		domain.PaymentMethodGiftCard, domain.PaymentMethodMobile:
		return true
	}
	return false
}
