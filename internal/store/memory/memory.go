package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/store"
	"mejapos/backend/internal/xid"
)

// Store is an in-memory Store implementation used for tests and for
// running without DATABASE_URL. A single RWMutex stands in for the
// transaction boundary: every mutating method holds the write lock for
// its whole read-validate-write sequence.
type Store struct {
	mu            sync.RWMutex
	tables        map[string]domain.Table
	menu          map[string]domain.MenuItem
	orders        map[string]domain.Order
	tablePayments map[string]domain.TablePayment
	payments      map[string]domain.Payment
	allocations   []domain.OrderItemPayment
	register      []domain.RegisterTransaction
	audit         []domain.AuditLog
	users         map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		tables:        make(map[string]domain.Table),
		menu:          make(map[string]domain.MenuItem),
		orders:        make(map[string]domain.Order),
		tablePayments: make(map[string]domain.TablePayment),
		payments:      make(map[string]domain.Payment),
		users:         make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with the demo floor plan and menu.
func NewSeeded() *Store {
	s := New()
	for i := 1; i <= 8; i++ {
		capacity := 4
		if i > 6 {
			capacity = 8
		}
		id := fmt.Sprintf("tbl-%03d", i)
		s.tables[id] = domain.Table{ID: id, Number: i, Capacity: capacity, Status: domain.TableStatusAvailable, Active: true}
	}

	spiceLevels := domain.MenuOption{
		ID:   "opt-spice",
		Name: "Level Pedas",
		Values: []domain.MenuOptionValue{
			{ID: "optv-spice-0", Name: "Tidak Pedas", PriceDeltaCents: 0},
			{ID: "optv-spice-1", Name: "Sedang", PriceDeltaCents: 0},
			{ID: "optv-spice-2", Name: "Extra Pedas", PriceDeltaCents: 200},
		},
	}
	portion := domain.MenuOption{
		ID:   "opt-portion",
		Name: "Porsi",
		Values: []domain.MenuOptionValue{
			{ID: "optv-portion-std", Name: "Biasa", PriceDeltaCents: 0},
			{ID: "optv-portion-jumbo", Name: "Jumbo", PriceDeltaCents: 700},
		},
	}
	sweetness := domain.MenuOption{
		ID:   "opt-sugar",
		Name: "Gula",
		Values: []domain.MenuOptionValue{
			{ID: "optv-sugar-less", Name: "Less Sugar", PriceDeltaCents: 0},
			{ID: "optv-sugar-normal", Name: "Normal", PriceDeltaCents: 0},
		},
	}

	items := []domain.MenuItem{
		{ID: "menu-nasgor", Name: "Nasi Goreng Spesial", Category: "makanan", PriceCents: 3500, Active: true, Options: []domain.MenuOption{spiceLevels, portion}},
		{ID: "menu-ayam-bakar", Name: "Ayam Bakar Madu", Category: "makanan", PriceCents: 4200, Active: true, Options: []domain.MenuOption{spiceLevels}},
		{ID: "menu-mie-goreng", Name: "Mie Goreng Jawa", Category: "makanan", PriceCents: 3000, Active: true, Options: []domain.MenuOption{spiceLevels, portion}},
		{ID: "menu-sate", Name: "Sate Ayam (10 tusuk)", Category: "makanan", PriceCents: 3800, Active: true},
		{ID: "menu-es-teh", Name: "Es Teh Manis", Category: "minuman", PriceCents: 800, Active: true, Options: []domain.MenuOption{sweetness}},
		{ID: "menu-es-jeruk", Name: "Es Jeruk", Category: "minuman", PriceCents: 1000, Active: true, Options: []domain.MenuOption{sweetness}},
		{ID: "menu-kopi", Name: "Kopi Tubruk", Category: "minuman", PriceCents: 1200, Active: true},
	}
	for _, it := range items {
		s.menu[it.ID] = it
	}
	return s
}

func (s *Store) ListTables(_ context.Context) ([]domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) GetTable(_ context.Context, id string) (domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tableLocked(id)
}

func (s *Store) tableLocked(id string) (domain.Table, error) {
	t, ok := s.tables[id]
	if !ok {
		return domain.Table{}, fmt.Errorf("%w: table %s", store.ErrNotFound, id)
	}
	return t, nil
}

func (s *Store) UpdateTableStatus(_ context.Context, id string, status string, _ time.Time) (domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tableLocked(id)
	if err != nil {
		return domain.Table{}, err
	}
	t.Status = status
	s.tables[id] = t
	return t, nil
}

func (s *Store) ListMenuItems(_ context.Context) ([]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MenuItem, 0, len(s.menu))
	for _, m := range s.menu {
		out = append(out, cloneMenuItem(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetMenuItemsByIDs(_ context.Context, ids []string) (map[string]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.MenuItem, len(ids))
	for _, id := range ids {
		if m, ok := s.menu[id]; ok {
			out[id] = cloneMenuItem(m)
		}
	}
	return out, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return domain.Order{}, fmt.Errorf("%w: order %s already exists", store.ErrInvalidInput, order.ID)
	}
	s.orders[order.ID] = cloneOrder(order)
	return cloneOrder(order), nil
}

func (s *Store) ReplaceOrderItems(_ context.Context, order domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[order.ID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %s", store.ErrNotFound, order.ID)
	}
	existing.TableID = order.TableID
	existing.Items = cloneOrder(order).Items
	existing.TotalCents = order.TotalCents
	existing.UpdatedAt = order.UpdatedAt
	s.orders[order.ID] = existing
	return cloneOrder(existing), nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}
	return cloneOrder(order), nil
}

func (s *Store) ListOrdersByTable(_ context.Context, tableID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Order
	for _, o := range s.orders {
		if o.TableID == tableID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status string, at time.Time) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}
	order.Status = status
	order.UpdatedAt = at
	s.orders[id] = order
	return cloneOrder(order), nil
}

func (s *Store) FindActiveTablePayment(_ context.Context, tableID string) (domain.TablePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tp := range s.tablePayments {
		if tp.TableID == tableID && tp.Status == domain.LedgerStatusActive {
			return tp, nil
		}
	}
	return domain.TablePayment{}, fmt.Errorf("%w: active table payment for table %s", store.ErrNotFound, tableID)
}

func (s *Store) CreateTablePayment(_ context.Context, tp domain.TablePayment) (domain.TablePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tablePayments {
		if existing.TableID == tp.TableID && existing.Status == domain.LedgerStatusActive {
			return domain.TablePayment{}, fmt.Errorf("%w: table %s already has an active table payment", store.ErrStateConflict, tp.TableID)
		}
	}
	s.tablePayments[tp.ID] = tp
	return tp, nil
}

func (s *Store) GetTablePayment(_ context.Context, id string) (domain.TablePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tp, ok := s.tablePayments[id]
	if !ok {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, id)
	}
	return tp, nil
}

func (s *Store) RecomputeTablePayment(_ context.Context, id string, at time.Time) (domain.TablePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked(id, at)
}

// recomputeLocked re-derives total, paid, and remaining from orders and
// completed payments. Only orders created after the table's last settled
// ledger belong to the current seating.
func (s *Store) recomputeLocked(id string, at time.Time) (domain.TablePayment, error) {
	tp, ok := s.tablePayments[id]
	if !ok {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, id)
	}

	var cutoff time.Time
	for _, other := range s.tablePayments {
		if other.TableID == tp.TableID && other.Status != domain.LedgerStatusActive && other.UpdatedAt.After(cutoff) {
			cutoff = other.UpdatedAt
		}
	}

	var total int64
	for _, o := range s.orders {
		if o.TableID != tp.TableID || o.Status == domain.OrderStatusCancelled {
			continue
		}
		if o.CreatedAt.Before(cutoff) {
			continue
		}
		total += o.TotalCents
	}

	var paid int64
	for _, p := range s.payments {
		if p.TablePaymentID == tp.ID && p.Status == domain.PaymentStatusCompleted {
			paid += p.AmountCents
		}
	}

	tp.TotalCents = total
	tp.PaidCents = paid
	tp.RemainingCents = total - paid - tp.DiscountCents
	tp.UpdatedAt = at
	s.tablePayments[id] = tp
	return tp, nil
}

func (s *Store) ApplyTablePaymentDiscount(_ context.Context, id string, amountCents int64, at time.Time) (domain.TablePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tp, ok := s.tablePayments[id]
	if !ok {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, id)
	}
	if tp.Status != domain.LedgerStatusActive {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s is %s", store.ErrStateConflict, id, tp.Status)
	}
	if amountCents <= 0 {
		return domain.TablePayment{}, fmt.Errorf("%w: discount must be positive", store.ErrInvalidInput)
	}
	if amountCents > tp.RemainingCents {
		return domain.TablePayment{}, fmt.Errorf("%w: discount %d exceeds remaining %d", store.ErrInvalidInput, amountCents, tp.RemainingCents)
	}
	tp.DiscountCents += amountCents
	tp.RemainingCents -= amountCents
	tp.UpdatedAt = at
	s.tablePayments[id] = tp
	return tp, nil
}

func (s *Store) CloseTablePayment(_ context.Context, id string, at time.Time) (domain.TablePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tp, ok := s.tablePayments[id]
	if !ok {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, id)
	}
	if tp.Status != domain.LedgerStatusActive {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s is %s", store.ErrStateConflict, id, tp.Status)
	}
	if tp.RemainingCents > 0 {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s still has %d remaining", store.ErrStateConflict, id, tp.RemainingCents)
	}
	tp.Status = domain.LedgerStatusClosed
	tp.UpdatedAt = at
	s.tablePayments[id] = tp
	return tp, nil
}

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledgerTableID := ""
	if payment.TablePaymentID != "" {
		tp, ok := s.tablePayments[payment.TablePaymentID]
		if !ok {
			return domain.Payment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, payment.TablePaymentID)
		}
		ledgerTableID = tp.TableID
	}

	// Re-validate every allocation against the payable remainder while
	// holding the write lock, so concurrent payments on the same item
	// cannot both pass the service-level check.
	for _, alloc := range payment.Allocations {
		item, owner, ok := s.orderItemLocked(alloc.OrderItemID)
		if !ok {
			return domain.Payment{}, fmt.Errorf("%w: order item %s", store.ErrNotFound, alloc.OrderItemID)
		}
		if ledgerTableID != "" && owner.TableID != ledgerTableID {
			return domain.Payment{}, fmt.Errorf("%w: order item %s does not belong to table %s", store.ErrInvalidInput, alloc.OrderItemID, ledgerTableID)
		}
		payable := item.Quantity - s.paidQuantityLocked(alloc.OrderItemID)
		if alloc.PaidQuantity > payable {
			return domain.Payment{}, fmt.Errorf("%w: paid quantity %d exceeds payable %d for item %s", store.ErrInvalidInput, alloc.PaidQuantity, payable, alloc.OrderItemID)
		}
	}

	s.payments[payment.ID] = clonePayment(payment)
	s.allocations = append(s.allocations, payment.Allocations...)

	registerType := domain.RegisterSale
	if payment.Complimentary {
		registerType = domain.RegisterComplimentary
	}
	s.register = append(s.register, domain.RegisterTransaction{
		ID:          xid.New("regtx"),
		Type:        registerType,
		AmountCents: payment.AmountCents,
		PaymentID:   payment.ID,
		Staff:       payment.Staff,
		CreatedAt:   payment.CreatedAt,
	})
	if payment.DiscountCents > 0 {
		s.register = append(s.register, domain.RegisterTransaction{
			ID:          xid.New("regtx"),
			Type:        domain.RegisterDiscount,
			AmountCents: 0,
			PaymentID:   payment.ID,
			Staff:       payment.Staff,
			Notes:       fmt.Sprintf("discount %d: %s", payment.DiscountCents, payment.DiscountReason),
			CreatedAt:   payment.CreatedAt,
		})
	}

	if payment.TablePaymentID != "" {
		if _, err := s.recomputeLocked(payment.TablePaymentID, payment.CreatedAt); err != nil {
			return domain.Payment{}, err
		}
	}
	return clonePayment(payment), nil
}

func (s *Store) GetPayment(_ context.Context, id string) (domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
	}
	return clonePayment(p), nil
}

func (s *Store) RefundPayment(_ context.Context, id string, notes string, staff string, at time.Time) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
	}
	if p.Status != domain.PaymentStatusCompleted {
		return domain.Payment{}, fmt.Errorf("%w: payment %s is %s, only completed payments can be refunded", store.ErrStateConflict, id, p.Status)
	}

	p.Status = domain.PaymentStatusRefunded
	p.RefundNotes = notes
	refundedAt := at
	p.RefundedAt = &refundedAt
	s.payments[id] = p

	if p.Method == domain.PaymentMethodCash {
		s.register = append(s.register, domain.RegisterTransaction{
			ID:          xid.New("regtx"),
			Type:        domain.RegisterExpense,
			AmountCents: -p.AmountCents,
			PaymentID:   p.ID,
			Staff:       staff,
			Notes:       notes,
			CreatedAt:   at,
		})
	}
	if p.TablePaymentID != "" {
		if _, err := s.recomputeLocked(p.TablePaymentID, at); err != nil {
			return domain.Payment{}, err
		}
	}
	return clonePayment(p), nil
}

func (s *Store) GetOrderItems(_ context.Context, ids []string) (map[string]domain.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.OrderItem, len(ids))
	for _, id := range ids {
		if item, _, ok := s.orderItemLocked(id); ok {
			out[id] = item
		}
	}
	return out, nil
}

func (s *Store) PaidQuantities(_ context.Context, itemIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(itemIDs))
	for _, id := range itemIDs {
		out[id] = s.paidQuantityLocked(id)
	}
	return out, nil
}

func (s *Store) orderItemLocked(itemID string) (domain.OrderItem, domain.Order, bool) {
	for _, o := range s.orders {
		for _, item := range o.Items {
			if item.ID == itemID {
				return item, o, true
			}
		}
	}
	return domain.OrderItem{}, domain.Order{}, false
}

func (s *Store) paidQuantityLocked(itemID string) int {
	var paid int
	for _, alloc := range s.allocations {
		if alloc.OrderItemID != itemID {
			continue
		}
		p, ok := s.payments[alloc.PaymentID]
		if ok && p.Status == domain.PaymentStatusRefunded {
			continue
		}
		paid += alloc.PaidQuantity
	}
	return paid
}

func (s *Store) AppendRegisterTransaction(_ context.Context, tx domain.RegisterTransaction) (domain.RegisterTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := domain.RegisterStatusOf(s.register)
	switch tx.Type {
	case domain.RegisterOpening:
		if status.Open {
			return domain.RegisterTransaction{}, fmt.Errorf("%w: register already open", store.ErrStateConflict)
		}
	case domain.RegisterClosing:
		if !status.Open {
			return domain.RegisterTransaction{}, fmt.Errorf("%w: register already closed", store.ErrStateConflict)
		}
	case domain.RegisterDeposit, domain.RegisterWithdrawal, domain.RegisterCorrection, domain.RegisterExpense:
		if !status.Open {
			return domain.RegisterTransaction{}, fmt.Errorf("%w: register is not open", store.ErrStateConflict)
		}
	case domain.RegisterSale, domain.RegisterComplimentary, domain.RegisterDiscount:
	default:
		return domain.RegisterTransaction{}, fmt.Errorf("%w: unsupported register transaction type %q", store.ErrInvalidInput, tx.Type)
	}

	s.register = append(s.register, tx)
	return tx, nil
}

func (s *Store) RegisterStatus(_ context.Context) (domain.RegisterStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.RegisterStatusOf(s.register), nil
}

func (s *Store) ListRegisterTransactions(_ context.Context, limit int) ([]domain.RegisterTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RegisterTransaction, len(s.register))
	copy(out, s.register)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetSalesReport(_ context.Context, from, to time.Time) (domain.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.SalesReport{
		From:   from.Format(time.RFC3339),
		To:     to.Format(time.RFC3339),
		Hourly: make([]domain.HourBucket, 24),
	}
	for h := range report.Hourly {
		report.Hourly[h].Hour = h
	}

	for _, o := range s.orders {
		if o.Status != domain.OrderStatusCancelled && inWindow(o.CreatedAt, from, to) {
			report.Orders++
		}
	}

	methodTotals := make(map[string]*domain.MethodBreakdown)
	itemTotals := make(map[string]*domain.TopMenuItem)
	for _, p := range s.payments {
		if !inWindow(p.CreatedAt, from, to) {
			continue
		}
		if p.Status == domain.PaymentStatusRefunded {
			report.RefundedCents += p.AmountCents
			continue
		}
		if p.Status != domain.PaymentStatusCompleted {
			continue
		}

		report.Payments++
		report.GrossCents += p.AmountCents
		report.DiscountCents += p.DiscountCents
		if p.Complimentary {
			report.ComplimentaryCents += p.AmountCents
		}

		hour := p.CreatedAt.Hour()
		report.Hourly[hour].Payments++
		report.Hourly[hour].TotalCents += p.AmountCents

		method := p.Method
		if p.Complimentary {
			method = "complimentary"
		}
		mb, ok := methodTotals[method]
		if !ok {
			mb = &domain.MethodBreakdown{Method: method}
			methodTotals[method] = mb
		}
		mb.Payments++
		mb.TotalCents += p.AmountCents

		for _, alloc := range s.allocations {
			if alloc.PaymentID != p.ID {
				continue
			}
			item, _, ok := s.orderItemLocked(alloc.OrderItemID)
			if !ok {
				continue
			}
			entry, ok := itemTotals[item.MenuItemID]
			if !ok {
				entry = &domain.TopMenuItem{MenuItemID: item.MenuItemID, Name: item.Name}
				itemTotals[item.MenuItemID] = entry
			}
			entry.PaidQuantity += int64(alloc.PaidQuantity)
			entry.AmountCents += alloc.AmountCents
		}
	}

	report.NetCents = report.GrossCents - report.ComplimentaryCents
	if report.Payments > 0 {
		report.AverageTicketCents = report.NetCents / report.Payments
	}

	for _, mb := range methodTotals {
		if report.GrossCents > 0 {
			mb.Percent = float64(mb.TotalCents) / float64(report.GrossCents) * 100
		}
		report.ByMethod = append(report.ByMethod, *mb)
	}
	sort.Slice(report.ByMethod, func(i, j int) bool { return report.ByMethod[i].TotalCents > report.ByMethod[j].TotalCents })

	for _, entry := range itemTotals {
		report.TopItems = append(report.TopItems, *entry)
	}
	sort.Slice(report.TopItems, func(i, j int) bool {
		if report.TopItems[i].PaidQuantity != report.TopItems[j].PaidQuantity {
			return report.TopItems[i].PaidQuantity > report.TopItems[j].PaidQuantity
		}
		return report.TopItems[i].Name < report.TopItems[j].Name
	})
	if len(report.TopItems) > 5 {
		report.TopItems = report.TopItems[:5]
	}
	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, len(s.audit))
	copy(out, s.audit)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, ok := s.users[key]; ok {
		return fmt.Errorf("%w: username %s already exists", store.ErrInvalidInput, user.Username)
	}
	s.users[key] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return domain.UserAccount{}, fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return u, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, hashed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	u, ok := s.users[key]
	if !ok {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	u.Password = hashed
	s.users[key] = u
	return nil
}

func inWindow(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

func cloneMenuItem(m domain.MenuItem) domain.MenuItem {
	out := m
	out.Options = make([]domain.MenuOption, len(m.Options))
	for i, opt := range m.Options {
		clone := opt
		clone.Values = make([]domain.MenuOptionValue, len(opt.Values))
		copy(clone.Values, opt.Values)
		out.Options[i] = clone
	}
	return out
}

func cloneOrder(o domain.Order) domain.Order {
	out := o
	out.Items = make([]domain.OrderItem, len(o.Items))
	for i, item := range o.Items {
		clone := item
		clone.Options = make([]domain.OrderItemOption, len(item.Options))
		copy(clone.Options, item.Options)
		out.Items[i] = clone
	}
	return out
}

func clonePayment(p domain.Payment) domain.Payment {
	out := p
	out.Allocations = make([]domain.OrderItemPayment, len(p.Allocations))
	copy(out.Allocations, p.Allocations)
	if p.RefundedAt != nil {
		refundedAt := *p.RefundedAt
		out.RefundedAt = &refundedAt
	}
	return out
}
