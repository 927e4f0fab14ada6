package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/store"
	"mejapos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, capacity, status, active
		FROM tables
		ORDER BY number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make([]domain.Table, 0, 32)
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.ID, &t.Number, &t.Capacity, &t.Status, &t.Active); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (s *Store) GetTable(ctx context.Context, id string) (domain.Table, error) {
	var t domain.Table
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, capacity, status, active
		FROM tables
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Number, &t.Capacity, &t.Status, &t.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Table{}, fmt.Errorf("%w: table %s", store.ErrNotFound, id)
		}
		return domain.Table{}, err
	}
	return t, nil
}

func (s *Store) UpdateTableStatus(ctx context.Context, id string, status string, _ time.Time) (domain.Table, error) {
	var t domain.Table
	err := s.db.QueryRowContext(ctx, `
		UPDATE tables
		SET status = $2
		WHERE id = $1
		RETURNING id, number, capacity, status, active
	`, id, status).Scan(&t.ID, &t.Number, &t.Capacity, &t.Status, &t.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Table{}, fmt.Errorf("%w: table %s", store.ErrNotFound, id)
		}
		return domain.Table{}, err
	}
	return t, nil
}

func (s *Store) ListMenuItems(ctx context.Context) ([]domain.MenuItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, active
		FROM menu_items
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.MenuItem, 0, 64)
	for rows.Next() {
		var m domain.MenuItem
		if err := rows.Scan(&m.ID, &m.Name, &m.Category, &m.PriceCents, &m.Active); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		options, err := s.loadMenuOptions(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Options = options
	}
	return items, nil
}

func (s *Store) GetMenuItemsByIDs(ctx context.Context, ids []string) (map[string]domain.MenuItem, error) {
	out := make(map[string]domain.MenuItem, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		var m domain.MenuItem
		err := s.db.QueryRowContext(ctx, `
			SELECT id, name, category, price_cents, active
			FROM menu_items
			WHERE id = $1
		`, id).Scan(&m.ID, &m.Name, &m.Category, &m.PriceCents, &m.Active)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		m.Options, err = s.loadMenuOptions(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		out[id] = m
	}
	return out, nil
}

func (s *Store) loadMenuOptions(ctx context.Context, menuItemID string) ([]domain.MenuOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name
		FROM menu_options
		WHERE menu_item_id = $1
		ORDER BY name
	`, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []domain.MenuOption
	for rows.Next() {
		var opt domain.MenuOption
		if err := rows.Scan(&opt.ID, &opt.Name); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range options {
		valRows, err := s.db.QueryContext(ctx, `
			SELECT id, name, price_delta_cents
			FROM menu_option_values
			WHERE option_id = $1
			ORDER BY price_delta_cents, name
		`, options[i].ID)
		if err != nil {
			return nil, err
		}
		for valRows.Next() {
			var v domain.MenuOptionValue
			if err := valRows.Scan(&v.ID, &v.Name, &v.PriceDeltaCents); err != nil {
				valRows.Close()
				return nil, err
			}
			options[i].Values = append(options[i].Values, v)
		}
		if err := valRows.Err(); err != nil {
			valRows.Close()
			return nil, err
		}
		valRows.Close()
	}
	return options, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, table_id, staff, status, total_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, order.ID, order.TableID, order.Staff, order.Status, order.TotalCents, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if err := insertOrderItems(ctx, tx, order.ID, order.Items); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Store) ReplaceOrderItems(ctx context.Context, order domain.Order) (domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	var existing domain.Order
	err = tx.QueryRowContext(ctx, `
		SELECT id, staff, status, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, order.ID).Scan(&existing.ID, &existing.Staff, &existing.Status, &existing.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("%w: order %s", store.ErrNotFound, order.ID)
		}
		return domain.Order{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return domain.Order{}, err
	}
	if err := insertOrderItems(ctx, tx, order.ID, order.Items); err != nil {
		return domain.Order{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET table_id = $2, total_cents = $3, updated_at = $4
		WHERE id = $1
	`, order.ID, order.TableID, order.TotalCents, order.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}

	order.Staff = existing.Staff
	order.Status = existing.Status
	order.CreatedAt = existing.CreatedAt
	return order, nil
}

func insertOrderItems(ctx context.Context, tx *sql.Tx, orderID string, items []domain.OrderItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, name, unit_price_cents, quantity, total_cents, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, orderID, item.MenuItemID, item.Name, item.UnitPriceCents, item.Quantity, item.TotalCents, item.Notes)
		if err != nil {
			return err
		}
		for _, opt := range item.Options {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_item_options (id, order_item_id, option_name, value_name, price_delta_cents)
				VALUES ($1,$2,$3,$4,$5)
			`, opt.ID, item.ID, opt.OptionName, opt.ValueName, opt.PriceDeltaCents)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, table_id, staff, status, total_cents, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.TableID, &o.Staff, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
		}
		return domain.Order{}, err
	}
	o.Items, err = s.loadOrderItems(ctx, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Store) ListOrdersByTable(ctx context.Context, tableID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_id, staff, status, total_cents, created_at, updated_at
		FROM orders
		WHERE table_id = $1
		ORDER BY created_at
	`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.TableID, &o.Staff, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items, err = s.loadOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *Store) loadOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, menu_item_id, name, unit_price_cents, quantity, total_cents, notes
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name, &item.UnitPriceCents, &item.Quantity, &item.TotalCents, &item.Notes); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		optRows, err := s.db.QueryContext(ctx, `
			SELECT id, option_name, value_name, price_delta_cents
			FROM order_item_options
			WHERE order_item_id = $1
			ORDER BY id
		`, items[i].ID)
		if err != nil {
			return nil, err
		}
		for optRows.Next() {
			var opt domain.OrderItemOption
			if err := optRows.Scan(&opt.ID, &opt.OptionName, &opt.ValueName, &opt.PriceDeltaCents); err != nil {
				optRows.Close()
				return nil, err
			}
			items[i].Options = append(items[i].Options, opt)
		}
		if err := optRows.Err(); err != nil {
			optRows.Close()
			return nil, err
		}
		optRows.Close()
	}
	return items, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, status, at)
	if err != nil {
		return domain.Order{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, err
	}
	if affected == 0 {
		return domain.Order{}, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}
	return s.GetOrderByID(ctx, id)
}

func (s *Store) FindActiveTablePayment(ctx context.Context, tableID string) (domain.TablePayment, error) {
	tp, err := scanTablePayment(s.db.QueryRowContext(ctx, `
		SELECT id, table_id, staff, total_cents, paid_cents, remaining_cents, discount_cents, status, created_at, updated_at
		FROM table_payments
		WHERE table_id = $1 AND status = 'active'
	`, tableID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TablePayment{}, fmt.Errorf("%w: active table payment for table %s", store.ErrNotFound, tableID)
		}
		return domain.TablePayment{}, err
	}
	return tp, nil
}

func (s *Store) CreateTablePayment(ctx context.Context, tp domain.TablePayment) (domain.TablePayment, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO table_payments (id, table_id, staff, total_cents, paid_cents, remaining_cents, discount_cents, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, tp.ID, tp.TableID, tp.Staff, tp.TotalCents, tp.PaidCents, tp.RemainingCents, tp.DiscountCents, tp.Status, tp.CreatedAt, tp.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.TablePayment{}, fmt.Errorf("%w: table %s already has an active table payment", store.ErrStateConflict, tp.TableID)
		}
		return domain.TablePayment{}, err
	}
	return tp, nil
}

func (s *Store) GetTablePayment(ctx context.Context, id string) (domain.TablePayment, error) {
	tp, err := scanTablePayment(s.db.QueryRowContext(ctx, `
		SELECT id, table_id, staff, total_cents, paid_cents, remaining_cents, discount_cents, status, created_at, updated_at
		FROM table_payments
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TablePayment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, id)
		}
		return domain.TablePayment{}, err
	}
	return tp, nil
}

func (s *Store) RecomputeTablePayment(ctx context.Context, id string, at time.Time) (domain.TablePayment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.TablePayment{}, err
	}
	defer tx.Rollback()

	tp, err := recomputeTablePaymentTx(ctx, tx, id, at)
	if err != nil {
		return domain.TablePayment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TablePayment{}, err
	}
	return tp, nil
}

// recomputeTablePaymentTx re-derives totals under a row lock. Orders
// from earlier, already settled seatings are excluded by cutting off at
// the most recent non-active ledger for the same table.
func recomputeTablePaymentTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) (domain.TablePayment, error) {
	var tableID string
	var discount int64
	err := tx.QueryRowContext(ctx, `
		SELECT table_id, discount_cents
		FROM table_payments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&tableID, &discount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TablePayment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, id)
		}
		return domain.TablePayment{}, err
	}

	var total int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents), 0)
		FROM orders
		WHERE table_id = $1
		  AND status <> 'cancelled'
		  AND created_at >= COALESCE(
			(SELECT MAX(updated_at) FROM table_payments WHERE table_id = $1 AND status <> 'active' AND id <> $2),
			to_timestamp(0)
		  )
	`, tableID, id).Scan(&total)
	if err != nil {
		return domain.TablePayment{}, err
	}

	var paid int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE table_payment_id = $1 AND status = 'completed'
	`, id).Scan(&paid)
	if err != nil {
		return domain.TablePayment{}, err
	}

	return scanTablePayment(tx.QueryRowContext(ctx, `
		UPDATE table_payments
		SET total_cents = $2, paid_cents = $3, remaining_cents = $2 - $3 - discount_cents, updated_at = $4
		WHERE id = $1
		RETURNING id, table_id, staff, total_cents, paid_cents, remaining_cents, discount_cents, status, created_at, updated_at
	`, id, total, paid, at))
}

func (s *Store) ApplyTablePaymentDiscount(ctx context.Context, id string, amountCents int64, at time.Time) (domain.TablePayment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.TablePayment{}, err
	}
	defer tx.Rollback()

	var status string
	var remaining int64
	err = tx.QueryRowContext(ctx, `
		SELECT status, remaining_cents
		FROM table_payments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&status, &remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TablePayment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, id)
		}
		return domain.TablePayment{}, err
	}
	if status != domain.LedgerStatusActive {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s is %s", store.ErrStateConflict, id, status)
	}
	if amountCents <= 0 {
		return domain.TablePayment{}, fmt.Errorf("%w: discount must be positive", store.ErrInvalidInput)
	}
	if amountCents > remaining {
		return domain.TablePayment{}, fmt.Errorf("%w: discount %d exceeds remaining %d", store.ErrInvalidInput, amountCents, remaining)
	}

	tp, err := scanTablePayment(tx.QueryRowContext(ctx, `
		UPDATE table_payments
		SET discount_cents = discount_cents + $2, remaining_cents = remaining_cents - $2, updated_at = $3
		WHERE id = $1
		RETURNING id, table_id, staff, total_cents, paid_cents, remaining_cents, discount_cents, status, created_at, updated_at
	`, id, amountCents, at))
	if err != nil {
		return domain.TablePayment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TablePayment{}, err
	}
	return tp, nil
}

func (s *Store) CloseTablePayment(ctx context.Context, id string, at time.Time) (domain.TablePayment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.TablePayment{}, err
	}
	defer tx.Rollback()

	var status string
	var remaining int64
	err = tx.QueryRowContext(ctx, `
		SELECT status, remaining_cents
		FROM table_payments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&status, &remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TablePayment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, id)
		}
		return domain.TablePayment{}, err
	}
	if status != domain.LedgerStatusActive {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s is %s", store.ErrStateConflict, id, status)
	}
	if remaining > 0 {
		return domain.TablePayment{}, fmt.Errorf("%w: table payment %s still has %d remaining", store.ErrStateConflict, id, remaining)
	}

	tp, err := scanTablePayment(tx.QueryRowContext(ctx, `
		UPDATE table_payments
		SET status = 'closed', updated_at = $2
		WHERE id = $1
		RETURNING id, table_id, staff, total_cents, paid_cents, remaining_cents, discount_cents, status, created_at, updated_at
	`, id, at))
	if err != nil {
		return domain.TablePayment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TablePayment{}, err
	}
	return tp, nil
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Payment{}, err
	}
	defer tx.Rollback()

	ledgerTableID := ""
	if payment.TablePaymentID != "" && len(payment.Allocations) > 0 {
		err := tx.QueryRowContext(ctx, `
			SELECT table_id
			FROM table_payments
			WHERE id = $1
		`, payment.TablePaymentID).Scan(&ledgerTableID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.Payment{}, fmt.Errorf("%w: table payment %s", store.ErrNotFound, payment.TablePaymentID)
			}
			return domain.Payment{}, err
		}
	}

	// Lock each item row and re-check the payable remainder inside the
	// transaction, so two concurrent payments cannot both settle the
	// same units.
	for _, alloc := range payment.Allocations {
		var quantity int
		var itemTableID string
		err := tx.QueryRowContext(ctx, `
			SELECT oi.quantity, o.table_id
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE oi.id = $1
			FOR UPDATE OF oi
		`, alloc.OrderItemID).Scan(&quantity, &itemTableID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.Payment{}, fmt.Errorf("%w: order item %s", store.ErrNotFound, alloc.OrderItemID)
			}
			return domain.Payment{}, err
		}
		if ledgerTableID != "" && itemTableID != ledgerTableID {
			return domain.Payment{}, fmt.Errorf("%w: order item %s does not belong to table %s", store.ErrInvalidInput, alloc.OrderItemID, ledgerTableID)
		}

		var alreadyPaid int
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(oip.paid_quantity), 0)
			FROM order_item_payments oip
			JOIN payments p ON p.id = oip.payment_id
			WHERE oip.order_item_id = $1 AND p.status <> 'refunded'
		`, alloc.OrderItemID).Scan(&alreadyPaid)
		if err != nil {
			return domain.Payment{}, err
		}
		if alloc.PaidQuantity > quantity-alreadyPaid {
			return domain.Payment{}, fmt.Errorf("%w: paid quantity %d exceeds payable %d for item %s", store.ErrInvalidInput, alloc.PaidQuantity, quantity-alreadyPaid, alloc.OrderItemID)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, table_payment_id, amount_cents, method, status, discount_cents, discount_reason,
			complimentary, complimentary_reason, staff, refund_notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'',$12)
	`, payment.ID, nullIfEmpty(payment.OrderID), nullIfEmpty(payment.TablePaymentID), payment.AmountCents,
		nullIfEmpty(payment.Method), payment.Status, payment.DiscountCents, payment.DiscountReason,
		payment.Complimentary, payment.ComplimentaryReason, payment.Staff, payment.CreatedAt)
	if err != nil {
		return domain.Payment{}, err
	}

	for _, alloc := range payment.Allocations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_item_payments (id, order_item_id, payment_id, paid_quantity, amount_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, alloc.ID, alloc.OrderItemID, alloc.PaymentID, alloc.PaidQuantity, alloc.AmountCents)
		if err != nil {
			return domain.Payment{}, err
		}
	}

	registerType := domain.RegisterSale
	if payment.Complimentary {
		registerType = domain.RegisterComplimentary
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO register_transactions (id, type, amount_cents, payment_id, staff, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,'',$6)
	`, xid.New("regtx"), registerType, payment.AmountCents, payment.ID, payment.Staff, payment.CreatedAt)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.DiscountCents > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO register_transactions (id, type, amount_cents, payment_id, staff, notes, created_at)
			VALUES ($1,$2,0,$3,$4,$5,$6)
		`, xid.New("regtx"), domain.RegisterDiscount, payment.ID, payment.Staff,
			fmt.Sprintf("discount %d: %s", payment.DiscountCents, payment.DiscountReason), payment.CreatedAt)
		if err != nil {
			return domain.Payment{}, err
		}
	}

	if payment.TablePaymentID != "" {
		if _, err := recomputeTablePaymentTx(ctx, tx, payment.TablePaymentID, payment.CreatedAt); err != nil {
			return domain.Payment{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, `
		SELECT id, order_id, table_payment_id, amount_cents, method, status, discount_cents, discount_reason,
			complimentary, complimentary_reason, staff, refund_notes, refunded_at, created_at
		FROM payments
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
		}
		return domain.Payment{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_item_id, payment_id, paid_quantity, amount_cents
		FROM order_item_payments
		WHERE payment_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return domain.Payment{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var alloc domain.OrderItemPayment
		if err := rows.Scan(&alloc.ID, &alloc.OrderItemID, &alloc.PaymentID, &alloc.PaidQuantity, &alloc.AmountCents); err != nil {
			return domain.Payment{}, err
		}
		p.Allocations = append(p.Allocations, alloc)
	}
	return p, rows.Err()
}

func (s *Store) RefundPayment(ctx context.Context, id string, notes string, staff string, at time.Time) (domain.Payment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Payment{}, err
	}
	defer tx.Rollback()

	p, err := scanPayment(tx.QueryRowContext(ctx, `
		SELECT id, order_id, table_payment_id, amount_cents, method, status, discount_cents, discount_reason,
			complimentary, complimentary_reason, staff, refund_notes, refunded_at, created_at
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
		}
		return domain.Payment{}, err
	}
	if p.Status != domain.PaymentStatusCompleted {
		return domain.Payment{}, fmt.Errorf("%w: payment %s is %s, only completed payments can be refunded", store.ErrStateConflict, id, p.Status)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'refunded', refund_notes = $2, refunded_at = $3
		WHERE id = $1
	`, id, notes, at); err != nil {
		return domain.Payment{}, err
	}

	if p.Method == domain.PaymentMethodCash {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO register_transactions (id, type, amount_cents, payment_id, staff, notes, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, xid.New("regtx"), domain.RegisterExpense, -p.AmountCents, p.ID, staff, notes, at)
		if err != nil {
			return domain.Payment{}, err
		}
	}
	if p.TablePaymentID != "" {
		if _, err := recomputeTablePaymentTx(ctx, tx, p.TablePaymentID, at); err != nil {
			return domain.Payment{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Payment{}, err
	}

	p.Status = domain.PaymentStatusRefunded
	p.RefundNotes = notes
	refundedAt := at
	p.RefundedAt = &refundedAt
	return p, nil
}

func (s *Store) GetOrderItems(ctx context.Context, ids []string) (map[string]domain.OrderItem, error) {
	out := make(map[string]domain.OrderItem, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		var item domain.OrderItem
		err := s.db.QueryRowContext(ctx, `
			SELECT id, order_id, menu_item_id, name, unit_price_cents, quantity, total_cents, notes
			FROM order_items
			WHERE id = $1
		`, id).Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name, &item.UnitPriceCents, &item.Quantity, &item.TotalCents, &item.Notes)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = item
	}
	return out, nil
}

func (s *Store) PaidQuantities(ctx context.Context, itemIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(itemIDs))
	for _, id := range itemIDs {
		var paid int
		err := s.db.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(oip.paid_quantity), 0)
			FROM order_item_payments oip
			JOIN payments p ON p.id = oip.payment_id
			WHERE oip.order_item_id = $1 AND p.status <> 'refunded'
		`, id).Scan(&paid)
		if err != nil {
			return nil, err
		}
		out[id] = paid
	}
	return out, nil
}

func (s *Store) AppendRegisterTransaction(ctx context.Context, regTx domain.RegisterTransaction) (domain.RegisterTransaction, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.RegisterTransaction{}, err
	}
	defer tx.Rollback()

	entries, err := loadRegisterTransactions(ctx, tx)
	if err != nil {
		return domain.RegisterTransaction{}, err
	}
	status := domain.RegisterStatusOf(entries)

	switch regTx.Type {
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
		return domain.RegisterTransaction{}, fmt.Errorf("%w: unsupported register transaction type %q", store.ErrInvalidInput, regTx.Type)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO register_transactions (id, type, amount_cents, payment_id, staff, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, regTx.ID, regTx.Type, regTx.AmountCents, nullIfEmpty(regTx.PaymentID), regTx.Staff, regTx.Notes, regTx.CreatedAt)
	if err != nil {
		return domain.RegisterTransaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RegisterTransaction{}, err
	}
	return regTx, nil
}

func (s *Store) RegisterStatus(ctx context.Context) (domain.RegisterStatus, error) {
	entries, err := loadRegisterTransactions(ctx, s.db)
	if err != nil {
		return domain.RegisterStatus{}, err
	}
	return domain.RegisterStatusOf(entries), nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadRegisterTransactions(ctx context.Context, q queryer) ([]domain.RegisterTransaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, type, amount_cents, payment_id, staff, notes, created_at
		FROM register_transactions
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RegisterTransaction
	for rows.Next() {
		entry, err := scanRegisterTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) ListRegisterTransactions(ctx context.Context, limit int) ([]domain.RegisterTransaction, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, amount_cents, payment_id, staff, notes, created_at
		FROM register_transactions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RegisterTransaction
	for rows.Next() {
		entry, err := scanRegisterTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) GetSalesReport(ctx context.Context, from, to time.Time) (domain.SalesReport, error) {
	report := domain.SalesReport{
		From:   from.Format(time.RFC3339),
		To:     to.Format(time.RFC3339),
		Hourly: make([]domain.HourBucket, 24),
	}
	for h := range report.Hourly {
		report.Hourly[h].Hour = h
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2 AND status <> 'cancelled'
	`, from, to).Scan(&report.Orders)
	if err != nil {
		return domain.SalesReport{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(amount_cents), 0),
			COALESCE(SUM(discount_cents), 0),
			COALESCE(SUM(CASE WHEN complimentary THEN amount_cents ELSE 0 END), 0)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2 AND status = 'completed'
	`, from, to).Scan(&report.Payments, &report.GrossCents, &report.DiscountCents, &report.ComplimentaryCents)
	if err != nil {
		return domain.SalesReport{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2 AND status = 'refunded'
	`, from, to).Scan(&report.RefundedCents)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report.NetCents = report.GrossCents - report.ComplimentaryCents
	if report.Payments > 0 {
		report.AverageTicketCents = report.NetCents / report.Payments
	}

	methodRows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN complimentary THEN 'complimentary' ELSE COALESCE(method, '') END AS method,
			COUNT(*), COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2 AND status = 'completed'
		GROUP BY 1
		ORDER BY 3 DESC
	`, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	defer methodRows.Close()
	for methodRows.Next() {
		var mb domain.MethodBreakdown
		if err := methodRows.Scan(&mb.Method, &mb.Payments, &mb.TotalCents); err != nil {
			return domain.SalesReport{}, err
		}
		if report.GrossCents > 0 {
			mb.Percent = float64(mb.TotalCents) / float64(report.GrossCents) * 100
		}
		report.ByMethod = append(report.ByMethod, mb)
	}
	if err := methodRows.Err(); err != nil {
		return domain.SalesReport{}, err
	}

	topRows, err := s.db.QueryContext(ctx, `
		SELECT oi.menu_item_id, oi.name,
			COALESCE(SUM(oip.paid_quantity), 0), COALESCE(SUM(oip.amount_cents), 0)
		FROM order_item_payments oip
		JOIN payments p ON p.id = oip.payment_id
		JOIN order_items oi ON oi.id = oip.order_item_id
		WHERE p.created_at >= $1 AND p.created_at < $2 AND p.status = 'completed'
		GROUP BY oi.menu_item_id, oi.name
		ORDER BY 3 DESC, 2
		LIMIT 5
	`, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	defer topRows.Close()
	for topRows.Next() {
		var item domain.TopMenuItem
		if err := topRows.Scan(&item.MenuItemID, &item.Name, &item.PaidQuantity, &item.AmountCents); err != nil {
			return domain.SalesReport{}, err
		}
		report.TopItems = append(report.TopItems, item)
	}
	if err := topRows.Err(); err != nil {
		return domain.SalesReport{}, err
	}

	hourRows, err := s.db.QueryContext(ctx, `
		SELECT EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC')::int,
			COUNT(*), COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2 AND status = 'completed'
		GROUP BY 1
	`, from, to)
	if err != nil {
		return domain.SalesReport{}, err
	}
	defer hourRows.Close()
	for hourRows.Next() {
		var hour int
		var count, total int64
		if err := hourRows.Scan(&hour, &count, &total); err != nil {
			return domain.SalesReport{}, err
		}
		if hour >= 0 && hour < 24 {
			report.Hourly[hour].Payments = count
			report.Hourly[hour].TotalCents = total
		}
	}
	return report, hourRows.Err()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES (LOWER($1),$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: username %s already exists", store.ErrInvalidInput, user.Username)
	}
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		WHERE username = LOWER($1)
	`, username).Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserAccount{}, fmt.Errorf("%w: user %s", store.ErrNotFound, username)
		}
		return domain.UserAccount{}, err
	}
	return u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, hashed string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = LOWER($1)
	`, username, hashed)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTablePayment(row rowScanner) (domain.TablePayment, error) {
	var tp domain.TablePayment
	err := row.Scan(&tp.ID, &tp.TableID, &tp.Staff, &tp.TotalCents, &tp.PaidCents, &tp.RemainingCents, &tp.DiscountCents, &tp.Status, &tp.CreatedAt, &tp.UpdatedAt)
	return tp, err
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var p domain.Payment
	var orderID, tablePaymentID, method sql.NullString
	var refundedAt sql.NullTime
	err := row.Scan(&p.ID, &orderID, &tablePaymentID, &p.AmountCents, &method, &p.Status, &p.DiscountCents, &p.DiscountReason,
		&p.Complimentary, &p.ComplimentaryReason, &p.Staff, &p.RefundNotes, &refundedAt, &p.CreatedAt)
	if err != nil {
		return domain.Payment{}, err
	}
	p.OrderID = orderID.String
	p.TablePaymentID = tablePaymentID.String
	p.Method = method.String
	if refundedAt.Valid {
		t := refundedAt.Time
		p.RefundedAt = &t
	}
	return p, nil
}

func scanRegisterTransaction(row rowScanner) (domain.RegisterTransaction, error) {
	var entry domain.RegisterTransaction
	var paymentID sql.NullString
	err := row.Scan(&entry.ID, &entry.Type, &entry.AmountCents, &paymentID, &entry.Staff, &entry.Notes, &entry.CreatedAt)
	if err != nil {
		return domain.RegisterTransaction{}, err
	}
	entry.PaymentID = paymentID.String
	return entry, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
