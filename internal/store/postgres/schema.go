package postgres

import "context"

// Schema is applied on startup and is idempotent. The partial unique
// index on table_payments guarantees at most one active ledger per
// table at the storage level, closing the read-then-create race.
const schema = `
CREATE TABLE IF NOT EXISTS tables (
	id          TEXT PRIMARY KEY,
	number      INT NOT NULL UNIQUE,
	capacity    INT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'available',
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS menu_items (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL,
	price_cents BIGINT NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS menu_options (
	id           TEXT PRIMARY KEY,
	menu_item_id TEXT NOT NULL REFERENCES menu_items(id),
	name         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS menu_option_values (
	id               TEXT PRIMARY KEY,
	option_id        TEXT NOT NULL REFERENCES menu_options(id),
	name             TEXT NOT NULL,
	price_delta_cents BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS orders (
	id          TEXT PRIMARY KEY,
	table_id    TEXT NOT NULL REFERENCES tables(id),
	staff       TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'created',
	total_cents BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_table ON orders(table_id, created_at);

CREATE TABLE IF NOT EXISTS order_items (
	id               TEXT PRIMARY KEY,
	order_id         TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	menu_item_id     TEXT NOT NULL,
	name             TEXT NOT NULL,
	unit_price_cents BIGINT NOT NULL,
	quantity         INT NOT NULL,
	total_cents      BIGINT NOT NULL,
	notes            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

CREATE TABLE IF NOT EXISTS order_item_options (
	id                TEXT PRIMARY KEY,
	order_item_id     TEXT NOT NULL REFERENCES order_items(id) ON DELETE CASCADE,
	option_name       TEXT NOT NULL,
	value_name        TEXT NOT NULL,
	price_delta_cents BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS table_payments (
	id              TEXT PRIMARY KEY,
	table_id        TEXT NOT NULL REFERENCES tables(id),
	staff           TEXT NOT NULL DEFAULT '',
	total_cents     BIGINT NOT NULL DEFAULT 0,
	paid_cents      BIGINT NOT NULL DEFAULT 0,
	remaining_cents BIGINT NOT NULL DEFAULT 0,
	discount_cents  BIGINT NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'active',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_table_payments_one_active
	ON table_payments(table_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS payments (
	id                   TEXT PRIMARY KEY,
	order_id             TEXT,
	table_payment_id     TEXT REFERENCES table_payments(id),
	amount_cents         BIGINT NOT NULL,
	method               TEXT,
	status               TEXT NOT NULL DEFAULT 'completed',
	discount_cents       BIGINT NOT NULL DEFAULT 0,
	discount_reason      TEXT NOT NULL DEFAULT '',
	complimentary        BOOLEAN NOT NULL DEFAULT false,
	complimentary_reason TEXT NOT NULL DEFAULT '',
	staff                TEXT NOT NULL DEFAULT '',
	refund_notes         TEXT NOT NULL DEFAULT '',
	refunded_at          TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payments_ledger ON payments(table_payment_id, status);
CREATE INDEX IF NOT EXISTS idx_payments_created ON payments(created_at);

CREATE TABLE IF NOT EXISTS order_item_payments (
	id            TEXT PRIMARY KEY,
	order_item_id TEXT NOT NULL REFERENCES order_items(id),
	payment_id    TEXT NOT NULL REFERENCES payments(id),
	paid_quantity INT NOT NULL,
	amount_cents  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_item_payments_item ON order_item_payments(order_item_id);

CREATE TABLE IF NOT EXISTS register_transactions (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	amount_cents BIGINT NOT NULL DEFAULT 0,
	payment_id   TEXT,
	staff        TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_register_created ON register_transactions(created_at);

CREATE TABLE IF NOT EXISTS audit_logs (
	id             TEXT PRIMARY KEY,
	actor_username TEXT NOT NULL,
	actor_role     TEXT NOT NULL,
	action         TEXT NOT NULL,
	entity_type    TEXT NOT NULL,
	entity_id      TEXT NOT NULL,
	detail         TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	username   TEXT PRIMARY KEY,
	password   TEXT NOT NULL,
	role       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL
);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
