package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"comanda/internal/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres persists orders in PostgreSQL through the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

// Connect opens a connection pool and pings it with retries, so the
// server can start before the database finishes coming up.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
		pingTTL    = 5 * time.Second
	)

	var lastErr error
	for i := 1; i <= maxRetries; i++ {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			lastErr = err
		} else {
			pctx, cancel := context.WithTimeout(ctx, pingTTL)
			err = db.PingContext(pctx)
			cancel()
			if err == nil {
				return &Postgres{db: db}, nil
			}
			lastErr = err
			_ = db.Close()
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("database connect canceled: %w", ctx.Err())
		}
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, lastErr)
}

// orderColumns is the explicit, exhaustive column list for the orders
// table. Keeping it in one place means an unmapped field is a visible
// compile/review problem, not a silent drop at the boundary.
const orderColumns = `id, channel, manager_name, customer_name, customer_phone,
	delivery_address, table_number, notes, total, payment_method, payment_status,
	cash_received, yape_amount, card_amount, status, can_modify, created_at,
	prep_start_time, ready_time, completed_time, payment_completed_time, version`

// Save upserts the order and rewrites its items in one transaction.
func (p *Postgres) Save(ctx context.Context, o *domain.Order) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (id) DO UPDATE SET
			manager_name = EXCLUDED.manager_name,
			customer_name = EXCLUDED.customer_name,
			customer_phone = EXCLUDED.customer_phone,
			delivery_address = EXCLUDED.delivery_address,
			table_number = EXCLUDED.table_number,
			notes = EXCLUDED.notes,
			total = EXCLUDED.total,
			payment_method = EXCLUDED.payment_method,
			payment_status = EXCLUDED.payment_status,
			cash_received = EXCLUDED.cash_received,
			yape_amount = EXCLUDED.yape_amount,
			card_amount = EXCLUDED.card_amount,
			status = EXCLUDED.status,
			can_modify = EXCLUDED.can_modify,
			prep_start_time = EXCLUDED.prep_start_time,
			ready_time = EXCLUDED.ready_time,
			completed_time = EXCLUDED.completed_time,
			payment_completed_time = EXCLUDED.payment_completed_time,
			version = EXCLUDED.version
		WHERE orders.version <= EXCLUDED.version
	`,
		o.ID, o.Channel, o.ManagerName, o.CustomerName, o.CustomerPhone,
		o.DeliveryAddress, o.TableNumber, o.Notes, o.Total, o.PaymentMethod,
		o.PaymentStatus, o.CashReceived, o.YapeAmount, o.CardAmount, o.Status,
		o.CanModify, o.CreatedAt, o.PrepStartTime, o.ReadyTime, o.CompletedTime,
		o.PaymentCompletedTime, o.Version,
	)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
		return fmt.Errorf("clear order items: %w", err)
	}
	for _, it := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, item_id, name, price, quantity, category)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, o.ID, it.ID, it.Name, it.Price, it.Quantity, it.Category)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", it.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Load reads one order with its items.
func (p *Postgres) Load(ctx context.Context, id string) (*domain.Order, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if err := p.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Delete removes the order and its items.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// ListActive returns all non-terminal orders, newest first. Used to
// rehydrate the in-memory store at startup.
func (p *Postgres) ListActive(ctx context.Context) ([]*domain.Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status NOT IN ('completed', 'cancelled')
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range out {
		if err := p.loadItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT item_id, name, price, quantity, category
		FROM order_items WHERE order_id = $1
	`, o.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Quantity, &it.Category); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.Channel, &o.ManagerName, &o.CustomerName, &o.CustomerPhone,
		&o.DeliveryAddress, &o.TableNumber, &o.Notes, &o.Total, &o.PaymentMethod,
		&o.PaymentStatus, &o.CashReceived, &o.YapeAmount, &o.CardAmount, &o.Status,
		&o.CanModify, &o.CreatedAt, &o.PrepStartTime, &o.ReadyTime, &o.CompletedTime,
		&o.PaymentCompletedTime, &o.Version,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
