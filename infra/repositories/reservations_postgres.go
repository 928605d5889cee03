package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openmart/inventory/domain/inventory"
)

type ReservationsPostgres struct {
	db *sql.DB
}

func NewReservationsPostgres(db *sql.DB) *ReservationsPostgres {
	return &ReservationsPostgres{db: db}
}

func (r *ReservationsPostgres) Create(ctx context.Context, orderID string, lines []inventory.Line) (*inventory.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create reservation: %w", err)
	}
	defer tx.Rollback()

	createdAt := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (order_id, status, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (order_id) DO NOTHING`,
		orderID, inventory.StatusHeld, createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: order %s", inventory.ErrAlreadyExists, orderID)
	}
	for lineNo, line := range lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reservation_lines (order_id, line_no, sku, quantity) VALUES ($1, $2, $3, $4)`,
			orderID, lineNo, line.SKU, line.Quantity,
		); err != nil {
			return nil, fmt.Errorf("insert reservation line: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create reservation: %w", err)
	}
	return &inventory.Reservation{
		OrderID:   orderID,
		Status:    inventory.StatusHeld,
		Lines:     append([]inventory.Line(nil), lines...),
		CreatedAt: createdAt,
	}, nil
}

func (r *ReservationsPostgres) Get(ctx context.Context, orderID string) (*inventory.Reservation, error) {
	reservation := inventory.Reservation{OrderID: orderID}
	var resolvedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT status, created_at, resolved_at FROM reservations WHERE order_id = $1`,
		orderID,
	).Scan(&reservation.Status, &reservation.CreatedAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", inventory.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if resolvedAt.Valid {
		reservation.ResolvedAt = &resolvedAt.Time
	}

	lineRows, err := r.db.QueryContext(ctx,
		`SELECT sku, quantity FROM reservation_lines WHERE order_id = $1 ORDER BY line_no`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("get reservation lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var line inventory.Line
		if err := lineRows.Scan(&line.SKU, &line.Quantity); err != nil {
			return nil, fmt.Errorf("scan reservation line: %w", err)
		}
		reservation.Lines = append(reservation.Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation lines: %w", err)
	}
	return &reservation, nil
}

func (r *ReservationsPostgres) MarkCommitted(ctx context.Context, orderID string) error {
	return r.transition(ctx, orderID, inventory.StatusCommitted)
}

func (r *ReservationsPostgres) MarkReleased(ctx context.Context, orderID string) error {
	return r.transition(ctx, orderID, inventory.StatusReleased)
}

// transition is a conditional update: only one concurrent caller can move the
// row out of HELD, everyone else learns the actual status afterwards.
func (r *ReservationsPostgres) transition(ctx context.Context, orderID string, to inventory.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = $2, resolved_at = now() WHERE order_id = $1 AND status = $3`,
		orderID, to, inventory.StatusHeld,
	)
	if err != nil {
		return fmt.Errorf("transition reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition reservation: %w", err)
	}
	if rows == 1 {
		return nil
	}
	var status inventory.Status
	err = r.db.QueryRowContext(ctx, `SELECT status FROM reservations WHERE order_id = $1`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: order %s", inventory.ErrNotFound, orderID)
	}
	if err != nil {
		return fmt.Errorf("transition reservation: %w", err)
	}
	return fmt.Errorf("%w: order %s is %s", inventory.ErrInvalidTransition, orderID, status)
}

func (r *ReservationsPostgres) ListExpiredHeld(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id FROM reservations WHERE status = $1 AND created_at < $2`,
		inventory.StatusHeld, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()
	var orderIDs []string
	for rows.Next() {
		var orderID string
		if err := rows.Scan(&orderID); err != nil {
			return nil, fmt.Errorf("scan expired hold: %w", err)
		}
		orderIDs = append(orderIDs, orderID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired holds: %w", err)
	}
	return orderIDs, nil
}
