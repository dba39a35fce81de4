package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/repository"
	"github.com/jmoiron/sqlx"
)

const defaultOrderLimit = 500

type orderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *orderRepository {
	return &orderRepository{db: db}
}

var _ repository.OrderRepository = (*orderRepository)(nil)

type orderRow struct {
	domain.OrderRecord
	ItemsJSON []byte `db:"items"`
}

func (row orderRow) toRecord() (domain.OrderRecord, error) {
	rec := row.OrderRecord
	if len(row.ItemsJSON) > 0 {
		if err := json.Unmarshal(row.ItemsJSON, &rec.Items); err != nil {
			return domain.OrderRecord{}, fmt.Errorf("decode items of order %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

const orderColumns = `id, order_number, location, store, time_stamp, shipped, priority, items`

func (r *orderRepository) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.OrderRecord, error) {
	query, args := buildOrderQuery(filter)

	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]domain.OrderRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		orders = append(orders, rec)
	}
	return orders, nil
}

func buildOrderQuery(filter repository.OrderFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT " + orderColumns + " FROM orders WHERE time_stamp >= $1 AND time_stamp < $2")
	args := []any{filter.Start, filter.End}

	switch {
	case filter.Location != "":
		args = append(args, filter.Location)
		fmt.Fprintf(&sb, " AND location = $%d", len(args))
	case filter.LocationPrefix != "":
		args = append(args, escapeLike(filter.LocationPrefix)+"%")
		fmt.Fprintf(&sb, " AND location LIKE $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOrderLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY time_stamp DESC LIMIT $%d", len(args))

	return sb.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *orderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.OrderRecord, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE order_number = $1 ORDER BY time_stamp DESC LIMIT 1"

	var row orderRow
	err := sqlx.GetContext(ctx, r.db, &row, query, orderNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order %s: %w", orderNumber, err)
	}

	rec, err := row.toRecord()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
