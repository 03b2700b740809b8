package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payhook/internal/domain"
)

const summaryQuery = `select provider, count(1) as "count", coalesce(sum(amount), 0) as "total_amount"
		 from payment_events
		 where applied and received_at between $1 and $2
		 group by provider`

type PostgresStore struct {
	dbPool *pgxpool.Pool
}

func NewPostgresStore(dbPool *pgxpool.Pool) PostgresStore {
	return PostgresStore{
		dbPool: dbPool,
	}
}

// NewPool builds a pgx pool and verifies connectivity before returning it.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 50
	config.MinConns = 2
	config.MaxConnLifetime = time.Minute * 30
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	return pool, nil
}

func (s PostgresStore) GetPayment(ctx context.Context, provider, id string) (domain.Payment, error) {
	query := `select id, provider, amount, currency, status, last_event_at, updated_at
			  from payments
			  where provider = $1 and id = $2`

	var p domain.Payment
	err := s.dbPool.QueryRow(ctx, query, provider, id).Scan(
		&p.ID, &p.Provider, &p.Amount, &p.Currency, &p.Status, &p.LastEventAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}

	return p, err
}

// ApplyEvent upserts the payment row and records the event in one transaction.
// The ON CONFLICT guard on (provider, event_id) is the durable second line of
// idempotency behind the ledger.
func (s PostgresStore) ApplyEvent(ctx context.Context, payment domain.Payment, record domain.EventRecord) error {
	tx, err := s.dbPool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	paymentQuery := `insert into payments (id, provider, amount, currency, status, last_event_at, updated_at)
			  values ($1, $2, $3, $4, $5, $6, $7)
			  on conflict (provider, id) do update
			  set amount = excluded.amount,
			      currency = excluded.currency,
			      status = excluded.status,
			      last_event_at = excluded.last_event_at,
			      updated_at = excluded.updated_at`

	_, err = tx.Exec(ctx, paymentQuery,
		payment.ID, payment.Provider, payment.Amount, payment.Currency,
		payment.Status, payment.LastEventAt, payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	eventQuery := `insert into payment_events (event_id, provider, payment_id, type, amount, currency, occurred_at, received_at, applied)
			  values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  on conflict (provider, event_id) do nothing`

	_, err = tx.Exec(ctx, eventQuery,
		record.EventID, record.Provider, record.PaymentID, record.Type,
		record.Amount, record.Currency, record.OccurredAt, record.ReceivedAt, record.Applied,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s PostgresStore) ListEvents(ctx context.Context, provider, paymentID string) ([]domain.EventRecord, error) {
	query := `select event_id, provider, payment_id, type, amount, currency, occurred_at, received_at, applied
			  from payment_events
			  where provider = $1 and payment_id = $2
			  order by occurred_at`

	rows, err := s.dbPool.Query(ctx, query, provider, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.EventRecord
	for rows.Next() {
		var r domain.EventRecord
		err := rows.Scan(&r.EventID, &r.Provider, &r.PaymentID, &r.Type,
			&r.Amount, &r.Currency, &r.OccurredAt, &r.ReceivedAt, &r.Applied)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

func (s PostgresStore) Summary(ctx context.Context, window domain.TimeRange) (map[string]domain.ProviderSummary, error) {
	rows, err := s.dbPool.Query(ctx, summaryQuery, window.From, window.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make(map[string]domain.ProviderSummary)
	for rows.Next() {
		var provider string
		var summary domain.ProviderSummary
		if err := rows.Scan(&provider, &summary.TotalRequests, &summary.TotalAmount); err != nil {
			return nil, err
		}
		summaries[provider] = summary
	}

	return summaries, rows.Err()
}

func (s PostgresStore) Purge(ctx context.Context) error {
	if _, err := s.dbPool.Exec(ctx, `truncate payment_events`); err != nil {
		return err
	}
	_, err := s.dbPool.Exec(ctx, `truncate payments`)
	return err
}
