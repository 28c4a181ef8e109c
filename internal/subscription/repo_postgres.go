package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callagent-platform/pkg/storage"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepo is the durable Repository implementation.
//
// It assumes a `subscriptions` table keyed by client_id. Admission relies on
// SELECT ... FOR UPDATE to serialize the check-and-increment per client;
// unrelated clients lock different rows and do not contend.
//
// Schema sketch:
//
//	CREATE TABLE subscriptions (
//	  client_id TEXT PRIMARY KEY,
//	  company_name TEXT NOT NULL,
//	  tier TEXT NOT NULL,
//	  complexity TEXT NOT NULL,
//	  start_at TIMESTAMPTZ NOT NULL,
//	  end_at TIMESTAMPTZ,
//	  setup_fee_paid BOOLEAN NOT NULL,
//	  monthly_fee_paid BOOLEAN NOT NULL,
//	  period_start TIMESTAMPTZ NOT NULL,
//	  calls_used INT NOT NULL DEFAULT 0,
//	  consultation_hours_used INT NOT NULL DEFAULT 0,
//	  specialist_sessions_used INT NOT NULL DEFAULT 0,
//	  custom_builds INT NOT NULL DEFAULT 0,
//	  integration_status TEXT NOT NULL,
//	  status TEXT NOT NULL,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const subscriptionColumns = `
client_id, company_name, tier, complexity, start_at, end_at,
setup_fee_paid, monthly_fee_paid, period_start,
calls_used, consultation_hours_used, specialist_sessions_used, custom_builds,
integration_status, status, created_at, updated_at`

func (r *PostgresRepo) Insert(ctx context.Context, sub Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
`
	_, err := r.db.ExecContext(ctx, q,
		sub.ClientID,
		sub.CompanyName,
		sub.Tier,
		sub.Complexity,
		sub.StartAt,
		sub.EndAt,
		sub.SetupFeePaid,
		sub.MonthlyFeePaid,
		sub.PeriodStart,
		sub.CallsUsed,
		sub.ConsultationHoursUsed,
		sub.SpecialistSessionsUsed,
		sub.CustomBuilds,
		sub.IntegrationStatus,
		sub.Status,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateClient
		}
		return err
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, clientID string, now time.Time) (Subscription, bool, error) {
	var out Subscription
	found := false
	err := storage.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		sub, err := lockSubscription(ctx, tx, clientID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if rollPeriod(&sub, now) {
			sub.UpdatedAt = now
			if err := updateSubscription(ctx, tx, sub); err != nil {
				return err
			}
		}
		out = sub
		found = true
		return nil
	})
	return out, found, err
}

func (r *PostgresRepo) List(ctx context.Context, now time.Time) ([]Subscription, error) {
	_ = now // rollover is applied on the per-client paths; List is a snapshot
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY client_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Admit(ctx context.Context, clientID string, quota int, now time.Time) (Admission, error) {
	var adm Admission
	err := storage.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		sub, err := lockSubscription(ctx, tx, clientID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				adm = Admission{Reason: ReasonNoSubscription}
				return nil
			}
			return err
		}

		if rollPeriod(&sub, now) {
			sub.UpdatedAt = now
		}

		adm = Admission{CallsUsed: sub.CallsUsed, IncludedCalls: quota}
		switch {
		case sub.Status != StatusActive:
			adm.Reason = ReasonNoSubscription
		case !sub.SetupFeePaid:
			adm.Reason = ReasonSetupFeeUnpaid
		case sub.CallsUsed >= quota:
			adm.Reason = ReasonQuotaExceeded
		default:
			sub.CallsUsed++
			sub.UpdatedAt = now
			adm.Admitted = true
			adm.CallsUsed = sub.CallsUsed
		}

		return updateSubscription(ctx, tx, sub)
	})
	return adm, err
}

func (r *PostgresRepo) RecordConsultation(ctx context.Context, clientID string, hours int, now time.Time) (Subscription, error) {
	var out Subscription
	err := storage.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		sub, err := lockSubscription(ctx, tx, clientID)
		if err != nil {
			return err
		}
		rollPeriod(&sub, now)
		sub.ConsultationHoursUsed += hours
		sub.UpdatedAt = now
		if err := updateSubscription(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	return out, err
}

func (r *PostgresRepo) SetStatus(ctx context.Context, clientID string, status Status, now time.Time) (Subscription, error) {
	var out Subscription
	err := storage.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		sub, err := lockSubscription(ctx, tx, clientID)
		if err != nil {
			return err
		}
		rollPeriod(&sub, now)
		sub.Status = status
		if status == StatusCanceled && sub.EndAt == nil {
			ended := now
			sub.EndAt = &ended
		}
		sub.UpdatedAt = now
		if err := updateSubscription(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	return out, err
}

func lockSubscription(ctx context.Context, tx *sql.Tx, clientID string) (Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE client_id = $1 FOR UPDATE`
	sub, err := scanSubscription(tx.QueryRowContext(ctx, q, clientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscription{}, ErrNotFound
		}
		return Subscription{}, err
	}
	return sub, nil
}

func updateSubscription(ctx context.Context, tx *sql.Tx, sub Subscription) error {
	const q = `
UPDATE subscriptions SET
  company_name = $2,
  tier = $3,
  complexity = $4,
  start_at = $5,
  end_at = $6,
  setup_fee_paid = $7,
  monthly_fee_paid = $8,
  period_start = $9,
  calls_used = $10,
  consultation_hours_used = $11,
  specialist_sessions_used = $12,
  custom_builds = $13,
  integration_status = $14,
  status = $15,
  updated_at = $16
WHERE client_id = $1
`
	_, err := tx.ExecContext(ctx, q,
		sub.ClientID,
		sub.CompanyName,
		sub.Tier,
		sub.Complexity,
		sub.StartAt,
		sub.EndAt,
		sub.SetupFeePaid,
		sub.MonthlyFeePaid,
		sub.PeriodStart,
		sub.CallsUsed,
		sub.ConsultationHoursUsed,
		sub.SpecialistSessionsUsed,
		sub.CustomBuilds,
		sub.IntegrationStatus,
		sub.Status,
		sub.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ClientID,
		&sub.CompanyName,
		&sub.Tier,
		&sub.Complexity,
		&sub.StartAt,
		&sub.EndAt,
		&sub.SetupFeePaid,
		&sub.MonthlyFeePaid,
		&sub.PeriodStart,
		&sub.CallsUsed,
		&sub.ConsultationHoursUsed,
		&sub.SpecialistSessionsUsed,
		&sub.CustomBuilds,
		&sub.IntegrationStatus,
		&sub.Status,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	return sub, err
}
