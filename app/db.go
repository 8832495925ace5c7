package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"example/meal-planner-api/app/config"
	"example/meal-planner-api/app/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SubscriptionStore persists one subscription row per user.
type SubscriptionStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	GetByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error)
	SavePending(ctx context.Context, sub *models.Subscription) error
	ApplyUpdate(ctx context.Context, update models.SubscriptionUpdate) (*models.AppliedUpdate, error)
}

// OpenDB connects to Postgres and verifies the connection.
func OpenDB(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

type postgresStore struct {
	db *sqlx.DB
}

// NewSubscriptionStore returns a Postgres-backed store.
func NewSubscriptionStore(db *sqlx.DB) SubscriptionStore {
	return &postgresStore{db: db}
}

const subscriptionColumns = `
	user_id,
	plan_type,
	status,
	COALESCE(stripe_customer_id, '') AS stripe_customer_id,
	COALESCE(stripe_subscription_id, '') AS stripe_subscription_id,
	COALESCE(checkout_session_id, '') AS checkout_session_id,
	last_payment_at,
	next_payment_at,
	canceled_at,
	cancel_at_period_end,
	created_at,
	updated_at`

func (s *postgresStore) GetByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.GetContext(ctx, &sub, `
		SELECT`+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1;
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *postgresStore) GetByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.GetContext(ctx, &sub, `
		SELECT`+subscriptionColumns+`
		FROM subscriptions
		WHERE stripe_customer_id = $1;
	`, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// SavePending records a checkout attempt. The previous processor
// subscription is unlinked so late events for it cannot touch the new
// attempt; payment timestamps are kept so a renewal does not erase history.
func (s *postgresStore) SavePending(ctx context.Context, sub *models.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			user_id,
			plan_type,
			status,
			stripe_customer_id,
			checkout_session_id,
			cancel_at_period_end,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, false, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			status = EXCLUDED.status,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			checkout_session_id = EXCLUDED.checkout_session_id,
			stripe_subscription_id = NULL,
			canceled_at = NULL,
			cancel_at_period_end = false,
			updated_at = now();
	`,
		sub.UserID,
		sub.PlanType,
		models.StatusPending,
		sub.CustomerID,
		sub.CheckoutSessionID,
	)
	return err
}

// ApplyUpdate writes the non-nil fields of update to the row owning the
// customer, falling back to the row of UserID.
//
// An update naming a subscription other than the linked one is skipped with
// ErrStaleUpdate, unless it completes the row's current checkout. A row with
// no linked subscription accepts any subscription except a canceled one,
// which can only be a leftover from before the last checkout.
func (s *postgresStore) ApplyUpdate(ctx context.Context, update models.SubscriptionUpdate) (*models.AppliedUpdate, error) {
	if update.CustomerID == "" && update.UserID == "" {
		return nil, errors.New("update has neither customer nor user id")
	}

	var status sql.NullString
	if update.Status != "" {
		status = sql.NullString{String: string(update.Status), Valid: true}
	}

	var applied models.AppliedUpdate
	err := s.db.QueryRowxContext(ctx, `
		UPDATE subscriptions AS s
		SET
			status = COALESCE($3, s.status),
			stripe_subscription_id = COALESCE($4, s.stripe_subscription_id),
			last_payment_at = COALESCE($5, s.last_payment_at),
			next_payment_at = COALESCE($6, s.next_payment_at),
			canceled_at = COALESCE($7, s.canceled_at),
			cancel_at_period_end = COALESCE($8, s.cancel_at_period_end),
			stripe_customer_id = COALESCE(NULLIF($1, ''), s.stripe_customer_id),
			updated_at = now()
		FROM (
			SELECT
				user_id,
				status AS previous_status,
				stripe_subscription_id AS linked_subscription_id,
				checkout_session_id AS current_checkout_session_id
			FROM subscriptions
			WHERE ($1 <> '' AND stripe_customer_id = $1)
			   OR ($2 <> '' AND user_id::text = $2)
			ORDER BY (stripe_customer_id = $1) DESC NULLS LAST
			LIMIT 1
			FOR UPDATE
		) AS prev
		WHERE s.user_id = prev.user_id
		  AND (
			$4::text IS NULL
			OR prev.linked_subscription_id = $4
			OR ($9 <> '' AND prev.current_checkout_session_id = $9)
			OR (prev.linked_subscription_id IS NULL AND COALESCE($3::text, '') <> 'canceled')
		  )
		RETURNING s.user_id, s.plan_type, prev.previous_status, s.status;
	`,
		update.CustomerID,
		update.UserID,
		status,
		update.SubscriptionID,
		update.LastPaymentAt,
		update.NextPaymentAt,
		update.CanceledAt,
		update.CancelAtPeriodEnd,
		update.CheckoutSessionID,
	).StructScan(&applied)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyMiss(ctx, update)
		}
		return nil, err
	}
	return &applied, nil
}

// classifyMiss tells a missing row apart from a row the guard refused.
func (s *postgresStore) classifyMiss(ctx context.Context, update models.SubscriptionUpdate) error {
	var err error
	if update.CustomerID != "" {
		_, err = s.GetByCustomerID(ctx, update.CustomerID)
	}
	if update.CustomerID == "" || errors.Is(err, ErrSubscriptionNotFound) {
		if update.UserID == "" {
			return ErrSubscriptionNotFound
		}
		_, err = s.GetByUserID(ctx, update.UserID)
	}
	switch {
	case err == nil:
		return ErrStaleUpdate
	case errors.Is(err, ErrSubscriptionNotFound):
		return ErrSubscriptionNotFound
	default:
		return fmt.Errorf("classify skipped update: %w", err)
	}
}
