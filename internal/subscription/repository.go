package subscription

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("subscription: not found")
	ErrDuplicateClient = errors.New("subscription: client already exists")
	ErrInvalidArgument = errors.New("subscription: invalid argument")
)

// Repository abstracts subscription persistence.
//
// Contract:
// - Admit is a single atomic check-and-increment, serialized per client
//   (per-client mutex in memory, row lock in Postgres). A read-then-write
//   implementation is incorrect under concurrency.
// - Mutating methods roll the billing period forward before applying.
// - Rows are never deleted; lifecycle changes go through SetStatus.
type Repository interface {
	Insert(ctx context.Context, sub Subscription) error
	Get(ctx context.Context, clientID string, now time.Time) (Subscription, bool, error)
	List(ctx context.Context, now time.Time) ([]Subscription, error)

	// Admit admits one call when the subscription is usable and quota
	// allows it, incrementing calls_used_this_month in the same step.
	Admit(ctx context.Context, clientID string, quota int, now time.Time) (Admission, error)

	// RecordConsultation adds consultation hours to the current period.
	RecordConsultation(ctx context.Context, clientID string, hours int, now time.Time) (Subscription, error)

	SetStatus(ctx context.Context, clientID string, status Status, now time.Time) (Subscription, error)
}
