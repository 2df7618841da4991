package repository

import (
	"context"
	"errors"

	"SigPulse/internal/domain/models"
)

var (
	ErrSignalNotFound    = errors.New("signal not found")
	ErrOutcomeAlreadySet = errors.New("outcome already set")
)

// Connector pulls one external provider and maps its events to candidate
// signals. Implementations must be safe to call concurrently with other
// connectors and must never panic on bad upstream data.
type Connector interface {
	Name() string
	Fetch(ctx context.Context) ([]*models.CandidateSignal, error)
}

// SignalStore persists signals and enforces the (title, detectedAt) dedup
// invariant and the one-shot outcome transition.
type SignalStore interface {
	// Insert stores a candidate. On a dedup collision it returns the
	// existing signal with inserted=false and no state change.
	Insert(ctx context.Context, cand *models.CandidateSignal) (sig *models.Signal, inserted bool, err error)
	Get(ctx context.Context, id string) (*models.Signal, error)
	// Query returns matching signals newest detectedAt first, plus the
	// total match count before limit/offset.
	Query(ctx context.Context, f models.SignalFilter) ([]*models.Signal, int64, error)
	// RecordOutcome sets the outcome exactly once; a second call returns
	// ErrOutcomeAlreadySet and leaves the stored outcome unchanged.
	RecordOutcome(ctx context.Context, id string, outcome models.Outcome, actualReturn *float64) (*models.Signal, error)
	Stats(ctx context.Context) (*models.SignalStats, error)
	Health(ctx context.Context) error
	Close() error
}

// Broadcaster fans a stored signal out to live subscribers.
type Broadcaster interface {
	Publish(s *models.Signal) int
}

// Publisher ships accepted signals to downstream consumers (digest mailers
// and the like) over a message bus.
type Publisher interface {
	Publish(ctx context.Context, s *models.Signal) error
	Close() error
}

// Entitlements resolves an API credential to an identity and tier. Backed by
// the external billing system in production; a config-backed static table
// serves development and tests.
type Entitlements interface {
	Resolve(ctx context.Context, credential string) (identity string, tier Tier, err error)
}

var ErrUnknownCredential = errors.New("unknown credential")

type Metrics interface {
	RecordSignalInserted(category, source string)
	RecordDuplicate(source string)
	RecordConnectorEvents(connector string, count int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetHubConnections(n int)
}
