package domain

import (
	"context"
	"io"
	"time"
)

// SnapshotSource supplies the current set of market snapshots. Pagination,
// rate limiting, and retries are the source's responsibility; the core only
// sees the assembled list.
type SnapshotSource interface {
	Snapshots(ctx context.Context) ([]MarketSnapshot, error)
}

// PriceSource supplies a current price for one market outcome, used by the
// exit checker. A false second return means no price is obtainable right now;
// that is not an error, it just limits exit checks to the time-based rule.
type PriceSource interface {
	CurrentPrice(ctx context.Context, marketID, outcome string) (float64, bool, error)
}

// PositionLog is the durable backend beneath the position store. Save
// overwrites the whole collection atomically; a crash mid-save never yields a
// truncated log. Load on missing or corrupt storage returns an empty slice and
// no error — the condition is recoverable and only worth a warning.
type PositionLog interface {
	Load(ctx context.Context) ([]Position, error)
	Save(ctx context.Context, positions []Position) error
}

// PriceCache caches recent outcome prices keyed by market and outcome.
type PriceCache interface {
	SetPrice(ctx context.Context, marketID, outcome string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, marketID, outcome string) (float64, time.Time, error)
}

// LockManager provides distributed locks. Acquire returns an unlock function
// on success, or ErrLockHeld when another party holds the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus publishes lifecycle events (position_opened, position_closed,
// cycle_completed) to interested consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// AuditStore persists an append-only audit log of engine actions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// BlobWriter uploads cycle artifacts (reports, closed-position archives) to
// object storage. PutMultipart is for payloads large enough to split into
// concurrently uploaded parts; partSize hints the part size in bytes.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
