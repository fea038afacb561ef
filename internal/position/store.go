// Package position implements the canonical position set. The Store owns the
// one authoritative list of positions; the orchestrator mutates it through
// lifecycle methods during a cycle and commits it with a single Save. Durable
// storage is delegated to a domain.PositionLog backend (file or postgres).
package position

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

// Store is the exclusive owner of the canonical position list. All methods are
// safe for concurrent use; mutations are in-memory until Save commits them to
// the durable log.
type Store struct {
	mu        sync.Mutex
	positions []domain.Position
	log       domain.PositionLog
	logger    *slog.Logger
	dirty     bool
}

// NewStore creates a Store over the given durable log backend.
func NewStore(log domain.PositionLog, logger *slog.Logger) *Store {
	return &Store{
		log:    log,
		logger: logger.With(slog.String("component", "position_store")),
	}
}

// Load replaces the in-memory set with the durable state. Missing or corrupt
// storage is recoverable: the backend returns an empty set and Load only logs
// a warning via the backend. Unsaved in-memory mutations are discarded.
func (s *Store) Load(ctx context.Context) error {
	positions, err := s.log.Load(ctx)
	if err != nil {
		return fmt.Errorf("position: load: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = positions
	s.dirty = false

	s.logger.InfoContext(ctx, "positions loaded",
		slog.Int("count", len(positions)),
	)
	return nil
}

// Save commits the in-memory set to durable storage in one atomic write. The
// written snapshot advances the pending-cycle counter on every still-pending
// position; the in-memory counters follow only after the write succeeds. A
// position counts toward the stuck-pending condition per persisted snapshot,
// so failed saves never advance it. On failure the in-memory state is kept
// as-is for retry on the next cycle and the error wraps
// domain.ErrStorePersist.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	snapshot := s.copyLocked()
	pending := make(map[string]bool)
	for i := range snapshot {
		if snapshot[i].Status == domain.PositionStatusPending {
			snapshot[i].PendingCycles++
			pending[snapshot[i].ID] = true
		}
	}
	s.mu.Unlock()

	if err := s.log.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorePersist, err)
	}

	s.mu.Lock()
	for i := range s.positions {
		p := &s.positions[i]
		if pending[p.ID] && p.Status == domain.PositionStatusPending {
			p.PendingCycles++
		}
	}
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Open adds a new position to the canonical set. The caller is responsible
// for the has-open check; Open refuses a duplicate open position for the same
// market so the no-pyramiding invariant holds even if a caller races.
func (s *Store) Open(pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.positions {
		if p.MarketID == pos.MarketID && p.Status == domain.PositionStatusOpen {
			return fmt.Errorf("position: market %s: %w", pos.MarketID, domain.ErrInvariantViolation)
		}
	}

	s.positions = append(s.positions, pos)
	s.dirty = true

	s.logger.Info("position opened",
		slog.String("position_id", pos.ID),
		slog.String("market", pos.MarketID),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("size", pos.Size),
	)
	return nil
}

// Close transitions an open or pending position on the given market to
// closed. It is idempotent: closing an already-closed position, or a market
// with no position at all, is a no-op. The returned bool reports whether a
// transition actually happened.
func (s *Store) Close(marketID string, reason domain.CloseReason, exitPrice float64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.positions {
		p := &s.positions[i]
		if p.MarketID != marketID || p.Status == domain.PositionStatusClosed {
			continue
		}
		p.Status = domain.PositionStatusClosed
		p.CloseReason = reason
		p.ClosedAt = &now
		price := exitPrice
		p.ExitPrice = &price
		s.dirty = true

		s.logger.Info("position closed",
			slog.String("position_id", p.ID),
			slog.String("market", p.MarketID),
			slog.String("reason", string(reason)),
			slog.Float64("exit_price", exitPrice),
		)
		return true
	}
	return false
}

// Confirm transitions a pending position on the given market to open,
// resetting its pending counter. It returns false when no pending position
// exists for the market.
func (s *Store) Confirm(marketID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.positions {
		p := &s.positions[i]
		if p.MarketID == marketID && p.Status == domain.PositionStatusPending {
			p.Status = domain.PositionStatusOpen
			p.PendingCycles = 0
			s.dirty = true
			return true
		}
	}
	return false
}

// Discard removes a pending position that will never be confirmed. It returns
// false when no pending position exists for the market.
func (s *Store) Discard(marketID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.positions {
		p := s.positions[i]
		if p.MarketID == marketID && p.Status == domain.PositionStatusPending {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			s.dirty = true
			return true
		}
	}
	return false
}

// All returns a copy of the canonical list in insertion order.
func (s *Store) All() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// OpenPositions returns a copy of the subset with status open.
func (s *Store) OpenPositions() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	var open []domain.Position
	for _, p := range s.positions {
		if p.Status == domain.PositionStatusOpen {
			open = append(open, p)
		}
	}
	return open
}

// OpenCount returns the number of open positions.
func (s *Store) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.positions {
		if p.Status == domain.PositionStatusOpen {
			n++
		}
	}
	return n
}

// HasOpen reports whether the market already has an open position. The
// orchestrator uses this to prevent opening a second position in the same
// market; in a concurrent host the HasOpen+Open pair must sit inside one
// critical section (the engine serializes cycles, and multi-process setups
// add the distributed lock).
func (s *Store) HasOpen(marketID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.positions {
		if p.MarketID == marketID && p.Status == domain.PositionStatusOpen {
			return true
		}
	}
	return false
}

// StuckPending returns positions that have remained pending across two or
// more persisted snapshots. The store never auto-resolves them: assuming
// success or failure either way risks misstating P&L, so they are surfaced
// for operator attention instead.
func (s *Store) StuckPending() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stuck []domain.Position
	for _, p := range s.positions {
		if p.Status == domain.PositionStatusPending && p.PendingCycles >= 2 {
			stuck = append(stuck, p)
		}
	}
	return stuck
}

// Dirty reports whether in-memory state has diverged from the last successful
// save.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Store) copyLocked() []domain.Position {
	out := make([]domain.Position, len(s.positions))
	copy(out, s.positions)
	return out
}
