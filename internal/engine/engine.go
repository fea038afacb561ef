// Package engine runs the discovery cycle: fetch snapshots, score them, size
// the survivors, open simulated positions, check exits on held positions, and
// persist the result. A cycle either commits one consistent position snapshot
// or leaves durable state untouched.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/edgescan/internal/domain"
	"github.com/alanyoungcy/edgescan/internal/position"
	"github.com/alanyoungcy/edgescan/internal/scanner"
	"github.com/alanyoungcy/edgescan/internal/sizing"
)

// Config holds the portfolio-level limits and exit thresholds.
type Config struct {
	// MaxPositions is the hard cap on concurrently open positions.
	MaxPositions int
	// MaxNewPerCycle limits how many positions one cycle may open.
	MaxNewPerCycle int
	// MaxHoldingDays is the age past which an open position is flagged for
	// review. The flag never closes the position on its own.
	MaxHoldingDays int
	// TakeProfit and StopLoss set the absolute exit prices stamped onto every
	// new position.
	TakeProfit float64
	StopLoss   float64
	// LockKey and LockTTL guard the cycle with a distributed lock when a lock
	// manager is wired. Single-process deployments leave the manager nil.
	LockKey string
	LockTTL time.Duration
}

// Defaults returns the limits the scanner ships with.
func Defaults() Config {
	return Config{
		MaxPositions:   20,
		MaxNewPerCycle: 5,
		MaxHoldingDays: 30,
		TakeProfit:     0.30,
		StopLoss:       0.05,
		LockKey:        "edgescan:cycle",
		LockTTL:        5 * time.Minute,
	}
}

// Engine orchestrates discovery cycles over the scorer, sizer, and position
// store. Cycles are serialized: RunCycle holds an internal mutex for the full
// cycle, and a distributed lock on top when one is configured.
type Engine struct {
	cfg    Config
	source domain.SnapshotSource
	scorer *scanner.Scorer
	sizer  *sizing.Sizer
	store  *position.Store
	logger *slog.Logger

	// Optional collaborators; each is nil-safe.
	prices domain.PriceSource
	locks  domain.LockManager
	bus    domain.SignalBus
	audit  domain.AuditStore

	mu  sync.Mutex
	now func() time.Time
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithPriceSource wires a current-price source for exit checks. Without one,
// only the time-based exit rule runs.
func WithPriceSource(p domain.PriceSource) Option {
	return func(e *Engine) { e.prices = p }
}

// WithLockManager wires a distributed lock around each cycle.
func WithLockManager(l domain.LockManager) Option {
	return func(e *Engine) { e.locks = l }
}

// WithSignalBus wires lifecycle event publishing.
func WithSignalBus(b domain.SignalBus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithAuditStore wires the append-only audit trail.
func WithAuditStore(a domain.AuditStore) Option {
	return func(e *Engine) { e.audit = a }
}

// New creates an Engine.
func New(
	cfg Config,
	source domain.SnapshotSource,
	scorer *scanner.Scorer,
	sizer *sizing.Sizer,
	store *position.Store,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		cfg:    cfg,
		source: source,
		scorer: scorer,
		sizer:  sizer,
		store:  store,
		logger: logger.With(slog.String("component", "engine")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle executes one discovery cycle. The returned result is always
// populated, including on failure, so reporting can describe partial cycles.
// A canceled context aborts the cycle before the persist step; durable state
// then still reflects the previous cycle.
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	result := CycleResult{StartedAt: now, Status: CycleOK}

	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, e.cfg.LockKey, e.cfg.LockTTL)
		if err != nil {
			return e.fail(ctx, result, fmt.Errorf("engine: acquire cycle lock: %w", err))
		}
		defer unlock()
	}

	// Fetch. A failed fetch degrades the cycle rather than failing it: held
	// positions still get their exit checks against whatever prices remain
	// reachable, and the empty candidate set simply opens nothing.
	snapshots, err := e.source.Snapshots(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return e.fail(ctx, result, fmt.Errorf("engine: fetch: %w", ctx.Err()))
		}
		e.logger.WarnContext(ctx, "snapshot fetch failed, continuing with held positions only",
			slog.String("error", err.Error()),
		)
		result.Status = CycleDegraded
		result.Warnings = append(result.Warnings, fmt.Sprintf("snapshot fetch failed: %v", err))
		snapshots = nil
	}
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, result, fmt.Errorf("engine: after fetch: %w", err))
	}

	// Score and rank.
	var opps []domain.Opportunity
	for _, snap := range snapshots {
		scored, skips := e.scorer.Score(snap)
		opps = append(opps, scored...)
		result.Skipped = append(result.Skipped, skips...)
	}
	opps = scanner.Rank(opps)
	result.Opportunities = opps
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, result, fmt.Errorf("engine: after score: %w", err))
	}

	// Open new positions, best-ranked first, respecting both caps and the
	// one-open-position-per-market rule.
	e.openPositions(ctx, opps, now, &result)
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, result, fmt.Errorf("engine: after open: %w", err))
	}

	// Exit checks on every held position, including ones opened this cycle;
	// a market can gap past its target between scoring and the check.
	e.checkExits(ctx, now, &result)
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, result, fmt.Errorf("engine: after exits: %w", err))
	}

	e.flagStuckPending(ctx, &result)

	// Persist. This is the cycle's single commit point; on failure the
	// in-memory mutations survive for retry on the next cycle.
	if err := e.store.Save(ctx); err != nil {
		return e.fail(ctx, result, fmt.Errorf("engine: persist: %w", err))
	}

	result.FinishedAt = e.now()
	e.logger.InfoContext(ctx, "cycle completed",
		slog.String("status", string(result.Status)),
		slog.Int("snapshots", len(snapshots)),
		slog.Int("opportunities", len(opps)),
		slog.Int("opened", len(result.Opened)),
		slog.Int("closed", len(result.Closed)),
		slog.Int("flagged", len(result.Flagged)),
		slog.Int("open_total", e.store.OpenCount()),
	)
	e.publish(ctx, "cycle_completed", result)
	e.record(ctx, "cycle_completed", map[string]any{
		"status":        string(result.Status),
		"opportunities": len(opps),
		"opened":        len(result.Opened),
		"closed":        len(result.Closed),
	})
	return result, nil
}

// RunMaintenance executes the monitoring subset of a cycle: exit checks on
// held positions, stuck-pending detection, and the persist step. It never
// fetches snapshots and never opens positions, so a monitor deployment can
// share a position store with a scanner without competing for entries.
func (e *Engine) RunMaintenance(ctx context.Context) (CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	result := CycleResult{StartedAt: now, Status: CycleOK}

	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, e.cfg.LockKey, e.cfg.LockTTL)
		if err != nil {
			return e.fail(ctx, result, fmt.Errorf("engine: acquire cycle lock: %w", err))
		}
		defer unlock()
	}

	e.checkExits(ctx, now, &result)
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, result, fmt.Errorf("engine: after exits: %w", err))
	}

	e.flagStuckPending(ctx, &result)

	if err := e.store.Save(ctx); err != nil {
		return e.fail(ctx, result, fmt.Errorf("engine: persist: %w", err))
	}

	result.FinishedAt = e.now()
	e.logger.InfoContext(ctx, "maintenance pass completed",
		slog.String("status", string(result.Status)),
		slog.Int("closed", len(result.Closed)),
		slog.Int("flagged", len(result.Flagged)),
		slog.Int("open_total", e.store.OpenCount()),
	)
	e.record(ctx, "maintenance_completed", map[string]any{
		"status":  string(result.Status),
		"closed":  len(result.Closed),
		"flagged": len(result.Flagged),
	})
	return result, nil
}

// ResolvePending applies an operator verdict to a pending position: confirm
// promotes it to open, discard drops it from the set. The change persists
// immediately. Resolution is never automatic; only this path clears a stuck
// pending position.
func (e *Engine) ResolvePending(ctx context.Context, marketID string, confirm bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	action := "discard"
	changed := false
	if confirm {
		action = "confirm"
		changed = e.store.Confirm(marketID)
	} else {
		changed = e.store.Discard(marketID)
	}
	if !changed {
		return false, nil
	}
	if err := e.store.Save(ctx); err != nil {
		return true, fmt.Errorf("engine: persist pending resolution: %w", err)
	}

	e.logger.InfoContext(ctx, "pending position resolved",
		slog.String("market", marketID),
		slog.String("action", action),
	)
	e.publish(ctx, "pending_resolved", map[string]any{
		"market_id": marketID,
		"action":    action,
	})
	e.record(ctx, "pending_resolved", map[string]any{
		"market_id": marketID,
		"action":    action,
	})
	return true, nil
}

// ClosePosition closes an open or pending position manually and persists the
// change immediately. It is the path monitor mode uses for operator-requested
// closes. Closing a market with no live position is a no-op.
func (e *Engine) ClosePosition(ctx context.Context, marketID string, exitPrice float64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.Close(marketID, domain.CloseReasonManual, exitPrice, e.now()) {
		return false, nil
	}
	if err := e.store.Save(ctx); err != nil {
		return true, fmt.Errorf("engine: persist manual close: %w", err)
	}
	e.publish(ctx, "position_closed", map[string]any{
		"market_id":  marketID,
		"reason":     string(domain.CloseReasonManual),
		"exit_price": exitPrice,
	})
	e.record(ctx, "position_closed", map[string]any{
		"market_id": marketID,
		"reason":    string(domain.CloseReasonManual),
	})
	return true, nil
}

// Store exposes the canonical position set for reporting.
func (e *Engine) Store() *position.Store {
	return e.store
}

func (e *Engine) openPositions(ctx context.Context, opps []domain.Opportunity, now time.Time, result *CycleResult) {
	opened := 0
	for _, opp := range opps {
		if opened >= e.cfg.MaxNewPerCycle || e.store.OpenCount() >= e.cfg.MaxPositions {
			break
		}
		if e.store.HasOpen(opp.MarketID) {
			continue
		}
		// The scorer guarantees a positive expected return on everything it
		// emits; a violation here means the candidate bypassed screening.
		if opp.ExpectedReturn <= 0 {
			e.logger.ErrorContext(ctx, "opportunity with non-positive expected return reached sizing",
				slog.String("market", opp.MarketID),
				slog.Float64("expected_return", opp.ExpectedReturn),
			)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("market %s: %v: non-positive expected return at sizing", opp.MarketID, domain.ErrInvariantViolation))
			if result.Status == CycleOK {
				result.Status = CycleDegraded
			}
			continue
		}

		pos := domain.Position{
			ID:              uuid.NewString(),
			MarketID:        opp.MarketID,
			Question:        opp.Question,
			Outcome:         opp.OutcomeName,
			EntryPrice:      opp.MarketPrice,
			EntryTime:       now,
			Size:            e.sizer.Size(opp),
			TargetExitPrice: e.cfg.TakeProfit,
			StopLossPrice:   e.cfg.StopLoss,
			Status:          domain.PositionStatusOpen,
		}
		if err := e.store.Open(pos); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("open %s: %v", opp.MarketID, err))
			continue
		}
		opened++
		result.Opened = append(result.Opened, pos)
		e.publish(ctx, "position_opened", pos)
		e.record(ctx, "position_opened", map[string]any{
			"position_id": pos.ID,
			"market_id":   pos.MarketID,
			"entry_price": pos.EntryPrice,
			"size":        pos.Size,
		})
	}
}

// checkExits evaluates every open position against the exit rules in priority
// order: take-profit, then stop-loss, then the holding-time flag. Without a
// current price only the time rule applies; age alone never closes a
// position, because realizing P&L requires a price.
func (e *Engine) checkExits(ctx context.Context, now time.Time, result *CycleResult) {
	for _, p := range e.store.OpenPositions() {
		price, ok := e.currentPrice(ctx, p, result)

		if ok {
			switch {
			case price >= p.TargetExitPrice:
				e.closeWith(ctx, p, domain.CloseReasonTakeProfit, price, now, result)
				continue
			case price <= p.StopLossPrice:
				e.closeWith(ctx, p, domain.CloseReasonStopLoss, price, now, result)
				continue
			}
		}

		if days := p.DaysHeld(now); days > e.cfg.MaxHoldingDays {
			flag := ReviewFlag{
				MarketID: p.MarketID,
				Question: p.Question,
				Reason:   fmt.Sprintf("held %d days, past the %d-day limit", days, e.cfg.MaxHoldingDays),
				DaysHeld: days,
			}
			result.Flagged = append(result.Flagged, flag)
			e.logger.WarnContext(ctx, "position past holding limit, flagged for review",
				slog.String("position_id", p.ID),
				slog.String("market", p.MarketID),
				slog.Int("days_held", days),
			)
		}
	}
}

// flagStuckPending degrades the result for every position that has sat
// pending across two or more persisted snapshots. Resolution stays with the
// operator.
func (e *Engine) flagStuckPending(ctx context.Context, result *CycleResult) {
	for _, p := range e.store.StuckPending() {
		w := fmt.Sprintf("position %s on market %s pending for %d cycles, needs operator resolution",
			p.ID, p.MarketID, p.PendingCycles)
		e.logger.WarnContext(ctx, "stuck pending position",
			slog.String("position_id", p.ID),
			slog.String("market", p.MarketID),
			slog.Int("pending_cycles", p.PendingCycles),
		)
		result.Warnings = append(result.Warnings, w)
		if result.Status == CycleOK {
			result.Status = CycleDegraded
		}
	}
}

func (e *Engine) currentPrice(ctx context.Context, p domain.Position, result *CycleResult) (float64, bool) {
	if e.prices == nil {
		return 0, false
	}
	price, ok, err := e.prices.CurrentPrice(ctx, p.MarketID, p.Outcome)
	if err != nil {
		e.logger.WarnContext(ctx, "price lookup failed, time-based exit check only",
			slog.String("market", p.MarketID),
			slog.String("error", err.Error()),
		)
		result.Warnings = append(result.Warnings, fmt.Sprintf("price lookup %s: %v", p.MarketID, err))
		if result.Status == CycleOK {
			result.Status = CycleDegraded
		}
		return 0, false
	}
	return price, ok
}

func (e *Engine) closeWith(ctx context.Context, p domain.Position, reason domain.CloseReason, price float64, now time.Time, result *CycleResult) {
	if !e.store.Close(p.MarketID, reason, price, now) {
		return
	}
	closed := p
	closed.Status = domain.PositionStatusClosed
	closed.CloseReason = reason
	closed.ClosedAt = &now
	closed.ExitPrice = &price
	result.Closed = append(result.Closed, closed)

	e.publish(ctx, "position_closed", closed)
	e.record(ctx, "position_closed", map[string]any{
		"position_id": p.ID,
		"market_id":   p.MarketID,
		"reason":      string(reason),
		"exit_price":  price,
	})
}

func (e *Engine) fail(ctx context.Context, result CycleResult, err error) (CycleResult, error) {
	result.Status = CycleFailed
	result.Err = err
	result.FinishedAt = e.now()
	e.logger.ErrorContext(ctx, "cycle failed",
		slog.String("error", err.Error()),
	)
	return result, err
}

func (e *Engine) publish(ctx context.Context, event string, payload any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WarnContext(ctx, "event marshal failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := e.bus.Publish(ctx, "edgescan:"+event, data); err != nil {
		e.logger.WarnContext(ctx, "event publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) record(ctx context.Context, event string, detail map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.WarnContext(ctx, "audit write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
