package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/edgescan/internal/engine"
	"github.com/alanyoungcy/edgescan/internal/notify"
	"github.com/alanyoungcy/edgescan/internal/report"
)

// Signal-bus channels monitor mode consumes. Payloads are JSON request
// objects.
const (
	closeRequestChannel   = "edgescan:close_requests"
	resolveRequestChannel = "edgescan:resolve_requests"
)

type closeRequest struct {
	MarketID  string  `json:"market_id"`
	ExitPrice float64 `json:"exit_price"`
}

type resolveRequest struct {
	MarketID string `json:"market_id"`
	Confirm  bool   `json:"confirm"`
}

// ScanMode runs exactly one discovery cycle, publishes its artifacts, and
// exits. It is the mode cron-style deployments use.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	result, err := deps.Engine.RunCycle(ctx)
	a.afterCycle(ctx, deps, result)
	if err != nil {
		return fmt.Errorf("app: scan cycle: %w", err)
	}
	return nil
}

// LoopMode runs discovery cycles on a fixed interval until the context is
// cancelled. A failing cycle is logged and alerted but does not stop the
// loop; durable state still holds the last good snapshot.
func (a *App) LoopMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Engine.CycleInterval.Duration)
		defer ticker.Stop()

		// First cycle immediately; the ticker paces the rest.
		for {
			result, err := deps.Engine.RunCycle(ctx)
			a.afterCycle(ctx, deps, result)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				a.logger.ErrorContext(ctx, "cycle failed, continuing",
					slog.String("error", err.Error()),
				)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// MonitorMode runs no discovery: it periodically checks exits on held
// positions and persists the result, and consumes operator requests from the
// signal bus. Manual closes and pending confirm/discard verdicts land here,
// so hung positions can be resolved without waiting for the next scan
// deployment.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	if deps.SignalBus == nil {
		return fmt.Errorf("app: monitor mode requires the redis signal bus")
	}

	closes, err := deps.SignalBus.Subscribe(ctx, closeRequestChannel)
	if err != nil {
		return fmt.Errorf("app: subscribe close requests: %w", err)
	}
	resolves, err := deps.SignalBus.Subscribe(ctx, resolveRequestChannel)
	if err != nil {
		return fmt.Errorf("app: subscribe resolve requests: %w", err)
	}

	a.logger.InfoContext(ctx, "monitoring positions",
		slog.Duration("interval", a.cfg.Engine.CycleInterval.Duration),
		slog.Int("open_positions", deps.Positions.OpenCount()),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Engine.CycleInterval.Duration)
		defer ticker.Stop()

		for {
			result, err := deps.Engine.RunMaintenance(ctx)
			a.afterCycle(ctx, deps, result)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				a.logger.ErrorContext(ctx, "maintenance pass failed, continuing",
					slog.String("error", err.Error()),
				)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case payload, ok := <-closes:
				if !ok {
					return ctx.Err()
				}
				a.handleCloseRequest(ctx, deps, payload)
			case payload, ok := <-resolves:
				if !ok {
					return ctx.Err()
				}
				a.handleResolveRequest(ctx, deps, payload)
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

func (a *App) handleCloseRequest(ctx context.Context, deps *Dependencies, payload []byte) {
	var req closeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		a.logger.WarnContext(ctx, "malformed close request",
			slog.String("error", err.Error()),
		)
		return
	}
	closed, err := deps.Engine.ClosePosition(ctx, req.MarketID, req.ExitPrice)
	if err != nil {
		a.logger.ErrorContext(ctx, "manual close failed",
			slog.String("market", req.MarketID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !closed {
		a.logger.WarnContext(ctx, "close request for market with no live position",
			slog.String("market", req.MarketID),
		)
		return
	}
	a.logger.InfoContext(ctx, "position closed by request",
		slog.String("market", req.MarketID),
		slog.Float64("exit_price", req.ExitPrice),
	)
}

func (a *App) handleResolveRequest(ctx context.Context, deps *Dependencies, payload []byte) {
	var req resolveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		a.logger.WarnContext(ctx, "malformed resolve request",
			slog.String("error", err.Error()),
		)
		return
	}
	resolved, err := deps.Engine.ResolvePending(ctx, req.MarketID, req.Confirm)
	if err != nil {
		a.logger.ErrorContext(ctx, "pending resolution failed",
			slog.String("market", req.MarketID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !resolved {
		a.logger.WarnContext(ctx, "resolve request for market with no pending position",
			slog.String("market", req.MarketID),
		)
		return
	}
	a.logger.InfoContext(ctx, "pending position resolved by request",
		slog.String("market", req.MarketID),
		slog.Bool("confirmed", req.Confirm),
	)
}

// afterCycle publishes the cycle's artifacts: the markdown report and closed
// archive to object storage and the operator alerts. All of it is
// best-effort; the cycle's state is already committed.
func (a *App) afterCycle(ctx context.Context, deps *Dependencies, result engine.CycleResult) {
	if deps.Publisher != nil {
		md := report.Cycle(result, deps.Positions.OpenPositions())
		if path, err := deps.Publisher.PublishReport(ctx, result.StartedAt, md); err != nil {
			a.logger.WarnContext(ctx, "report upload failed",
				slog.String("error", err.Error()),
			)
		} else {
			a.logger.InfoContext(ctx, "report uploaded", slog.String("path", path))
		}

		if _, err := deps.Publisher.ArchiveClosed(ctx, result.Closed, result.StartedAt); err != nil {
			a.logger.WarnContext(ctx, "closed-position archive failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if deps.Notifier == nil {
		return
	}

	for _, p := range result.Opened {
		title, msg := notify.PositionOpenedMessage(p)
		_ = deps.Notifier.Notify(ctx, notify.EventPositionOpened, title, msg)
	}
	for _, p := range result.Closed {
		title, msg := notify.PositionClosedMessage(p)
		_ = deps.Notifier.Notify(ctx, notify.EventPositionClosed, title, msg)
	}
	for _, p := range deps.Positions.StuckPending() {
		title, msg := notify.StuckPendingMessage(p)
		_ = deps.Notifier.Notify(ctx, notify.EventStuckPending, title, msg)
	}
	if result.Status != engine.CycleOK {
		title, msg := notify.CycleDegradedMessage(result)
		_ = deps.Notifier.Notify(ctx, notify.EventCycleDegraded, title, msg)
	}
}
