package position

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

// fakeLog is an in-memory domain.PositionLog with an optional injected save
// failure.
type fakeLog struct {
	saved   []domain.Position
	loadSet []domain.Position
	saveErr error
	saves   int
}

func (f *fakeLog) Load(ctx context.Context) ([]domain.Position, error) {
	return append([]domain.Position(nil), f.loadSet...), nil
}

func (f *fakeLog) Save(ctx context.Context, positions []domain.Position) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append([]domain.Position(nil), positions...)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pos(id, marketID string, status domain.PositionStatus) domain.Position {
	return domain.Position{
		ID:         id,
		MarketID:   marketID,
		Question:   "Will it rain?",
		Outcome:    "Yes",
		EntryPrice: 0.05,
		EntryTime:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Size:       25,
		Status:     status,
	}
}

func TestLoadReplacesState(t *testing.T) {
	log := &fakeLog{loadSet: []domain.Position{pos("p1", "m1", domain.PositionStatusOpen)}}
	s := NewStore(log, discard())

	require.NoError(t, s.Open(pos("px", "mx", domain.PositionStatusOpen)))
	require.NoError(t, s.Load(context.Background()))

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "p1", all[0].ID)
	assert.False(t, s.Dirty())
}

func TestOpenRefusesDuplicateOpenMarket(t *testing.T) {
	s := NewStore(&fakeLog{}, discard())

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusOpen)))
	err := s.Open(pos("p2", "m1", domain.PositionStatusOpen))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	assert.Equal(t, 1, s.OpenCount())
}

func TestOpenAllowedAfterClose(t *testing.T) {
	s := NewStore(&fakeLog{}, discard())
	now := time.Now()

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusOpen)))
	require.True(t, s.Close("m1", domain.CloseReasonTakeProfit, 0.32, now))

	// A closed position never blocks a fresh open on the same market.
	require.NoError(t, s.Open(pos("p2", "m1", domain.PositionStatusOpen)))
	assert.Equal(t, 1, s.OpenCount())
	assert.Len(t, s.All(), 2)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewStore(&fakeLog{}, discard())
	now := time.Now()

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusOpen)))

	assert.True(t, s.Close("m1", domain.CloseReasonStopLoss, 0.04, now))
	assert.False(t, s.Close("m1", domain.CloseReasonStopLoss, 0.04, now))
	assert.False(t, s.Close("m-unknown", domain.CloseReasonManual, 0.10, now))

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, domain.PositionStatusClosed, all[0].Status)
	assert.Equal(t, domain.CloseReasonStopLoss, all[0].CloseReason)
	require.NotNil(t, all[0].ExitPrice)
	assert.Equal(t, 0.04, *all[0].ExitPrice)
	require.NotNil(t, all[0].ClosedAt)
	assert.Equal(t, now, *all[0].ClosedAt)
}

func TestCloseDoesNotResurrect(t *testing.T) {
	s := NewStore(&fakeLog{}, discard())
	now := time.Now()

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusOpen)))
	require.True(t, s.Close("m1", domain.CloseReasonTakeProfit, 0.32, now))

	first := s.All()[0]
	s.Close("m1", domain.CloseReasonManual, 0.99, now.Add(time.Hour))
	assert.Equal(t, first, s.All()[0])
}

func TestPendingLifecycle(t *testing.T) {
	s := NewStore(&fakeLog{}, discard())

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusPending)))
	assert.Equal(t, 0, s.OpenCount())

	assert.True(t, s.Confirm("m1"))
	assert.False(t, s.Confirm("m1"))
	assert.Equal(t, 1, s.OpenCount())
	assert.Zero(t, s.All()[0].PendingCycles)
}

func TestDiscardRemovesPending(t *testing.T) {
	s := NewStore(&fakeLog{}, discard())

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusPending)))
	assert.True(t, s.Discard("m1"))
	assert.False(t, s.Discard("m1"))
	assert.Empty(t, s.All())
}

func TestSaveAdvancesPendingCycles(t *testing.T) {
	log := &fakeLog{}
	s := NewStore(log, discard())
	ctx := context.Background()

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusPending)))

	require.NoError(t, s.Save(ctx))
	assert.Empty(t, s.StuckPending())

	require.NoError(t, s.Save(ctx))
	stuck := s.StuckPending()
	require.Len(t, stuck, 1)
	assert.Equal(t, 2, stuck[0].PendingCycles)

	// The persisted snapshot carries the counter too.
	require.Len(t, log.saved, 1)
	assert.Equal(t, 2, log.saved[0].PendingCycles)
}

func TestFailedSaveDoesNotAdvancePendingCycles(t *testing.T) {
	boom := errors.New("disk full")
	log := &fakeLog{saveErr: boom}
	s := NewStore(log, discard())
	ctx := context.Background()

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusPending)))

	// Two failed saves leave no durable snapshot behind, so the position has
	// not been pending across any persisted snapshot and must not look stuck.
	require.Error(t, s.Save(ctx))
	require.Error(t, s.Save(ctx))
	assert.Zero(t, s.All()[0].PendingCycles)
	assert.Empty(t, s.StuckPending())

	log.saveErr = nil
	require.NoError(t, s.Save(ctx))
	assert.Equal(t, 1, s.All()[0].PendingCycles)
	require.Len(t, log.saved, 1)
	assert.Equal(t, 1, log.saved[0].PendingCycles)
}

func TestSaveFailureKeepsStateForRetry(t *testing.T) {
	boom := errors.New("disk full")
	log := &fakeLog{saveErr: boom}
	s := NewStore(log, discard())
	ctx := context.Background()

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusOpen)))

	err := s.Save(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorePersist)

	// In-memory state is intact and still marked dirty; the next save
	// retries the same snapshot.
	assert.True(t, s.Dirty())
	require.Len(t, s.All(), 1)

	log.saveErr = nil
	require.NoError(t, s.Save(ctx))
	assert.False(t, s.Dirty())
	require.Len(t, log.saved, 1)
	assert.Equal(t, "p1", log.saved[0].ID)
}

func TestSaveLoadFixedPoint(t *testing.T) {
	log := &fakeLog{}
	s := NewStore(log, discard())
	ctx := context.Background()

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusOpen)))
	require.NoError(t, s.Open(pos("p2", "m2", domain.PositionStatusOpen)))
	require.True(t, s.Close("m2", domain.CloseReasonTakeProfit, 0.31, time.Now()))
	require.NoError(t, s.Save(ctx))

	before := s.All()
	log.loadSet = log.saved
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, before, s.All())
}

func TestHasOpen(t *testing.T) {
	s := NewStore(&fakeLog{}, discard())

	require.NoError(t, s.Open(pos("p1", "m1", domain.PositionStatusOpen)))
	require.NoError(t, s.Open(pos("p2", "m2", domain.PositionStatusPending)))

	assert.True(t, s.HasOpen("m1"))
	assert.False(t, s.HasOpen("m2"))
	assert.False(t, s.HasOpen("m3"))
}
