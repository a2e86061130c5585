package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noospaceio/v19/internal/features/harvest"
)

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) Sweep(context.Context) (*harvest.SweepReport, error) {
	f.calls++
	return &harvest.SweepReport{}, f.err
}

type fakePruner struct {
	today string
}

func (f *fakePruner) Prune(_ context.Context, today string) (int, error) {
	f.today = today
	return 2, nil
}

func TestStartRegistersEnabledJobs(t *testing.T) {
	s := NewScheduler(&fakeSweeper{}, &fakePruner{}, Options{
		SweepSchedule: "0 0 * * *",
		PruneSchedule: "30 0 * * *",
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Equal(t, 2, s.Entries())
}

func TestStartSkipsDisabledSweep(t *testing.T) {
	s := NewScheduler(&fakeSweeper{}, &fakePruner{}, Options{PruneSchedule: "30 0 * * *"})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Equal(t, 1, s.Entries())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&fakeSweeper{}, &fakePruner{}, Options{SweepSchedule: "every day"})
	assert.Error(t, s.Start(context.Background()))
}

func TestRunPruneUsesLocalDay(t *testing.T) {
	p := &fakePruner{}
	loc := time.FixedZone("UTC+3", 3*60*60)
	s := NewScheduler(&fakeSweeper{}, p, Options{Location: loc})
	s.now = func() time.Time { return time.Date(2026, 10, 14, 22, 30, 0, 0, time.UTC) }

	s.RunPrune(context.Background())
	assert.Equal(t, "2026-10-15", p.today)
}

func TestRunSweepSurvivesError(t *testing.T) {
	sw := &fakeSweeper{err: errors.New("boom")}
	s := NewScheduler(sw, &fakePruner{}, Options{})
	s.RunSweep(context.Background())
	s.RunSweep(context.Background())
	assert.Equal(t, 2, sw.calls)
}
