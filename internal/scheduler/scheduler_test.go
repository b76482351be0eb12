package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/smallbiznis/tracklight/internal/clock"
)

type fakeRecurring struct {
	sweeps []time.Time
	fired  int
	err    error
}

func (f *fakeRecurring) MaterializeDue(_ context.Context, now time.Time) (int, error) {
	f.sweeps = append(f.sweeps, now)
	return f.fired, f.err
}

func TestRunOnce(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2024, 3, 4, 0, 5, 0, 0, time.UTC))
	rec := &fakeRecurring{fired: 2}

	s := New(rec, fc, zaptest.NewLogger(t))
	s.RunOnce(context.Background())

	assert.Len(t, rec.sweeps, 1)
	assert.Equal(t, fc.Now(), rec.sweeps[0])

	fc.Advance(15 * time.Minute)
	s.RunOnce(context.Background())
	assert.Len(t, rec.sweeps, 2)
	assert.Equal(t, fc.Now(), rec.sweeps[1])
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2024, 3, 4, 0, 5, 0, 0, time.UTC))
	rec := &fakeRecurring{err: assert.AnError}

	s := New(rec, fc, zaptest.NewLogger(t))
	s.RunOnce(context.Background())
	assert.Len(t, rec.sweeps, 1)
}
