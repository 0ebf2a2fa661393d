package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (p *recordingPurger) DeleteInjuryReportsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.deleted, p.err
}

func (p *recordingPurger) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func TestCleanupService_RunCleanup(t *testing.T) {
	purger := &recordingPurger{deleted: 4}
	svc := NewCleanupService(purger, 48*time.Hour, time.Hour, quietLogger())
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	n, err := svc.RunCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, []time.Time{now.Add(-48 * time.Hour)}, purger.cutoffs)

	purger.err = errors.New("db down")
	_, err = svc.RunCleanup(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestCleanupService_StartStop(t *testing.T) {
	purger := &recordingPurger{}
	svc := NewCleanupService(purger, time.Hour, 10*time.Millisecond, quietLogger())

	svc.Start()
	assert.Eventually(t, func() bool { return purger.calls() >= 2 }, time.Second, 5*time.Millisecond)
	svc.Stop()

	after := purger.calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, purger.calls())
}

func TestCleanupService_DisabledRetention(t *testing.T) {
	purger := &recordingPurger{}
	svc := NewCleanupService(purger, 0, 0, quietLogger())

	svc.Start()
	svc.Stop()
	assert.Zero(t, purger.calls())
}
