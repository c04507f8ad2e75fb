package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/services"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func runPoller(t *testing.T, p *services.Poller) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestPoller_RefreshesAtStartAndOnInterval(t *testing.T) {
	r := &countingRefresher{}
	p := services.NewPoller(r, 20*time.Millisecond, 0, logging.Discard())
	runPoller(t, p)

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	status := p.Status()
	assert.Equal(t, domain.SyncIdle, status.State)
	assert.NotNil(t, status.LastSync)
}

func TestPoller_TriggersCoalesce(t *testing.T) {
	r := &countingRefresher{}
	p := services.NewPoller(r, time.Hour, 100*time.Millisecond, logging.Discard())
	runPoller(t, p)

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < 10; i++ {
		p.Trigger()
	}

	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, r.calls.Load(), int32(3))
}

func TestPoller_RecordsErrors(t *testing.T) {
	r := &countingRefresher{err: errors.New("server down")}
	p := services.NewPoller(r, time.Hour, 0, logging.Discard())
	runPoller(t, p)

	assert.Eventually(t, func() bool { return p.Status().State == domain.SyncError }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "server down", p.Status().Error)
	assert.Nil(t, p.Status().LastSync)
}
