// Package usecase contains application business logic: the foreground
// monitor, the enforcement loop, the capability guard and restart scheduling.
package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

// ForegroundMonitor polls a ForegroundQuery at a fixed period.
type ForegroundMonitor struct {
	query        domain.ForegroundQuery
	pollInterval time.Duration
	queryTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewForegroundMonitor creates a monitor. A query slower than queryTimeout
// is abandoned for that tick.
func NewForegroundMonitor(query domain.ForegroundQuery, pollInterval, queryTimeout time.Duration, logger *zap.Logger) *ForegroundMonitor {
	if queryTimeout <= 0 || queryTimeout > pollInterval {
		queryTimeout = pollInterval
	}
	return &ForegroundMonitor{
		query:        query,
		pollInterval: pollInterval,
		queryTimeout: queryTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

// Observe starts a new observation sequence: the first poll happens
// immediately, then once per poll interval until ctx is canceled.
// Failed, unknown and timed-out queries yield nothing for that tick.
// The channel is closed when polling stops. Each call is independent, so
// the monitor can be stopped and observed again without a process restart.
func (m *ForegroundMonitor) Observe(ctx context.Context) <-chan domain.ForegroundObservation {
	out := make(chan domain.ForegroundObservation)

	go func() {
		defer close(out)

		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()

		for {
			if obs, ok := m.poll(ctx); ok {
				select {
				case out <- obs:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

type queryResult struct {
	id  string
	err error
}

// poll runs one bounded query. The query runs on its own goroutine so that
// an implementation ignoring ctx still cannot stall the monitor.
// Observations are stamped when the tick starts, so query latency does not
// shrink the gap between consecutive observations.
func (m *ForegroundMonitor) poll(ctx context.Context) (domain.ForegroundObservation, bool) {
	observedAt := m.now()

	qctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	results := make(chan queryResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- queryResult{err: fmt.Errorf("foreground query panicked: %v", r)}
			}
		}()
		id, err := m.query.Foreground(qctx)
		results <- queryResult{id: id, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			m.logger.Debug("foreground query failed, skipping tick", zap.Error(r.err))
			return domain.ForegroundObservation{}, false
		}
		if r.id == "" {
			return domain.ForegroundObservation{}, false
		}
		return domain.ForegroundObservation{ApplicationID: r.id, ObservedAt: observedAt}, true

	case <-qctx.Done():
		if ctx.Err() == nil {
			m.logger.Debug("foreground query timed out, skipping tick",
				zap.Duration("timeout", m.queryTimeout))
		}
		return domain.ForegroundObservation{}, false
	}
}
