package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type windowSweeper interface {
	SweepRateLimitWindows() int
}

type sweepTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) sweepTicker

func startWindowSweepWorker(ctx context.Context, logger *slog.Logger, sweeper windowSweeper, interval time.Duration) func() {
	return startWindowSweepWorkerWithTicker(ctx, logger, sweeper, interval, func(d time.Duration) sweepTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func startWindowSweepWorkerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	sweeper windowSweeper,
	interval time.Duration,
	newTicker tickerFactory,
) func() {
	if sweeper == nil || interval <= 0 {
		return func() {}
	}
	workerCtx, cancel := context.WithCancel(ctx)
	ticker := newTicker(interval)
	done := make(chan struct{})
	go func() {
		defer func() {
			ticker.Stop()
			close(done)
		}()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C():
				if removed := sweeper.SweepRateLimitWindows(); removed > 0 && logger != nil {
					logger.Debug("swept expired rate limit windows", "removed", removed)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
