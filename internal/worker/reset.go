// Package worker hosts the background jobs of the bot.
package worker

import (
	"context"
	"log"
	"time"
)

// Clearer is the single store operation the reset worker needs.
type Clearer interface {
	ClearAllReservations(ctx context.Context) error
}

// MonthlyReset clears every reservation on the first day of each month.
// Places and role bindings are left alone. The worker checks periodically and
// remembers the last month it cleared, so a long-running process fires exactly
// once per month regardless of the check interval.
type MonthlyReset struct {
	store    Clearer
	now      func() time.Time
	interval time.Duration

	lastCleared string // "2006-01" of the last reset
}

func NewMonthlyReset(store Clearer, now func() time.Time) *MonthlyReset {
	return &MonthlyReset{
		store:    store,
		now:      now,
		interval: time.Hour,
	}
}

func (w *MonthlyReset) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *MonthlyReset) runOnce(ctx context.Context) {
	now := w.now()
	if now.Day() != 1 {
		return
	}

	month := now.Format("2006-01")
	if month == w.lastCleared {
		return
	}

	if err := w.store.ClearAllReservations(ctx); err != nil {
		log.Printf("monthly reset: clearing reservations: %v", err)
		return
	}

	w.lastCleared = month
	log.Printf("monthly reset: cleared reservations for %s", month)
}
