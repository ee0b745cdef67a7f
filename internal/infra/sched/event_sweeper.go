package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/ports/repository"
	"lms-enrollment-engine/internal/usecase"
)

// EventSweeper periodically retries stored provider events that were recorded
// but never applied. This covers crashes between record and apply, transient
// database failures, and out-of-order deliveries whose prerequisites have
// since arrived. Retries go through the plain reconciler: the
// enrollment+amount fallback match stays an operator-invoked replay and is
// never applied from here. Orphans stay put for operators.
type EventSweeper struct {
	reconciler usecase.ReconcileUseCase
	events     repository.EventLogRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old an unprocessed event must be to retry
	batchSize  int
	log        *zerolog.Logger
}

func NewEventSweeper(reconciler usecase.ReconcileUseCase, events repository.EventLogRepository, interval, staleAfter time.Duration, batchSize int, logger *zerolog.Logger) *EventSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &EventSweeper{
		reconciler: reconciler,
		events:     events,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		log:        logger,
	}
}

func (w *EventSweeper) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *EventSweeper) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.events.ListUnprocessed(ctx, nil, cutoff, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("event-sweeper: list unprocessed failed")
		return
	}
	for _, ev := range stale {
		if ev.Orphaned() {
			continue
		}
		if _, err := w.reconciler.Process(ctx, ev.Provider, ev.EventID); err != nil {
			if errors.Is(err, domain.ErrOrphanEvent) {
				// Needs a human; ListOrphans will show it.
				continue
			}
			w.log.Warn().Err(err).
				Str("provider", ev.Provider).Str("event_id", ev.EventID).
				Msg("event-sweeper: retry failed")
			continue
		}
		w.log.Info().Str("provider", ev.Provider).Str("event_id", ev.EventID).
			Msg("event-sweeper: event applied")
	}
}
