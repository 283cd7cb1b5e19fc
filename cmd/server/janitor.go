package main

import (
	"context"
	"log"
	"time"

	"payshield/backend/internal/devotp"
	"payshield/backend/internal/fraud"
	"payshield/backend/internal/mfa"
)

type statePurger interface {
	PurgeStates(maxAge time.Duration) int
}

// janitor drops expired in-memory state and compacts the fraud log past retention.
type janitor struct {
	challenges *mfa.MemoryStore // nil when challenges live in Redis (keys expire there)
	devCodes   *devotp.MemoryStore
	svc        statePurger
	events     fraud.Log
	retention  time.Duration
	nowF       func() time.Time
}

func runJanitor(ctx context.Context, j janitor) {
	if j.nowF == nil {
		j.nowF = time.Now
	}
	t := time.NewTicker(janitorInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.sweep(ctx)
		}
	}
}

func (j janitor) sweep(ctx context.Context) {
	if j.challenges != nil {
		if n := j.challenges.PurgeExpired(mfa.ExpiredGrace); n > 0 {
			log.Printf("janitor: purged %d expired challenges", n)
		}
	}
	if j.devCodes != nil {
		j.devCodes.PurgeExpired()
	}
	if j.svc != nil {
		j.svc.PurgeStates(orderStateMaxAge)
	}
	if j.events != nil && j.retention > 0 {
		n, err := j.events.Compact(ctx, j.nowF().Add(-j.retention))
		if err != nil {
			log.Printf("janitor: compact fraud events: %v", err)
		} else if n > 0 {
			log.Printf("janitor: compacted %d fraud events", n)
		}
	}
}
