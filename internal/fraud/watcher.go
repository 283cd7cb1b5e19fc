package fraud

import (
	"context"
	"log"
	"sync"
	"time"

	"payshield/backend/internal/fraud/domain"
)

// AlertWatcher is a Sink that re-runs detection for the event's merchant and logs each pattern the
// first time it fires. A pattern that stops firing may be reported again later.
type AlertWatcher struct {
	log   Log
	rules []Rule
	nowF  func() time.Time

	mu     sync.Mutex
	active map[string]map[string]bool // merchant -> pattern type
	onFire func(merchantID string, p Pattern)
}

// NewAlertWatcher returns a watcher over l using DefaultRules. onFire may be nil.
func NewAlertWatcher(l Log, onFire func(merchantID string, p Pattern)) *AlertWatcher {
	return &AlertWatcher{
		log:    l,
		rules:  DefaultRules(),
		nowF:   time.Now,
		active: make(map[string]map[string]bool),
		onFire: onFire,
	}
}

// Emit implements Sink.
func (w *AlertWatcher) Emit(ctx context.Context, e domain.Event) error {
	now := w.nowF()
	events, err := w.log.Since(ctx, e.MerchantID, now.Add(-MaxWindow(w.rules)))
	if err != nil {
		return err
	}
	patterns := DetectWith(w.rules, events, now)

	w.mu.Lock()
	prev := w.active[e.MerchantID]
	next := make(map[string]bool, len(patterns))
	var fired []Pattern
	for _, p := range patterns {
		next[p.Type] = true
		if !prev[p.Type] {
			fired = append(fired, p)
		}
	}
	w.active[e.MerchantID] = next
	w.mu.Unlock()

	for _, p := range fired {
		log.Printf("fraud: merchant %s pattern %s fired (count=%d severity=%s)", e.MerchantID, p.Type, p.Count, p.Severity)
		if w.onFire != nil {
			w.onFire(e.MerchantID, p)
		}
	}
	return nil
}

// MaxWindow returns the longest window among rules.
func MaxWindow(rules []Rule) time.Duration {
	var w time.Duration
	for _, r := range rules {
		if r.Window > w {
			w = r.Window
		}
	}
	return w
}
