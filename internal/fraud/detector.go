// Package fraud aggregates fraud signals over the append-only event log.
package fraud

import (
	"time"

	"github.com/shopspring/decimal"

	"payshield/backend/internal/fraud/domain"
)

// Severity of a detected pattern.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rule parameters.
const (
	RepeatedFailureWindow    = time.Hour
	RepeatedFailureThreshold = 3

	HighValueWindow    = 24 * time.Hour
	HighValueThreshold = 2

	BurstWindow    = time.Hour
	BurstThreshold = 5
)

// HighValueAmount is the amount above which a failed challenge counts as high value.
var HighValueAmount = decimal.NewFromInt(1000)

// Pattern is one alert produced by a rule.
type Pattern struct {
	Type        string   `json:"type"`
	Count       int      `json:"count"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Rule counts matching events inside a trailing window and alerts once the count reaches Threshold.
type Rule struct {
	Type        string
	Severity    Severity
	Description string
	Window      time.Duration
	Threshold   int
	Match       func(domain.Event) bool
}

// DefaultRules returns the built-in rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:        "repeated_challenge_failure",
			Severity:    SeverityHigh,
			Description: "Multiple failed challenge attempts in the last hour",
			Window:      RepeatedFailureWindow,
			Threshold:   RepeatedFailureThreshold,
			Match:       isFailure,
		},
		{
			Type:        "high_value_failure",
			Severity:    SeverityMedium,
			Description: "Failed challenges on high-value transactions in the last 24 hours",
			Window:      HighValueWindow,
			Threshold:   HighValueThreshold,
			Match: func(e domain.Event) bool {
				return isFailure(e) && e.Amount.GreaterThan(HighValueAmount)
			},
		},
		{
			Type:        "burst",
			Severity:    SeverityLow,
			Description: "Unusual burst of transaction activity in the last hour",
			Window:      BurstWindow,
			Threshold:   BurstThreshold,
			// challenge_succeeded always accompanies a transaction event and is not counted twice.
			Match: func(e domain.Event) bool {
				return e.Kind == domain.KindTransaction || e.Kind == domain.KindChallengeFailed
			},
		},
	}
}

func isFailure(e domain.Event) bool {
	return e.Kind == domain.KindChallengeFailed
}

// Detect evaluates DefaultRules over events as of now.
func Detect(events []domain.Event, now time.Time) []Pattern {
	return DetectWith(DefaultRules(), events, now)
}

// DetectWith evaluates rules over events as of now. An event is inside a rule's window when
// now-Window <= OccurredAt <= now. Patterns are returned in rule order, at most one per rule.
func DetectWith(rules []Rule, events []domain.Event, now time.Time) []Pattern {
	out := []Pattern{}
	for _, r := range rules {
		cutoff := now.Add(-r.Window)
		n := 0
		for _, e := range events {
			if e.OccurredAt.Before(cutoff) || e.OccurredAt.After(now) {
				continue
			}
			if r.Match(e) {
				n++
			}
		}
		if r.Threshold > 0 && n >= r.Threshold {
			out = append(out, Pattern{Type: r.Type, Count: n, Severity: r.Severity, Description: r.Description})
		}
	}
	return out
}
