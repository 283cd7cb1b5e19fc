// Package analytics builds the merchant dashboard view: totals, recent transactions, fraud patterns,
// and recent ledger anchors.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"payshield/backend/internal/fraud"
	frauddomain "payshield/backend/internal/fraud/domain"
	"payshield/backend/internal/ledger"
)

// DefaultWindow is how far back totals are computed.
const DefaultWindow = 30 * 24 * time.Hour

// recentLimit is the number of transactions returned in RecentTransactions.
const recentLimit = 10

// ErrInvalidArgument is returned for a missing merchant ID.
var ErrInvalidArgument = errors.New("invalid argument")

// EventReader is the read side of the fraud event log.
type EventReader interface {
	Since(ctx context.Context, merchantID string, since time.Time) ([]frauddomain.Event, error)
}

// LedgerReader serves recent ledger anchors. It never fails; see ledger.Client.
type LedgerReader interface {
	RecentEntries(ctx context.Context) []ledger.Entry
}

// Totals aggregates a merchant's events inside the window.
type Totals struct {
	TotalTransactions    int             `json:"totalTransactions"`
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	MFAChallenges        int             `json:"mfaChallenges"`
	SuccessfulChallenges int             `json:"successfulChallenges"`
	FraudAttempts        int             `json:"fraudAttempts"`
}

// Transaction is one completed transaction.
type Transaction struct {
	OrderID    string          `json:"orderId"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Report is the analytics response for one merchant.
type Report struct {
	MerchantID         string          `json:"merchantId"`
	Totals             Totals          `json:"totals"`
	RecentTransactions []Transaction   `json:"recentTransactions"`
	FraudPatterns      []fraud.Pattern `json:"fraudPatterns"`
	LedgerEntries      []ledger.Entry  `json:"ledgerEntries"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}

// Service computes reports.
type Service struct {
	events EventReader
	ledger LedgerReader
	window time.Duration
	rules  []fraud.Rule
	nowF   func() time.Time
}

// NewService returns an analytics service. window defaults to DefaultWindow and is widened to cover
// the longest fraud rule window. ledger may be nil.
func NewService(events EventReader, ledger LedgerReader, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	rules := fraud.DefaultRules()
	if w := fraud.MaxWindow(rules); window < w {
		window = w
	}
	return &Service{
		events: events,
		ledger: ledger,
		window: window,
		rules:  rules,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// Report builds the merchant's report. Ledger unavailability never fails the report.
func (s *Service) Report(ctx context.Context, merchantID string) (*Report, error) {
	if merchantID == "" {
		return nil, fmt.Errorf("%w: merchantId is required", ErrInvalidArgument)
	}
	now := s.nowF()
	events, err := s.events.Since(ctx, merchantID, now.Add(-s.window))
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	rep := &Report{
		MerchantID:         merchantID,
		Totals:             totals(events),
		RecentTransactions: recentTransactions(events, recentLimit),
		FraudPatterns:      fraud.DetectWith(s.rules, events, now),
		LedgerEntries:      []ledger.Entry{},
		GeneratedAt:        now,
	}
	if s.ledger != nil {
		rep.LedgerEntries = s.ledger.RecentEntries(ctx)
	}
	return rep, nil
}

func totals(events []frauddomain.Event) Totals {
	t := Totals{TotalRevenue: decimal.Zero}
	for _, e := range events {
		switch e.Kind {
		case frauddomain.KindTransaction:
			t.TotalTransactions++
			t.TotalRevenue = t.TotalRevenue.Add(e.Amount)
		case frauddomain.KindChallengeSucceeded:
			t.MFAChallenges++
			t.SuccessfulChallenges++
		case frauddomain.KindChallengeFailed:
			t.MFAChallenges++
			t.FraudAttempts++
		}
	}
	return t
}

// recentTransactions returns up to limit transactions, newest first.
func recentTransactions(events []frauddomain.Event, limit int) []Transaction {
	out := []Transaction{}
	for _, e := range events {
		if e.Kind == frauddomain.KindTransaction {
			out = append(out, Transaction{OrderID: e.OrderID, Amount: e.Amount, OccurredAt: e.OccurredAt})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
