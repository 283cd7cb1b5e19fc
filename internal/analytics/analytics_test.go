package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payshield/backend/internal/fraud"
	frauddomain "payshield/backend/internal/fraud/domain"
	"payshield/backend/internal/ledger"
)

type failingReader struct{}

func (failingReader) Since(context.Context, string, time.Time) ([]frauddomain.Event, error) {
	return nil, errors.New("db down")
}

type staticLedger []ledger.Entry

func (l staticLedger) RecentEntries(context.Context) []ledger.Entry { return l }

var now = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T) *fraud.MemoryLog {
	t.Helper()
	ctx := context.Background()
	l := fraud.NewMemoryLog()
	add := func(kind frauddomain.Kind, merchant, order, amount string, ago time.Duration, detail string) {
		e := frauddomain.NewEvent(kind, merchant, order, decimal.RequireFromString(amount), now.Add(-ago), detail)
		if err := l.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 12; i++ {
		order := fmt.Sprintf("o-%02d", i)
		add(frauddomain.KindChallengeSucceeded, "m1", order, "100", time.Duration(12-i)*time.Hour, "")
		add(frauddomain.KindTransaction, "m1", order, "100", time.Duration(12-i)*time.Hour, "")
	}
	for i := 0; i < 3; i++ {
		add(frauddomain.KindChallengeFailed, "m1", "o-bad", "50", time.Duration(i+1)*time.Minute, "mismatch")
	}
	add(frauddomain.KindTransaction, "m1", "o-ancient", "999", 40*24*time.Hour, "")
	add(frauddomain.KindTransaction, "m2", "o-other", "777", time.Minute, "")
	return l
}

func newTestService(t *testing.T, l EventReader, lr LedgerReader) *Service {
	s := NewService(l, lr, 0)
	s.nowF = func() time.Time { return now }
	return s
}

func TestReport_Totals(t *testing.T) {
	s := newTestService(t, seed(t), nil)
	rep, err := s.Report(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	tot := rep.Totals
	if tot.TotalTransactions != 12 {
		t.Errorf("TotalTransactions = %d, want 12", tot.TotalTransactions)
	}
	if !tot.TotalRevenue.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("TotalRevenue = %s, want 1200", tot.TotalRevenue)
	}
	if tot.MFAChallenges != 15 || tot.SuccessfulChallenges != 12 || tot.FraudAttempts != 3 {
		t.Errorf("totals = %+v", tot)
	}
}

func TestReport_RecentTransactionsNewestFirst(t *testing.T) {
	s := newTestService(t, seed(t), nil)
	rep, _ := s.Report(context.Background(), "m1")
	if len(rep.RecentTransactions) != recentLimit {
		t.Fatalf("len = %d, want %d", len(rep.RecentTransactions), recentLimit)
	}
	if rep.RecentTransactions[0].OrderID != "o-11" || rep.RecentTransactions[9].OrderID != "o-02" {
		t.Errorf("order = %s .. %s", rep.RecentTransactions[0].OrderID, rep.RecentTransactions[9].OrderID)
	}
}

func TestReport_FraudPatterns(t *testing.T) {
	s := newTestService(t, seed(t), nil)
	rep, _ := s.Report(context.Background(), "m1")
	if len(rep.FraudPatterns) == 0 || rep.FraudPatterns[0].Type != "repeated_challenge_failure" || rep.FraudPatterns[0].Count != 3 {
		t.Fatalf("patterns = %+v", rep.FraudPatterns)
	}
}

func TestReport_LedgerEntries(t *testing.T) {
	s := newTestService(t, seed(t), staticLedger{{LedgerRef: "0xtx"}})
	rep, _ := s.Report(context.Background(), "m1")
	if len(rep.LedgerEntries) != 1 || rep.LedgerEntries[0].LedgerRef != "0xtx" {
		t.Fatalf("ledger entries = %+v", rep.LedgerEntries)
	}

	s = newTestService(t, seed(t), nil)
	rep, _ = s.Report(context.Background(), "m1")
	if rep.LedgerEntries == nil {
		t.Fatal("ledger entries should be an empty slice without a ledger")
	}
}

func TestReport_Errors(t *testing.T) {
	s := newTestService(t, failingReader{}, nil)
	if _, err := s.Report(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty merchant: err = %v", err)
	}
	if _, err := s.Report(context.Background(), "m1"); err == nil {
		t.Error("event read failure should be reported")
	}
}

func TestNewService_WindowCoversRules(t *testing.T) {
	s := NewService(fraud.NewMemoryLog(), nil, time.Minute)
	if s.window != fraud.HighValueWindow {
		t.Errorf("window = %s, want %s", s.window, fraud.HighValueWindow)
	}
}
